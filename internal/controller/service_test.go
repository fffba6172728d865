package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
	publishErr    error
	subscribeErr  error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockTransport) HasSubscription(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

func (m *MockTransport) PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(err error)) {
	m.mu.Lock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	err := m.publishErr
	m.mu.Unlock()

	if done != nil {
		done(err)
	}
}

func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockTransport) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockTransport) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// SimulateMessage simulates receiving an MQTT message on a subscribed topic.
func (m *MockTransport) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

// recordingObserver collects outcomes.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
}

func (o *recordingObserver) Name() string { return "recorder" }

func (o *recordingObserver) Observe(_ context.Context, _ Reading, out Outcome) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
	return o.err
}

func (o *recordingObserver) get() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.outcomes...)
}

// mockLogger counts log calls per level.
type mockLogger struct {
	mu     sync.Mutex
	levels map[string][]string
}

func newMockLogger() *mockLogger {
	return &mockLogger{levels: make(map[string][]string)}
}

func (l *mockLogger) add(level, msg string) {
	l.mu.Lock()
	l.levels[level] = append(l.levels[level], msg)
	l.mu.Unlock()
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *mockLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.levels[level]...)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func startService(t *testing.T, transport *MockTransport, opts ServiceOptions) *Service {
	t.Helper()

	opts.Controller = newTestController(t)
	opts.Transport = transport
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return svc
}

func stopService(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestNewService_RequiresDeps(t *testing.T) {
	if _, err := NewService(ServiceOptions{Transport: NewMockTransport()}); err == nil {
		t.Error("NewService() without controller should fail")
	}
	if _, err := NewService(ServiceOptions{Controller: newTestController(t)}); err == nil {
		t.Error("NewService() without transport should fail")
	}
}

func TestService_StartSubscribes(t *testing.T) {
	transport := NewMockTransport()
	svc := startService(t, transport, ServiceOptions{})
	defer stopService(t, svc)

	subs := transport.GetSubscriptions()
	want := []string{"id/jihoon/dht/temp", "id/jihoon/dht/humi", "id/jihoon/light/lux"}
	if len(subs) != len(want) {
		t.Fatalf("subscriptions = %v, want %v", subs, want)
	}
	for i, topic := range want {
		if subs[i].Topic != topic {
			t.Errorf("subscription %d = %q, want %q", i, subs[i].Topic, topic)
		}
	}
}

func TestService_StartDisconnectedDefersSubscribe(t *testing.T) {
	transport := NewMockTransport()
	transport.connected = false

	svc := startService(t, transport, ServiceOptions{})
	defer stopService(t, svc)

	if n := len(transport.GetSubscriptions()); n != 0 {
		t.Fatalf("subscribed %d topics while disconnected", n)
	}

	transport.mu.Lock()
	transport.connected = true
	transport.mu.Unlock()

	if err := svc.HandleConnect(ConnectResult{}); err != nil {
		t.Fatalf("HandleConnect() error = %v", err)
	}
	if n := len(transport.GetSubscriptions()); n != 3 {
		t.Errorf("subscribed %d topics after connect, want 3", n)
	}
}

func TestService_ReconnectDoesNotDuplicate(t *testing.T) {
	transport := NewMockTransport()
	svc := startService(t, transport, ServiceOptions{})
	defer stopService(t, svc)

	if err := svc.HandleConnect(ConnectResult{}); err != nil {
		t.Fatalf("HandleConnect() error = %v", err)
	}
	if n := len(transport.GetSubscriptions()); n != 3 {
		t.Errorf("subscriptions after reconnect = %d, want 3", n)
	}
	if got := svc.Stats().Connects; got != 2 {
		t.Errorf("Connects = %d, want 2", got)
	}
}

func TestService_ConnectRefused(t *testing.T) {
	transport := NewMockTransport()
	transport.connected = false
	logger := newMockLogger()

	svc := startService(t, transport, ServiceOptions{Logger: logger})
	defer stopService(t, svc)

	err := svc.HandleConnect(ConnectResult{Code: 5})
	if !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("HandleConnect() error = %v, want ErrConnectionRefused", err)
	}
	if n := len(transport.GetSubscriptions()); n != 0 {
		t.Errorf("subscribed %d topics after refusal", n)
	}
	if !contains(logger.messages("error"), "MQTT connection failed") {
		t.Errorf("error logs = %v", logger.messages("error"))
	}
	if svc.Stats().ConnectFailures != 1 {
		t.Errorf("ConnectFailures = %d, want 1", svc.Stats().ConnectFailures)
	}
}

func TestService_SubscribeFailureReported(t *testing.T) {
	transport := NewMockTransport()
	transport.subscribeErr = errors.New("not connected")

	svc, err := NewService(ServiceOptions{Controller: newTestController(t), Transport: transport})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	defer stopService(t, svc)

	if err := svc.Start(context.Background()); err == nil {
		t.Error("Start() error = nil, want subscribe failure")
	}
}

func TestService_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		topic       string
		payload     string
		wantPublish string
		wantKind    Kind
	}{
		{"dark room", "id/jihoon/light/lux", "150", "down", KindLight},
		{"bright room", "id/jihoon/light/lux", "300", "up", KindLight},
		{"boundary", "id/jihoon/light/lux", "200", "down", KindLight},
		{"just above", "id/jihoon/light/lux", "200.0001", "up", KindLight},
		{"temperature", "id/jihoon/dht/temp", "23.5", "", KindTemperature},
		{"humidity", "id/jihoon/dht/humi", "40", "", KindHumidity},
		{"garbage lux", "id/jihoon/light/lux", "bright", "", KindInvalidValue},
		{"empty lux", "id/jihoon/light/lux", "", "", KindInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewMockTransport()
			observer := &recordingObserver{}
			svc := startService(t, transport, ServiceOptions{Observers: []Observer{observer}})

			transport.SimulateMessage(tt.topic, []byte(tt.payload))
			stopService(t, svc)

			published := transport.GetPublished()
			if tt.wantPublish == "" {
				if len(published) != 0 {
					t.Fatalf("published %v, want nothing", published)
				}
			} else {
				if len(published) != 1 {
					t.Fatalf("published %d messages, want 1", len(published))
				}
				if published[0].Topic != "id/jihoon/light/control" {
					t.Errorf("topic = %q", published[0].Topic)
				}
				if string(published[0].Payload) != tt.wantPublish {
					t.Errorf("payload = %q, want %q", published[0].Payload, tt.wantPublish)
				}
				if published[0].Retained {
					t.Error("command published retained")
				}
			}

			outcomes := observer.get()
			if len(outcomes) != 1 || outcomes[0].Kind != tt.wantKind {
				t.Errorf("observed %+v, want one %s outcome", outcomes, tt.wantKind)
			}
		})
	}
}

func TestService_UnrecognizedTopic(t *testing.T) {
	transport := NewMockTransport()
	logger := newMockLogger()
	svc := startService(t, transport, ServiceOptions{Logger: logger})

	// A wildcard subscription elsewhere could deliver this; feed it directly.
	svc.receive("id/jihoon/light/other", []byte("5"))
	stopService(t, svc)

	if len(transport.GetPublished()) != 0 {
		t.Error("published for unrecognized topic")
	}
	if !contains(logger.messages("warn"), "unrecognized topic") {
		t.Errorf("warn logs = %v", logger.messages("warn"))
	}
	if svc.Stats().Outcomes[KindUnrecognized] != 1 {
		t.Errorf("unrecognized count = %d, want 1", svc.Stats().Outcomes[KindUnrecognized])
	}
}

func TestService_CommandsInArrivalOrder(t *testing.T) {
	transport := NewMockTransport()
	svc := startService(t, transport, ServiceOptions{Workers: 1, QueueSize: 16})

	inputs := []string{"10", "500", "199", "201", "200", "1e4"}
	want := []string{"down", "up", "down", "up", "down", "up"}
	for _, v := range inputs {
		transport.SimulateMessage("id/jihoon/light/lux", []byte(v))
	}
	stopService(t, svc)

	published := transport.GetPublished()
	if len(published) != len(want) {
		t.Fatalf("published %d commands, want %d", len(published), len(want))
	}
	for i := range want {
		if string(published[i].Payload) != want[i] {
			t.Errorf("command %d = %q, want %q", i, published[i].Payload, want[i])
		}
	}

	stats := svc.Stats()
	if stats.Commands[CommandUp] != 3 || stats.Commands[CommandDown] != 3 {
		t.Errorf("Commands = %v, want 3 up and 3 down", stats.Commands)
	}
	if stats.Published != 6 {
		t.Errorf("Published = %d, want 6", stats.Published)
	}
}

func TestService_SameReadingTwice(t *testing.T) {
	transport := NewMockTransport()
	svc := startService(t, transport, ServiceOptions{})

	transport.SimulateMessage("id/jihoon/light/lux", []byte("250"))
	transport.SimulateMessage("id/jihoon/light/lux", []byte("250"))
	stopService(t, svc)

	published := transport.GetPublished()
	if len(published) != 2 || string(published[0].Payload) != "up" || string(published[1].Payload) != "up" {
		t.Errorf("published = %v, want up twice", published)
	}
}

func TestService_QueueFullDropsReading(t *testing.T) {
	transport := NewMockTransport()
	logger := newMockLogger()

	release := make(chan struct{})
	blocking := &blockingObserver{release: release, entered: make(chan struct{}, 1)}

	svc := startService(t, transport, ServiceOptions{
		Workers:   1,
		QueueSize: 1,
		Logger:    logger,
		Observers: []Observer{blocking},
	})

	transport.SimulateMessage("id/jihoon/light/lux", []byte("1")) // taken by the worker
	<-blocking.entered
	transport.SimulateMessage("id/jihoon/light/lux", []byte("2")) // fills the buffer
	transport.SimulateMessage("id/jihoon/light/lux", []byte("3")) // dropped

	close(release)
	stopService(t, svc)

	if got := svc.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	if len(transport.GetPublished()) != 2 {
		t.Errorf("published %d commands, want 2", len(transport.GetPublished()))
	}
	if !contains(logger.messages("warn"), "reading dropped") {
		t.Errorf("warn logs = %v", logger.messages("warn"))
	}
}

// blockingObserver holds the worker until release is closed.
type blockingObserver struct {
	release chan struct{}
	entered chan struct{}
}

func (b *blockingObserver) Name() string { return "blocking" }

func (b *blockingObserver) Observe(_ context.Context, _ Reading, _ Outcome) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return nil
}

func TestService_ObserverErrorDoesNotAffectPublish(t *testing.T) {
	transport := NewMockTransport()
	logger := newMockLogger()
	failing := &recordingObserver{err: errors.New("disk full")}
	healthy := &recordingObserver{}

	svc := startService(t, transport, ServiceOptions{
		Logger:    logger,
		Observers: []Observer{failing, healthy},
	})

	transport.SimulateMessage("id/jihoon/light/lux", []byte("20"))
	stopService(t, svc)

	if len(transport.GetPublished()) != 1 {
		t.Fatal("command not published when observer failed")
	}
	if len(healthy.get()) != 1 {
		t.Error("later observer skipped after failure")
	}
	if svc.Stats().ObserverFailures != 1 {
		t.Errorf("ObserverFailures = %d, want 1", svc.Stats().ObserverFailures)
	}
	if !contains(logger.messages("warn"), "observer failed") {
		t.Errorf("warn logs = %v", logger.messages("warn"))
	}
}

func TestService_PublishFailureLogged(t *testing.T) {
	transport := NewMockTransport()
	transport.publishErr = errors.New("mqtt: client not connected")
	logger := newMockLogger()

	svc := startService(t, transport, ServiceOptions{Logger: logger})
	transport.SimulateMessage("id/jihoon/light/lux", []byte("900"))
	stopService(t, svc)

	if svc.Stats().PublishFailures != 1 {
		t.Errorf("PublishFailures = %d, want 1", svc.Stats().PublishFailures)
	}
	if !contains(logger.messages("error"), "command publish failed") {
		t.Errorf("error logs = %v", logger.messages("error"))
	}
}

func TestService_ReadingTimestamp(t *testing.T) {
	transport := NewMockTransport()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var (
		mu  sync.Mutex
		got time.Time
	)
	obs := observerFunc(func(r Reading) {
		mu.Lock()
		got = r.ReceivedAt
		mu.Unlock()
	})

	svc := startService(t, transport, ServiceOptions{
		Now:       func() time.Time { return fixed },
		Observers: []Observer{obs},
	})
	transport.SimulateMessage("id/jihoon/dht/temp", []byte("21.0"))
	stopService(t, svc)

	mu.Lock()
	defer mu.Unlock()
	if !got.Equal(fixed) {
		t.Errorf("ReceivedAt = %v, want %v", got, fixed)
	}
}

type observerFunc func(r Reading)

func (f observerFunc) Name() string { return "func" }

func (f observerFunc) Observe(_ context.Context, r Reading, _ Outcome) error {
	f(r)
	return nil
}

func TestService_StopIdempotent(t *testing.T) {
	svc := startService(t, NewMockTransport(), ServiceOptions{})
	stopService(t, svc)
	stopService(t, svc)
}

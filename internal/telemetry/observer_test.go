package telemetry

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/luxbridge/internal/controller"
)

type call struct {
	method  string
	kind    string
	topic   string
	value   float64
	command string
	raw     string
}

type mockWriter struct {
	mu    sync.Mutex
	calls []call
}

func (m *mockWriter) WriteReading(_, kind, topic string, value float64, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: "reading", kind: kind, topic: topic, value: value})
}

func (m *mockWriter) WriteCommand(_, command string, lux, _ float64, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: "command", command: command, value: lux})
}

func (m *mockWriter) WriteInvalid(_, kind, topic, raw string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: "invalid", kind: kind, topic: topic, raw: raw})
}

func testController(t *testing.T) *controller.Controller {
	t.Helper()
	ctrl, err := controller.New(controller.Config{
		Topics: controller.Topics{
			Temperature: "id/jihoon/dht/temp",
			Humidity:    "id/jihoon/dht/humi",
			Light:       "id/jihoon/light/lux",
			Control:     "id/jihoon/light/control",
		},
		Threshold: controller.DefaultThreshold,
	})
	if err != nil {
		t.Fatalf("controller.New() error = %v", err)
	}
	return ctrl
}

func TestObserver(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    []call
	}{
		{
			name:    "temperature is a reading only",
			topic:   "id/jihoon/dht/temp",
			payload: "23.5",
			want:    []call{{method: "reading", kind: "temperature", topic: "id/jihoon/dht/temp", value: 23.5}},
		},
		{
			name:    "light writes reading and command",
			topic:   "id/jihoon/light/lux",
			payload: "150",
			want: []call{
				{method: "reading", kind: "light", topic: "id/jihoon/light/lux", value: 150},
				{method: "command", command: "down", value: 150},
			},
		},
		{
			name:    "invalid light payload",
			topic:   "id/jihoon/light/lux",
			payload: "bright",
			want:    []call{{method: "invalid", kind: "light", topic: "id/jihoon/light/lux", raw: "bright"}},
		},
		{
			name:    "invalid humidity payload",
			topic:   "id/jihoon/dht/humi",
			payload: "",
			want:    []call{{method: "invalid", kind: "humidity", topic: "id/jihoon/dht/humi", raw: ""}},
		},
		{
			name:    "infinite light is invalid but still commanded",
			topic:   "id/jihoon/light/lux",
			payload: "Inf",
			want: []call{
				{method: "invalid", kind: "light", topic: "id/jihoon/light/lux", raw: "Inf"},
				{method: "command", command: "up", value: math.Inf(1)},
			},
		},
		{
			name:    "unrecognized topic writes nothing",
			topic:   "id/other/light/lux",
			payload: "150",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := testController(t)
			w := &mockWriter{}
			obs := NewObserver(w, "jihoon", ctrl.Config())

			out := ctrl.HandleMessage(tt.topic, []byte(tt.payload))
			reading := controller.Reading{Topic: tt.topic, Payload: []byte(tt.payload), ReceivedAt: time.Now()}

			if err := obs.Observe(context.Background(), reading, out); err != nil {
				t.Fatalf("Observe() error = %v", err)
			}

			if len(w.calls) != len(tt.want) {
				t.Fatalf("calls = %+v, want %+v", w.calls, tt.want)
			}
			for i := range tt.want {
				if w.calls[i] != tt.want[i] {
					t.Errorf("call[%d] = %+v, want %+v", i, w.calls[i], tt.want[i])
				}
			}
		})
	}
}

func TestObserver_Name(t *testing.T) {
	obs := NewObserver(&mockWriter{}, "jihoon", controller.Config{})
	if obs.Name() != "influxdb" {
		t.Errorf("Name() = %q, want influxdb", obs.Name())
	}
}

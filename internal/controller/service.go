package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/luxbridge/internal/dispatch"
)

// Transport is the message source and sink the service runs on.
// *mqtt.Client satisfies it through a small adapter in main.
type Transport interface {
	// Subscribe registers handler for topic. Handlers are called
	// sequentially and must not block.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// HasSubscription reports whether topic is already tracked.
	HasSubscription(topic string) bool

	// PublishAsync sends without waiting; done receives the outcome.
	PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(err error))

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Observer receives every outcome after any command has been handed to
// the transport. Errors are logged and otherwise ignored.
type Observer interface {
	Name() string
	Observe(ctx context.Context, reading Reading, outcome Outcome) error
}

// Logger is the logging surface the service needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ServiceOptions holds everything needed to build a Service.
type ServiceOptions struct {
	Controller *Controller
	Transport  Transport

	// Workers and QueueSize size the dispatch queue (defaults 1 and 64).
	Workers   int
	QueueSize int

	Logger    Logger
	Observers []Observer

	// Now stamps readings; defaults to time.Now.
	Now func() time.Time
}

// Service feeds transport messages through the controller and publishes
// the resulting commands.
//
// Thread Safety: All methods are safe for concurrent use.
type Service struct {
	ctrl      *Controller
	transport Transport
	queue     *dispatch.Queue[Reading]
	observers []Observer
	logger    Logger
	now       func() time.Time
	stats     *counters

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewService validates opts and builds a Service. Call Start to begin.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Controller == nil {
		return nil, errors.New("controller: service requires a controller")
	}
	if opts.Transport == nil {
		return nil, errors.New("controller: service requires a transport")
	}

	s := &Service{
		ctrl:      opts.Controller,
		transport: opts.Transport,
		observers: opts.Observers,
		logger:    opts.Logger,
		now:       opts.Now,
		stats:     newCounters(),
	}
	if s.now == nil {
		s.now = time.Now
	}

	queue, err := dispatch.New(dispatch.Options{
		Workers: opts.Workers,
		Size:    opts.QueueSize,
		OnPanic: func(r any) {
			s.logError("reading handler panic recovered", fmt.Errorf("%v", r))
		},
	}, s.handle)
	if err != nil {
		return nil, fmt.Errorf("controller: building dispatch queue: %w", err)
	}
	s.queue = queue

	return s, nil
}

// Start launches the workers and, if the transport is already connected,
// performs the connect-time subscriptions.
//
// Parameters:
//   - ctx: Parent context for observers; cancelled work stops at Stop
//
// Returns:
//   - error: If the initial subscriptions fail
func (s *Service) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.queue.Start()

		if s.transport.IsConnected() {
			err = s.HandleConnect(ConnectResult{})
		}
	})
	return err
}

// Stop drains queued readings and releases resources.
// Safe to call multiple times.
func (s *Service) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = s.queue.Close(ctx)
		if s.cancel != nil {
			s.cancel()
		}
	})
	return err
}

// HandleConnect is called with the result of each connection attempt.
// On success it subscribes to whatever the controller requests that the
// transport is not already tracking. On failure it reports the code.
func (s *Service) HandleConnect(result ConnectResult) error {
	subs, err := s.ctrl.OnConnect(result)
	if err != nil {
		s.stats.connectFailures.Add(1)
		s.logErrorKV("MQTT connection failed", err,
			"code", result.Code,
			"reason", result.Description(),
		)
		return err
	}

	s.stats.connects.Add(1)
	s.logInfo("MQTT connected", "code", result.Code)

	var errs []error
	for _, sub := range subs {
		if s.transport.HasSubscription(sub.Topic) {
			continue
		}
		if err := s.transport.Subscribe(sub.Topic, sub.QoS, s.receive); err != nil {
			errs = append(errs, fmt.Errorf("subscribing to %s: %w", sub.Topic, err))
			continue
		}
		s.logInfo("subscribed", "topic", sub.Topic, "qos", sub.QoS)
	}

	return errors.Join(errs...)
}

// receive runs on the transport's delivery goroutine and must not block.
func (s *Service) receive(topic string, payload []byte) {
	reading := Reading{
		Topic:      topic,
		Payload:    append([]byte(nil), payload...),
		ReceivedAt: s.now(),
	}

	if err := s.queue.Submit(reading); err != nil {
		s.stats.dropped.Add(1)
		s.logWarn("reading dropped", "topic", topic, "payload", string(payload), "error", err)
	}
}

// handle processes one reading on a dispatch worker.
func (s *Service) handle(reading Reading) {
	out := s.ctrl.HandleMessage(reading.Topic, reading.Payload)
	s.stats.record(out)
	s.logOutcome(out)

	if out.Publish != nil {
		cmd := out.Command
		s.transport.PublishAsync(out.Publish.Topic, out.Publish.Payload, s.ctrl.cfg.QoS, false, func(err error) {
			if err != nil {
				s.stats.publishFailures.Add(1)
				s.logErrorKV("command publish failed", err, "topic", out.Publish.Topic, "command", cmd.String())
				return
			}
			s.stats.published.Add(1)
			s.logDebug("command published", "topic", out.Publish.Topic, "command", cmd.String())
		})
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, o := range s.observers {
		if err := o.Observe(ctx, reading, out); err != nil {
			s.stats.observerFailures.Add(1)
			s.logWarn("observer failed", "observer", o.Name(), "error", err)
		}
	}
}

func (s *Service) logOutcome(out Outcome) {
	switch out.Kind {
	case KindTemperature, KindHumidity:
		if out.HasValue {
			s.logInfo("reading received", "kind", string(out.Kind), "value", out.Value, "unit", out.Unit)
		} else {
			s.logInfo("reading received", "kind", string(out.Kind), "raw", out.Raw, "unit", out.Unit)
		}
	case KindLight:
		s.logInfo("light decision",
			"lux", out.Value,
			"threshold", s.ctrl.cfg.Threshold,
			"command", out.Command.String(),
		)
	case KindInvalidValue:
		s.logWarn("invalid light value", "topic", out.Topic, "raw", out.Raw, "error", out.Err)
	case KindUnrecognized:
		s.logWarn("unrecognized topic", "topic", out.Topic, "raw", out.Raw)
	}
}

// Stats returns a snapshot of the service counters.
func (s *Service) Stats() Stats {
	return s.stats.snapshot(s.queue.Stats())
}

// Connected reports the transport connection state.
func (s *Service) Connected() bool {
	return s.transport.IsConnected()
}

// Controller returns the decision core the service runs.
func (s *Service) Controller() *Controller {
	return s.ctrl
}

func (s *Service) logInfo(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keysAndValues...)
	}
}

func (s *Service) logDebug(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, keysAndValues...)
	}
}

func (s *Service) logWarn(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keysAndValues...)
	}
}

func (s *Service) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}

func (s *Service) logErrorKV(msg string, err error, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}

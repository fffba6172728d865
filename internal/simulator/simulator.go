package simulator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nerrad567/luxbridge/internal/controller"
	"github.com/nerrad567/luxbridge/internal/infrastructure/config"
	"github.com/nerrad567/luxbridge/internal/infrastructure/logging"
	"github.com/nerrad567/luxbridge/internal/infrastructure/mqtt"
)

const (
	// initialConnectWait bounds the wait for the first connection before
	// the publish loop starts anyway; autopaho keeps retrying.
	initialConnectWait = 30 * time.Second

	publishTimeout    = 5 * time.Second
	disconnectTimeout = 5 * time.Second
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("simulator: invalid configuration")

// Publisher sends one message. Implemented over autopaho in Run and by
// fakes in tests.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Simulator publishes fake readings and obeys shade commands.
type Simulator struct {
	cfg    config.SimulatorConfig
	topics mqtt.SensorTopics
	logger *logging.Logger

	temp  Sensor
	humi  Sensor
	light Sensor

	mu       sync.Mutex
	position controller.Command
	received int
	unknown  int
}

// New creates a simulator for the given topics.
func New(cfg config.SimulatorConfig, topics mqtt.SensorTopics, logger *logging.Logger) (*Simulator, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if topics.Temperature == "" || topics.Humidity == "" || topics.Light == "" || topics.Control == "" {
		return nil, fmt.Errorf("%w: all four topics are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.Default()
	}

	temp, humi, light := newSensors(cfg)
	return &Simulator{
		cfg:    cfg,
		topics: topics,
		logger: logger.With("component", "simulator"),
		temp:   temp,
		humi:   humi,
		light:  light,
	}, nil
}

// FormatReading renders a sensor value the way the device does: two
// decimals, no unit.
func FormatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Run connects to the broker and publishes every interval until ctx is
// cancelled. A broker that is down at startup is not an error: autopaho
// retries in the background and the loop publishes once it is up.
func (s *Simulator) Run(ctx context.Context, mqttCfg config.MQTTConfig) error {
	brokerURL, err := url.Parse(mqtt.BrokerURL(mqttCfg))
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	qos := byte(mqttCfg.QoS) //nolint:gosec // validated 0..2 by config
	keepAlive := int(mqttCfg.GetKeepAlive() / time.Second)
	if keepAlive > 65535 {
		keepAlive = 65535
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     uint16(keepAlive), //nolint:gosec // bounded above
		CleanStartOnInitialConnection: true,
		ConnectUsername:               mqttCfg.Auth.Username,
		ConnectPassword:               []byte(mqttCfg.Auth.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.logger.Info("simulator connected to broker", "broker", brokerURL.String())
			s.subscribeControl(ctx, cm, qos)
		},
		OnConnectError: func(err error) {
			s.logger.Warn("simulator connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: s.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if pr.Packet.Topic != s.topics.Control {
						return false, nil
					}
					s.HandleCommand(pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				s.logger.Warn("simulator client error", "error", err)
			},
		},
	}

	if mqttCfg.Broker.TLS {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	connCtx, connCancel := context.WithTimeout(ctx, initialConnectWait)
	if err := cm.AwaitConnection(connCtx); err != nil && ctx.Err() == nil {
		s.logger.Warn("simulator initial connection timed out, will retry in background", "error", err)
	}
	connCancel()

	s.runLoop(ctx, &connectionPublisher{cm: cm, qos: qos})

	discCtx, discCancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer discCancel()
	if err := cm.Disconnect(discCtx); err != nil {
		s.logger.Debug("simulator disconnect", "error", err)
	}

	s.logger.Info("simulator stopped")
	return nil
}

// subscribeControl is called on every connection; the session is clean so
// the subscription must be renewed each time.
func (s *Simulator) subscribeControl(ctx context.Context, cm *autopaho.ConnectionManager, qos byte) {
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: s.topics.Control, QoS: qos}},
	}); err != nil {
		s.logger.Warn("simulator subscribe failed", "topic", s.topics.Control, "error", err)
		return
	}
	s.logger.Info("simulator subscribed", "topic", s.topics.Control)
}

// runLoop publishes immediately, then every interval.
func (s *Simulator) runLoop(ctx context.Context, pub Publisher) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.PublishReadings(ctx, pub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PublishReadings(ctx, pub)
		}
	}
}

// PublishReadings reads every sensor and publishes the results. It returns
// the number of messages published.
func (s *Simulator) PublishReadings(ctx context.Context, pub Publisher) int {
	sent := 0

	temp, tempErr := s.temp.Read(ctx)
	humi, humiErr := s.humi.Read(ctx)
	if err := errors.Join(tempErr, humiErr); err != nil {
		s.logger.Warn("failed to read from DHT sensor", "error", err)
	} else {
		sent += s.publish(ctx, pub, s.topics.Temperature, temp)
		sent += s.publish(ctx, pub, s.topics.Humidity, humi)
	}

	if lux, err := s.light.Read(ctx); err != nil {
		s.logger.Warn("failed to read from light sensor", "error", err)
	} else {
		sent += s.publish(ctx, pub, s.topics.Light, lux)
	}

	return sent
}

func (s *Simulator) publish(ctx context.Context, pub Publisher, topic string, value float64) int {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	payload := FormatReading(value)
	if err := pub.Publish(pubCtx, topic, []byte(payload)); err != nil {
		s.logger.Warn("simulator publish failed", "topic", topic, "error", err)
		return 0
	}
	s.logger.Debug("reading published", "topic", topic, "value", payload)
	return 1
}

// HandleCommand applies one payload from the control topic and returns
// the parsed command. Unknown payloads leave the shade where it is.
func (s *Simulator) HandleCommand(payload []byte) (controller.Command, error) {
	cmd, err := controller.ParseCommand(string(payload))

	s.mu.Lock()
	s.received++
	if err != nil {
		s.unknown++
	} else {
		s.position = cmd
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("unknown command", "payload", string(payload))
		return "", err
	}

	s.logger.Info("taking action", "command", cmd.String())
	return cmd, nil
}

// Position returns the last command obeyed, or "" before any.
func (s *Simulator) Position() controller.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// CommandCounts returns how many commands arrived and how many were unknown.
func (s *Simulator) CommandCounts() (received, unknown int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.unknown
}

// connectionPublisher publishes through an autopaho connection manager.
type connectionPublisher struct {
	cm  *autopaho.ConnectionManager
	qos byte
}

func (p *connectionPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     p.qos,
	}); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

package controller

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultThreshold is the lux value at or below which the shade goes down.
const DefaultThreshold = 200.0

// Topics names the four data topics the controller works with.
type Topics struct {
	Temperature string
	Humidity    string
	Light       string
	Control     string
}

// Config is injected into the controller at construction.
type Config struct {
	Topics    Topics
	Threshold float64

	// QoS is used for the subscriptions and the command publish.
	QoS byte
}

// Kind classifies the outcome of handling one message.
type Kind string

const (
	KindTemperature  Kind = "temperature"
	KindHumidity     Kind = "humidity"
	KindLight        Kind = "light"
	KindInvalidValue Kind = "invalid_value"
	KindUnrecognized Kind = "unrecognized"
)

// Kinds lists every outcome kind in reporting order.
var Kinds = []Kind{KindTemperature, KindHumidity, KindLight, KindInvalidValue, KindUnrecognized}

// Reading is one inbound message as delivered by the transport.
type Reading struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Publication is a message the controller wants sent.
type Publication struct {
	Topic   string
	Payload []byte
}

// Outcome is the explicit result of handling one message.
type Outcome struct {
	Kind  Kind
	Topic string
	Raw   string

	// Value is set when HasValue is true.
	Value    float64
	HasValue bool
	Unit     string

	// Command and Publish are set only for a parsed light reading.
	Command Command
	Publish *Publication

	// Err wraps ErrInvalidValue or ErrUnrecognizedTopic.
	Err error
}

// Subscription is a topic the controller asks the transport to subscribe to.
type Subscription struct {
	Topic string
	QoS   byte
}

// ConnectResult is the outcome of one connection attempt.
// Code follows MQTT 3.1.1 CONNACK return codes; 0 is accepted.
type ConnectResult struct {
	Code   byte
	Reason string
	Err    error
}

// Accepted reports whether the connection succeeded.
func (r ConnectResult) Accepted() bool {
	return r.Code == 0 && r.Err == nil
}

var connackReasons = map[byte]string{
	0: "connection accepted",
	1: "unacceptable protocol version",
	2: "identifier rejected",
	3: "server unavailable",
	4: "bad user name or password",
	5: "not authorised",
}

// Description returns Reason when set, otherwise the standard text for Code.
func (r ConnectResult) Description() string {
	if r.Reason != "" {
		return r.Reason
	}
	if r.Code == 0 && r.Err != nil {
		return r.Err.Error()
	}
	if text, ok := connackReasons[r.Code]; ok {
		return text
	}
	return fmt.Sprintf("unknown result code %d", r.Code)
}

// Controller holds the injected config. It keeps no state between calls
// and is safe for concurrent use.
type Controller struct {
	cfg Config
}

// New validates cfg and returns a Controller.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Topics.Temperature == "", cfg.Topics.Humidity == "",
		cfg.Topics.Light == "", cfg.Topics.Control == "":
		return nil, fmt.Errorf("%w: all four topics are required", ErrInvalidConfig)
	case math.IsNaN(cfg.Threshold) || math.IsInf(cfg.Threshold, 0):
		return nil, fmt.Errorf("%w: threshold must be finite", ErrInvalidConfig)
	case cfg.QoS > 2:
		return nil, fmt.Errorf("%w: qos %d", ErrInvalidConfig, cfg.QoS)
	}
	return &Controller{cfg: cfg}, nil
}

// Config returns the injected configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// OnConnect returns the subscriptions to request after a connection
// attempt: temperature, humidity and light in that order. A refused
// attempt yields no subscriptions and an error wrapping
// ErrConnectionRefused. The controller never reconnects on its own.
func (c *Controller) OnConnect(result ConnectResult) ([]Subscription, error) {
	if !result.Accepted() {
		if result.Err != nil {
			return nil, fmt.Errorf("%w: code %d (%s): %w", ErrConnectionRefused, result.Code, result.Description(), result.Err)
		}
		return nil, fmt.Errorf("%w: code %d (%s)", ErrConnectionRefused, result.Code, result.Description())
	}

	return []Subscription{
		{Topic: c.cfg.Topics.Temperature, QoS: c.cfg.QoS},
		{Topic: c.cfg.Topics.Humidity, QoS: c.cfg.QoS},
		{Topic: c.cfg.Topics.Light, QoS: c.cfg.QoS},
	}, nil
}

// HandleMessage classifies one message by exact topic match.
//
// Payloads are parsed by ParseReading; for light, a parse failure is
// KindInvalidValue with no publish. Raw keeps the untrimmed text. Temperature and
// humidity are reported only. Any other topic is KindUnrecognized.
func (c *Controller) HandleMessage(topic string, payload []byte) Outcome {
	raw := string(payload)
	out := Outcome{Topic: topic, Raw: raw}

	switch topic {
	case c.cfg.Topics.Temperature:
		out.Kind = KindTemperature
		out.Unit = "°C"
		out.Value, out.HasValue = parseValue(raw)

	case c.cfg.Topics.Humidity:
		out.Kind = KindHumidity
		out.Unit = "%"
		out.Value, out.HasValue = parseValue(raw)

	case c.cfg.Topics.Light:
		out.Unit = "lux"
		value, err := ParseReading(raw)
		if err != nil {
			out.Kind = KindInvalidValue
			out.Err = fmt.Errorf("%w: %q on %s", ErrInvalidValue, raw, topic)
			return out
		}
		cmd := Decide(value, c.cfg.Threshold)
		out.Kind = KindLight
		out.Value, out.HasValue = value, true
		out.Command = cmd
		out.Publish = &Publication{Topic: c.cfg.Topics.Control, Payload: cmd.Payload()}

	default:
		out.Kind = KindUnrecognized
		out.Err = fmt.Errorf("%w: %s", ErrUnrecognizedTopic, topic)
	}

	return out
}

func parseValue(raw string) (float64, bool) {
	v, err := ParseReading(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

var errHexReading = errors.New("hexadecimal readings are not accepted")

// ParseReading parses a sensor payload as a decimal number. Surrounding
// whitespace, including a trailing newline, is ignored. Hexadecimal
// mantissas ("0x1p8") are rejected; inf and nan spellings are accepted.
func ParseReading(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, fmt.Errorf("%w: %q", errHexReading, raw)
	}
	return strconv.ParseFloat(s, 64)
}

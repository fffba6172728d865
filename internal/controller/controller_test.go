package controller

import (
	"errors"
	"math"
	"testing"
)

func testConfig() Config {
	return Config{
		Topics: Topics{
			Temperature: "id/jihoon/dht/temp",
			Humidity:    "id/jihoon/dht/humi",
			Light:       "id/jihoon/light/lux",
			Control:     "id/jihoon/light/control",
		},
		Threshold: DefaultThreshold,
	}
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing light topic", func(c *Config) { c.Topics.Light = "" }},
		{"missing control topic", func(c *Config) { c.Topics.Control = "" }},
		{"NaN threshold", func(c *Config) { c.Threshold = math.NaN() }},
		{"infinite threshold", func(c *Config) { c.Threshold = math.Inf(1) }},
		{"qos out of range", func(c *Config) { c.QoS = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		value float64
		want  Command
	}{
		{0, CommandDown},
		{-5, CommandDown},
		{150, CommandDown},
		{200, CommandDown},
		{200.0001, CommandUp},
		{300, CommandUp},
		{math.Inf(1), CommandUp},
		{math.Inf(-1), CommandDown},
		{math.NaN(), CommandUp},
	}

	for _, tt := range tests {
		if got := Decide(tt.value, DefaultThreshold); got != tt.want {
			t.Errorf("Decide(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    Command
		wantErr bool
	}{
		{"up", CommandUp, false},
		{"down", CommandDown, false},
		{"UP", "", true},
		{" up", "", true},
		{"", "", true},
		{"stop", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q) error = %v, want ErrUnknownCommand", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCommand_WireForm(t *testing.T) {
	if CommandUp.String() != "up" || string(CommandUp.Payload()) != "up" {
		t.Errorf("CommandUp wire form = %q", CommandUp.Payload())
	}
	if CommandDown.String() != "down" || string(CommandDown.Payload()) != "down" {
		t.Errorf("CommandDown wire form = %q", CommandDown.Payload())
	}
}

func TestHandleMessage_Light(t *testing.T) {
	tests := []struct {
		payload string
		want    Command
		value   float64
	}{
		{"150", CommandDown, 150},
		{"300", CommandUp, 300},
		{"200", CommandDown, 200},
		{"200.0", CommandDown, 200},
		{"200.0001", CommandUp, 200.0001},
		{"0", CommandDown, 0},
		{"-5", CommandDown, -5},
		{"1e3", CommandUp, 1000},
		{"NaN", CommandUp, math.NaN()},
		{" 150", CommandDown, 150},
		{"150\n", CommandDown, 150},
		{"150\r\n", CommandDown, 150},
		{" 300 ", CommandUp, 300},
		{"\t250.5\t", CommandUp, 250.5},
	}

	c := newTestController(t)
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			out := c.HandleMessage("id/jihoon/light/lux", []byte(tt.payload))

			if out.Kind != KindLight {
				t.Fatalf("Kind = %s, want light", out.Kind)
			}
			if out.Command != tt.want {
				t.Errorf("Command = %s, want %s", out.Command, tt.want)
			}
			if out.Publish == nil {
				t.Fatal("Publish = nil, want a command")
			}
			if out.Publish.Topic != "id/jihoon/light/control" {
				t.Errorf("Publish.Topic = %q", out.Publish.Topic)
			}
			if string(out.Publish.Payload) != string(tt.want) {
				t.Errorf("Publish.Payload = %q, want %q", out.Publish.Payload, tt.want)
			}
			if !out.HasValue {
				t.Error("HasValue = false")
			}
			if !math.IsNaN(tt.value) && out.Value != tt.value {
				t.Errorf("Value = %v, want %v", out.Value, tt.value)
			}
			if out.Err != nil {
				t.Errorf("Err = %v, want nil", out.Err)
			}
		})
	}
}

func TestHandleMessage_InvalidLight(t *testing.T) {
	c := newTestController(t)

	for _, payload := range []string{"abc", "", "   ", "12.3.4", "1 50", "bright", "0x1p8", "-0X1p4", "1_000"} {
		t.Run(payload, func(t *testing.T) {
			out := c.HandleMessage("id/jihoon/light/lux", []byte(payload))

			if out.Kind != KindInvalidValue {
				t.Errorf("Kind = %s, want invalid_value", out.Kind)
			}
			if out.Publish != nil || out.Command != "" {
				t.Errorf("Publish = %+v, Command = %q, want none", out.Publish, out.Command)
			}
			if out.Raw != payload {
				t.Errorf("Raw = %q, want %q", out.Raw, payload)
			}
			if !errors.Is(out.Err, ErrInvalidValue) {
				t.Errorf("Err = %v, want ErrInvalidValue", out.Err)
			}
		})
	}
}

func TestHandleMessage_ReportOnly(t *testing.T) {
	c := newTestController(t)

	tests := []struct {
		name     string
		topic    string
		payload  string
		kind     Kind
		unit     string
		hasValue bool
	}{
		{"temperature", "id/jihoon/dht/temp", "23.5", KindTemperature, "°C", true},
		{"humidity", "id/jihoon/dht/humi", "41.00", KindHumidity, "%", true},
		{"temperature text", "id/jihoon/dht/temp", "warm", KindTemperature, "°C", false},
		{"humidity huge", "id/jihoon/dht/humi", "99999", KindHumidity, "%", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.HandleMessage(tt.topic, []byte(tt.payload))

			if out.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", out.Kind, tt.kind)
			}
			if out.Publish != nil {
				t.Errorf("Publish = %+v, want nil", out.Publish)
			}
			if out.Unit != tt.unit {
				t.Errorf("Unit = %q, want %q", out.Unit, tt.unit)
			}
			if out.HasValue != tt.hasValue {
				t.Errorf("HasValue = %v, want %v", out.HasValue, tt.hasValue)
			}
			if out.Raw != tt.payload {
				t.Errorf("Raw = %q", out.Raw)
			}
		})
	}
}

func TestHandleMessage_Unrecognized(t *testing.T) {
	c := newTestController(t)

	for _, topic := range []string{"id/other/light/lux", "id/jihoon/light/control", "id/jihoon/light/lux/", ""} {
		out := c.HandleMessage(topic, []byte("100"))

		if out.Kind != KindUnrecognized {
			t.Errorf("HandleMessage(%q) Kind = %s, want unrecognized", topic, out.Kind)
		}
		if out.Publish != nil {
			t.Errorf("HandleMessage(%q) published %+v", topic, out.Publish)
		}
		if !errors.Is(out.Err, ErrUnrecognizedTopic) {
			t.Errorf("HandleMessage(%q) Err = %v", topic, out.Err)
		}
	}
}

func TestHandleMessage_Idempotent(t *testing.T) {
	c := newTestController(t)

	first := c.HandleMessage("id/jihoon/light/lux", []byte("180"))
	second := c.HandleMessage("id/jihoon/light/lux", []byte("180"))

	if first.Command != CommandDown || second.Command != CommandDown {
		t.Errorf("commands = %s, %s, want down twice", first.Command, second.Command)
	}
}

func TestHandleMessage_NoHysteresis(t *testing.T) {
	c := newTestController(t)

	sequence := []struct {
		payload string
		want    Command
	}{
		{"201", CommandUp},
		{"199", CommandDown},
		{"201", CommandUp},
		{"200", CommandDown},
	}
	for _, step := range sequence {
		if got := c.HandleMessage("id/jihoon/light/lux", []byte(step.payload)).Command; got != step.want {
			t.Errorf("lux %s = %s, want %s", step.payload, got, step.want)
		}
	}
}

func TestHandleMessage_CustomThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 50
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := c.HandleMessage(cfg.Topics.Light, []byte("51")).Command; got != CommandUp {
		t.Errorf("lux 51 with threshold 50 = %s, want up", got)
	}
	if got := c.HandleMessage(cfg.Topics.Light, []byte("50")).Command; got != CommandDown {
		t.Errorf("lux 50 with threshold 50 = %s, want down", got)
	}
}

func TestOnConnect_Success(t *testing.T) {
	cfg := testConfig()
	cfg.QoS = 1
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	subs, err := c.OnConnect(ConnectResult{Code: 0})
	if err != nil {
		t.Fatalf("OnConnect() error = %v", err)
	}

	want := []string{"id/jihoon/dht/temp", "id/jihoon/dht/humi", "id/jihoon/light/lux"}
	if len(subs) != len(want) {
		t.Fatalf("OnConnect() returned %d subscriptions, want 3", len(subs))
	}
	for i, topic := range want {
		if subs[i].Topic != topic {
			t.Errorf("subs[%d].Topic = %q, want %q", i, subs[i].Topic, topic)
		}
		if subs[i].QoS != 1 {
			t.Errorf("subs[%d].QoS = %d, want 1", i, subs[i].QoS)
		}
	}
}

func TestOnConnect_Failure(t *testing.T) {
	c := newTestController(t)

	tests := []struct {
		name     string
		result   ConnectResult
		wantText string
	}{
		{"bad protocol", ConnectResult{Code: 1}, "unacceptable protocol version"},
		{"id rejected", ConnectResult{Code: 2}, "identifier rejected"},
		{"unavailable", ConnectResult{Code: 3}, "server unavailable"},
		{"bad credentials", ConnectResult{Code: 4}, "bad user name or password"},
		{"not authorised", ConnectResult{Code: 5}, "not authorised"},
		{"transport reason", ConnectResult{Code: 254, Reason: "Connection Error"}, "Connection Error"},
		{"transport error", ConnectResult{Err: errors.New("dial tcp: refused")}, "dial tcp: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := c.OnConnect(tt.result)
			if len(subs) != 0 {
				t.Errorf("OnConnect() returned %d subscriptions, want none", len(subs))
			}
			if !errors.Is(err, ErrConnectionRefused) {
				t.Errorf("OnConnect() error = %v, want ErrConnectionRefused", err)
			}
			if tt.result.Description() != tt.wantText {
				t.Errorf("Description() = %q, want %q", tt.result.Description(), tt.wantText)
			}
		})
	}
}

func TestConnectResult_UnknownCode(t *testing.T) {
	r := ConnectResult{Code: 77}
	if r.Description() != "unknown result code 77" {
		t.Errorf("Description() = %q", r.Description())
	}
	if r.Accepted() {
		t.Error("Accepted() = true for code 77")
	}
}

func TestParseReading(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"23.5", 23.5, false},
		{"41.00\n", 41, false},
		{"  -3 ", -3, false},
		{"+1e2", 100, false},
		{"inf", math.Inf(1), false},
		{"0x1p8", 0, true},
		{"0X10p0", 0, true},
		{"0.5", 0.5, false},
		{"", 0, true},
		{"1_000", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseReading(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseReading(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseReading(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestHandleMessage_ReportOnlyTrimsWhitespace(t *testing.T) {
	c := newTestController(t)

	out := c.HandleMessage("id/jihoon/dht/temp", []byte("23.5\n"))
	if !out.HasValue || out.Value != 23.5 {
		t.Errorf("Value = %v (HasValue %v), want 23.5", out.Value, out.HasValue)
	}
	if out.Raw != "23.5\n" {
		t.Errorf("Raw = %q, want untrimmed payload", out.Raw)
	}
}

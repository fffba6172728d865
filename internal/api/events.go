package api

import (
	"context"
	"math"
	"time"

	"github.com/nerrad567/luxbridge/internal/controller"
)

// ReadingEvent is broadcast on ChannelReading for every handled message.
type ReadingEvent struct {
	Topic      string    `json:"topic"`
	Kind       string    `json:"kind"`
	Raw        string    `json:"raw"`
	Value      *float64  `json:"value,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// DecisionEvent is broadcast on ChannelDecision for every issued command.
// Lux is null when the reading was NaN or infinite.
type DecisionEvent struct {
	Topic      string    `json:"topic"`
	Command    string    `json:"command"`
	Lux        *float64  `json:"lux"`
	Threshold  float64   `json:"threshold"`
	ReceivedAt time.Time `json:"received_at"`
}

// Broadcaster is the subset of Hub the event observer needs.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// EventObserver relays controller outcomes to WebSocket clients.
type EventObserver struct {
	hub       Broadcaster
	threshold float64
}

// NewEventObserver returns a controller.Observer that broadcasts on hub.
func NewEventObserver(hub Broadcaster, threshold float64) *EventObserver {
	return &EventObserver{hub: hub, threshold: threshold}
}

// Name implements controller.Observer.
func (o *EventObserver) Name() string {
	return "websocket"
}

// Observe implements controller.Observer.
func (o *EventObserver) Observe(_ context.Context, reading controller.Reading, out controller.Outcome) error {
	ev := ReadingEvent{
		Topic:      out.Topic,
		Kind:       string(out.Kind),
		Raw:        out.Raw,
		Unit:       out.Unit,
		ReceivedAt: reading.ReceivedAt,
	}
	value := finiteValue(out)
	ev.Value = value
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	o.hub.Broadcast(ChannelReading, ev)

	if out.Publish != nil {
		o.hub.Broadcast(ChannelDecision, DecisionEvent{
			Topic:      out.Publish.Topic,
			Command:    out.Command.String(),
			Lux:        value,
			Threshold:  o.threshold,
			ReceivedAt: reading.ReceivedAt,
		})
	}

	return nil
}

// finiteValue returns the outcome's value, or nil when it has none or it
// cannot be encoded as JSON.
func finiteValue(out controller.Outcome) *float64 {
	if !out.HasValue || math.IsNaN(out.Value) || math.IsInf(out.Value, 0) {
		return nil
	}
	v := out.Value
	return &v
}

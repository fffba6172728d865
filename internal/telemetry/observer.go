// Package telemetry feeds controller outcomes into the InfluxDB sink.
package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/nerrad567/luxbridge/internal/controller"
)

// Writer is the subset of influxdb.Client the observer needs.
type Writer interface {
	WriteReading(device, kind, topic string, value float64, at time.Time)
	WriteCommand(device, command string, lux, threshold float64, at time.Time)
	WriteInvalid(device, kind, topic, raw string, at time.Time)
}

// Observer writes one point per parsed reading, one per issued command
// and one per unparseable payload, including temperature and humidity.
// NaN and infinite readings are stored as invalid since InfluxDB fields
// cannot hold them. Writes are buffered by the client, so Observe never
// blocks.
type Observer struct {
	writer    Writer
	device    string
	threshold float64
	kinds     map[string]string
}

// NewObserver returns a controller.Observer for device. cfg supplies the
// topic names used to tag invalid payloads with their sensor kind.
func NewObserver(writer Writer, device string, cfg controller.Config) *Observer {
	return &Observer{
		writer:    writer,
		device:    device,
		threshold: cfg.Threshold,
		kinds: map[string]string{
			cfg.Topics.Temperature: string(controller.KindTemperature),
			cfg.Topics.Humidity:    string(controller.KindHumidity),
			cfg.Topics.Light:       string(controller.KindLight),
		},
	}
}

// Name implements controller.Observer.
func (o *Observer) Name() string {
	return "influxdb"
}

// Observe implements controller.Observer.
func (o *Observer) Observe(_ context.Context, reading controller.Reading, out controller.Outcome) error {
	at := reading.ReceivedAt

	switch out.Kind {
	case controller.KindTemperature, controller.KindHumidity, controller.KindLight:
		if !out.HasValue {
			o.writer.WriteInvalid(o.device, string(out.Kind), out.Topic, out.Raw, at)
			return nil
		}
		if math.IsNaN(out.Value) || math.IsInf(out.Value, 0) {
			o.writer.WriteInvalid(o.device, string(out.Kind), out.Topic, out.Raw, at)
		} else {
			o.writer.WriteReading(o.device, string(out.Kind), out.Topic, out.Value, at)
		}
		if out.Publish != nil {
			o.writer.WriteCommand(o.device, out.Command.String(), out.Value, o.threshold, at)
		}
	case controller.KindInvalidValue:
		kind := o.kinds[out.Topic]
		if kind == "" {
			kind = "unknown"
		}
		o.writer.WriteInvalid(o.device, kind, out.Topic, out.Raw, at)
	}

	return nil
}

package influxdb

import (
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementReadings = "sensor_readings"
	MeasurementCommands = "shade_commands"
	MeasurementInvalid  = "invalid_readings"
)

// WriteReading records a numeric sensor reading. NaN and infinite values
// cannot be stored as fields and are dropped.
//
// Example:
//
//	client.WriteReading("jihoon", "light", "id/jihoon/light/lux", 312.5, at)
func (c *Client) WriteReading(device, kind, topic string, value float64, at time.Time) {
	if !finite(value) {
		return
	}
	c.WritePoint(MeasurementReadings,
		map[string]string{"device": device, "kind": kind, "topic": topic},
		map[string]any{"value": value},
		at,
	)
}

// WriteCommand records an issued shade command. position is 1 for up and
// 0 for down so the series can be graphed directly. The lux field is
// omitted when lux is NaN or infinite.
func (c *Client) WriteCommand(device, command string, lux, threshold float64, at time.Time) {
	position := 0
	if command == "up" {
		position = 1
	}
	fields := map[string]any{"threshold": threshold, "position": position}
	if finite(lux) {
		fields["lux"] = lux
	}
	c.WritePoint(MeasurementCommands,
		map[string]string{"device": device, "command": command},
		fields,
		at,
	)
}

// WriteInvalid records a payload that could not be parsed.
func (c *Client) WriteInvalid(device, kind, topic, raw string, at time.Time) {
	c.WritePoint(MeasurementInvalid,
		map[string]string{"device": device, "kind": kind, "topic": topic},
		map[string]any{"raw": raw},
		at,
	)
}

// WritePoint writes a point with explicit tags and fields. A zero time
// means now. Dropped silently when not connected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

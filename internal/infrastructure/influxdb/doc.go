// Package influxdb writes luxbridge telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library: a ping on connect,
// a non-blocking batched write API, and an error callback for failed
// batches. Writes never block the caller.
//
// Measurements:
//
//	sensor_readings  tags: device, kind, topic      fields: value
//	shade_commands   tags: device, command          fields: lux, threshold, position
//	invalid_readings tags: device, kind, topic      fields: raw
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("jihoon", "temperature", "id/jihoon/dht/temp", 23.5, time.Now())
package influxdb

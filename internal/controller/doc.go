// Package controller implements the light-threshold decision and the
// service that binds it to an MQTT transport.
//
// The decision core is pure. OnConnect turns a connection result into the
// subscriptions the bridge needs, and HandleMessage turns one inbound
// message into an Outcome: a report, an error classification, or a
// command to publish. Nothing is remembered between calls.
//
//	lux <= threshold  ->  "down"
//	lux >  threshold  ->  "up"
//
// Service wires the core to a Transport, a dispatch queue and optional
// observers (decision log, telemetry, live stream). Observers see every
// outcome after the command has been handed to the transport and can
// never hold it back.
package controller

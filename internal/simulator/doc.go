// Package simulator plays the device side of luxbridge: a DHT sensor and a
// light sensor publishing readings, and a shade actuator obeying commands.
//
// Every interval it publishes temperature and humidity together (neither
// is sent when either read fails) and then light, each formatted with two
// decimals. It subscribes to the control topic and reports every command
// it receives. The connection is managed by autopaho, which reconnects in
// the background and re-subscribes on every connection.
package simulator

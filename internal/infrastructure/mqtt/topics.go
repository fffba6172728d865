package mqtt

import (
	"fmt"

	"github.com/nerrad567/luxbridge/internal/infrastructure/config"
)

// TopicPrefix is the root of every device namespace.
const TopicPrefix = "id"

// Topics provides builders for one device's MQTT topics.
//
//	topics := mqtt.Topics{Device: "jihoon"}
//	topics.Light() // "id/jihoon/light/lux"
type Topics struct {
	Device string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", TopicPrefix, t.Device)
}

// Temperature returns the temperature reading topic.
//
// Example: id/jihoon/dht/temp
func (t Topics) Temperature() string {
	return t.base() + "/dht/temp"
}

// Humidity returns the humidity reading topic.
//
// Example: id/jihoon/dht/humi
func (t Topics) Humidity() string {
	return t.base() + "/dht/humi"
}

// Light returns the light-level reading topic.
//
// Example: id/jihoon/light/lux
func (t Topics) Light() string {
	return t.base() + "/light/lux"
}

// Control returns the topic the shade command is published on.
//
// Example: id/jihoon/light/control
func (t Topics) Control() string {
	return t.base() + "/light/control"
}

// BridgeStatus returns the retained online/offline status topic.
//
// Example: id/jihoon/bridge/status
func (t Topics) BridgeStatus() string {
	return t.base() + "/bridge/status"
}

// SensorTopics is the fully resolved set of topics the bridge uses.
type SensorTopics struct {
	Temperature string
	Humidity    string
	Light       string
	Control     string
	Status      string
}

// ResolveTopics derives the device topics and applies any explicit
// per-topic overrides from config.
func ResolveTopics(cfg config.TopicsConfig) SensorTopics {
	t := Topics{Device: cfg.Device}
	return SensorTopics{
		Temperature: pick(cfg.Temperature, t.Temperature()),
		Humidity:    pick(cfg.Humidity, t.Humidity()),
		Light:       pick(cfg.Light, t.Light()),
		Control:     pick(cfg.Control, t.Control()),
		Status:      pick(cfg.Status, t.BridgeStatus()),
	}
}

func pick(override, derived string) string {
	if override != "" {
		return override
	}
	return derived
}

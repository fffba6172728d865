package config

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for luxbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Topics     TopicsConfig     `yaml:"topics"`
	Controller ControllerConfig `yaml:"controller"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"` // seconds
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// RetryInterval paces attempts until the broker first accepts; after that
// the MQTT client library reconnects on its own, up to MaxDelay apart.
type MQTTReconnectConfig struct {
	RetryInterval int `yaml:"retry_interval"` // seconds
	MaxDelay      int `yaml:"max_delay"`      // seconds
}

// TopicsConfig names the sensor and control topics.
//
// Device is substituted into the id/<device>/... hierarchy. Any individual
// topic may be overridden; empty overrides fall back to the hierarchy.
type TopicsConfig struct {
	Device      string `yaml:"device"`
	Temperature string `yaml:"temperature"`
	Humidity    string `yaml:"humidity"`
	Light       string `yaml:"light"`
	Control     string `yaml:"control"`
	Status      string `yaml:"status"`
}

// ControllerConfig contains threshold controller settings.
type ControllerConfig struct {
	// Threshold is the lux boundary. Readings at or below it command "down".
	Threshold float64 `yaml:"threshold"`

	// Workers is the number of goroutines draining the reading queue.
	// A single worker preserves the arrival order of commands.
	Workers int `yaml:"workers"`

	// QueueSize bounds the number of readings waiting to be handled.
	QueueSize int `yaml:"queue_size"`
}

// DatabaseConfig contains SQLite decision log settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SimulatorConfig contains settings for the simulated sensor node.
type SimulatorConfig struct {
	ClientID    string        `yaml:"client_id"`
	Interval    time.Duration `yaml:"interval"`
	Temperature SensorConfig  `yaml:"temperature"`
	Humidity    SensorConfig  `yaml:"humidity"`
	Light       SensorConfig  `yaml:"light"`
}

// SensorConfig describes a simulated sensor as base ± variation.
type SensorConfig struct {
	Base      float64 `yaml:"base"`
	Variation float64 `yaml:"variation"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUXBRIDGE_SECTION_KEY
// For example: LUXBRIDGE_MQTT_HOST, LUXBRIDGE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadDefaults builds a configuration from defaults and environment
// variables only. Used when no config file is present.
func LoadDefaults() (*Config, error) {
	return finish(defaultConfig())
}

// finish applies environment overrides and validates.
func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "luxbridge",
			},
			QoS:       0,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				RetryInterval: 10,
				MaxDelay:      60,
			},
		},
		Topics: TopicsConfig{
			Device: "jihoon",
		},
		Controller: ControllerConfig{
			Threshold: 200,
			Workers:   1,
			QueueSize: 64,
		},
		Database: DatabaseConfig{
			Enabled:     false,
			Path:        "./data/luxbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "luxbridge",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Simulator: SimulatorConfig{
			ClientID:    "luxbridge-sim",
			Interval:    5 * time.Second,
			Temperature: SensorConfig{Base: 22, Variation: 3},
			Humidity:    SensorConfig{Base: 50, Variation: 10},
			Light:       SensorConfig{Base: 200, Variation: 150},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUXBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// MQTT
	if v := os.Getenv("LUXBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUXBRIDGE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LUXBRIDGE_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("LUXBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUXBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Topics and controller
	if v := os.Getenv("LUXBRIDGE_DEVICE"); v != "" {
		cfg.Topics.Device = v
	}
	if v := os.Getenv("LUXBRIDGE_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LUXBRIDGE_THRESHOLD: %w", err)
		}
		cfg.Controller.Threshold = threshold
	}

	// Database
	if v := os.Getenv("LUXBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("LUXBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("LUXBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Logging
	if v := os.Getenv("LUXBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive <= 0 {
		errs = append(errs, "mqtt.keep_alive must be positive")
	}
	if c.MQTT.Reconnect.RetryInterval <= 0 {
		errs = append(errs, "mqtt.reconnect.retry_interval must be positive")
	}

	// Topic validation
	if c.Topics.Device == "" {
		errs = append(errs, "topics.device is required")
	} else if strings.ContainsAny(c.Topics.Device, "/+#") {
		errs = append(errs, "topics.device must not contain '/', '+' or '#'")
	}
	for name, topic := range map[string]string{
		"topics.temperature": c.Topics.Temperature,
		"topics.humidity":    c.Topics.Humidity,
		"topics.light":       c.Topics.Light,
		"topics.control":     c.Topics.Control,
		"topics.status":      c.Topics.Status,
	} {
		if strings.ContainsAny(topic, "+#") {
			errs = append(errs, name+" must not contain wildcards")
		}
	}

	// Controller validation
	if math.IsNaN(c.Controller.Threshold) || math.IsInf(c.Controller.Threshold, 0) {
		errs = append(errs, "controller.threshold must be a finite number")
	}
	if c.Controller.Workers < 1 {
		errs = append(errs, "controller.workers must be at least 1")
	}
	if c.Controller.QueueSize < 1 {
		errs = append(errs, "controller.queue_size must be at least 1")
	}

	// Optional components
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Simulator validation
	if c.Simulator.Interval <= 0 {
		errs = append(errs, "simulator.interval must be positive")
	}

	if len(errs) > 0 {
		// Topic checks iterate a map; sort for stable messages.
		sort.Strings(errs)
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Fallbacks for durations left at zero.
const (
	defaultKeepAliveSeconds     = 60
	defaultRetryIntervalSeconds = 10
	defaultMaxDelaySeconds      = 60
)

// GetKeepAlive returns the MQTT keepalive interval as a Duration.
func (c MQTTConfig) GetKeepAlive() time.Duration {
	return seconds(c.KeepAlive, defaultKeepAliveSeconds)
}

// GetRetryInterval returns the pause between connect attempts made before
// the broker has accepted the client once.
func (c MQTTConfig) GetRetryInterval() time.Duration {
	return seconds(c.Reconnect.RetryInterval, defaultRetryIntervalSeconds)
}

// GetMaxReconnectDelay returns the upper bound the MQTT library uses
// between reconnect attempts.
func (c MQTTConfig) GetMaxReconnectDelay() time.Duration {
	return seconds(c.Reconnect.MaxDelay, defaultMaxDelaySeconds)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APITimeoutConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APITimeoutConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APITimeoutConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Idle) * time.Second
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

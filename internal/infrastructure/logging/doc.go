// Package logging provides structured logging for luxbridge.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("command published", "command", "down", "lux", 150.0)
//
// Never log broker passwords or InfluxDB tokens.
package logging

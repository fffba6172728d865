// Package api implements the luxbridge status API and live event stream.
//
// This package provides:
//   - Read-only REST endpoints for health, metrics and the decision log
//   - WebSocket hub broadcasting reading and decision events
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Graceful Degradation
//
// Every dependency except the logger is optional. Without a decision log the
// decisions endpoint answers 503; without the controller service the metrics
// omit the controller section. The bridge itself never depends on the API.
package api

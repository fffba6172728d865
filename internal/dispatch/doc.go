// Package dispatch provides a bounded hand-off queue between a message
// source that must never block and the goroutines that process messages.
//
// Submit is non-blocking: when the buffer is full the item is rejected
// with ErrQueueFull and counted as dropped. A single worker preserves
// submission order; more workers trade ordering for throughput.
//
// Close stops intake, lets the workers finish everything already queued,
// and waits for them (bounded by the caller's context).
package dispatch

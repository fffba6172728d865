package dispatch

import "errors"

var (
	// ErrQueueFull is returned by Submit when the buffer has no free slot.
	ErrQueueFull = errors.New("dispatch: queue full")

	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("dispatch: queue closed")

	// ErrInvalidOptions is returned by New for non-positive sizes.
	ErrInvalidOptions = errors.New("dispatch: invalid options")
)

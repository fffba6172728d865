package controller

import "errors"

var (
	// ErrInvalidValue marks a light reading whose payload is not a number.
	ErrInvalidValue = errors.New("controller: invalid numeric value")

	// ErrUnrecognizedTopic marks a message on a topic the bridge does not handle.
	ErrUnrecognizedTopic = errors.New("controller: unrecognized topic")

	// ErrConnectionRefused marks a connect result other than accepted.
	ErrConnectionRefused = errors.New("controller: connection refused")

	// ErrUnknownCommand is returned by ParseCommand for anything but up/down.
	ErrUnknownCommand = errors.New("controller: unknown command")

	// ErrInvalidConfig is returned by New for missing topics or a non-finite threshold.
	ErrInvalidConfig = errors.New("controller: invalid config")
)

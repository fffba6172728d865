package controller

import "fmt"

// Command is the shade actuation published on the control topic.
// Its wire form is the literal string.
type Command string

const (
	CommandUp   Command = "up"
	CommandDown Command = "down"
)

// String returns the wire form.
func (c Command) String() string {
	return string(c)
}

// Payload returns the wire form as bytes.
func (c Command) Payload() []byte {
	return []byte(c)
}

// ParseCommand maps an exact wire payload back to a Command.
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CommandUp:
		return CommandUp, nil
	case CommandDown:
		return CommandDown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// Decide applies the threshold rule. The boundary is inclusive on the
// down side: a value equal to threshold yields CommandDown. NaN compares
// false and yields CommandUp.
func Decide(value, threshold float64) Command {
	if value <= threshold {
		return CommandDown
	}
	return CommandUp
}

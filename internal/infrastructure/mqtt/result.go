package mqtt

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// ConnectResult describes the outcome of one connection attempt.
//
// Code carries the CONNACK return code (0 means accepted). Failures that
// never reached a CONNACK, such as a refused TCP dial, are reported with
// packets.ErrNetworkError.
type ConnectResult struct {
	Code      byte
	Err       error
	Reconnect bool
}

// Accepted reports whether the broker accepted the connection.
func (r ConnectResult) Accepted() bool {
	return r.Code == packets.Accepted && r.Err == nil
}

// String returns the broker's description of the return code.
func (r ConnectResult) String() string {
	if desc, ok := packets.ConnackReturnCodes[r.Code]; ok {
		return desc
	}
	return fmt.Sprintf("Connection Refused: unknown code %d", r.Code)
}

// ResultFromError maps a connect error back to its CONNACK return code.
// A nil error is an accepted connection.
func ResultFromError(err error) ConnectResult {
	if err == nil {
		return ConnectResult{Code: packets.Accepted}
	}
	for code, known := range packets.ConnErrors {
		if known != nil && errors.Is(err, known) {
			return ConnectResult{Code: code, Err: err}
		}
	}
	return ConnectResult{Code: packets.ErrNetworkError, Err: err}
}

package monitor

import (
	"errors"
	"fmt"
)

// ErrExitRequested is returned by ForwardInput when the exit key is read.
var ErrExitRequested = errors.New("exit requested")

// TransportError represents a failure to open, read or write a console.
type TransportError struct {
	// Port is the device path or socket:// URL
	Port string
	// Op is "open", "read" or "write"
	Op string
	// Underlying error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("console %s: %s failed: %v", e.Port, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

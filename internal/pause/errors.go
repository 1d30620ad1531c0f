package pause

import (
	"errors"
	"fmt"
)

// ErrVersionMismatch marks a message from a peer speaking another protocol version.
var ErrVersionMismatch = errors.New("pause protocol version mismatch")

// DecodeError reports a malformed pause message.
type DecodeError struct {
	Field   string
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Field != "" {
		return "decode pause message: " + e.Field + ": " + msg
	}
	return "decode pause message: " + msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

package protocol

import (
	"errors"
	"fmt"
)

// DecodeError marks a response that was received but is not interpretable
// as a resolution: the server answered, so retrying cannot help. HTTP-level
// failures stay plain errors and remain subject to the endpoint's retry
// policy.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// decodeErrf builds a DecodeError from a format string.
func decodeErrf(format string, args ...any) error {
	return &DecodeError{Err: fmt.Errorf(format, args...)}
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

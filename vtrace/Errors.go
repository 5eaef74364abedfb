package vtrace

import "errors"

// Error implements errors returned when V-trace is called with
// malformed arguments. These are programming errors of the caller and
// are never retried.
type Error struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrShape is wrapped by every error reporting inconsistent tensor
// shapes or ranks
var ErrShape = errors.New("shape mismatch")

// ErrConfig is wrapped by every error reporting an invalid Config
var ErrConfig = errors.New("invalid config")

// IsShapeError returns whether or not an error reports that the
// tensors passed to V-trace have inconsistent shapes or ranks.
func IsShapeError(err error) bool {
	return errors.Is(err, ErrShape)
}

// IsConfigError returns whether or not an error reports an invalid
// Config.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

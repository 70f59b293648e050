package manager

import "errors"

// tooBusyError signals slot-wait timeout/overflow for 429 mapping. Callers
// should retry later; the server is healthy.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: no execution slot available" }

// ErrTooBusy constructs the backpressure error.
func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// invalidRequestError signals a validation failure before any resource was
// acquired.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a bad request (return 400).
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}

// loadError signals that the model failed to initialize on the target device.
// Fatal for that load attempt: the manager latches the failed state until an
// explicit unload.
type loadError struct{ err error }

func (e loadError) Error() string { return "model load failed: " + e.err.Error() }
func (e loadError) Unwrap() error { return e.err }

// ErrLoad wraps a runtime load failure.
func ErrLoad(err error) error { return loadError{err: err} }

// IsLoadFailed reports whether err indicates a failed model load.
func IsLoadFailed(err error) bool {
	var e loadError
	return errors.As(err, &e)
}

// resourceExhaustedError signals an out-of-memory condition during one
// generation. The model stays ready; only that request failed.
type resourceExhaustedError struct{ err error }

func (e resourceExhaustedError) Error() string { return "resource exhausted: " + e.err.Error() }
func (e resourceExhaustedError) Unwrap() error { return e.err }

// ErrResourceExhausted wraps a device OOM signal.
func ErrResourceExhausted(err error) error { return resourceExhaustedError{err: err} }

// IsResourceExhausted reports whether err indicates device memory exhaustion.
func IsResourceExhausted(err error) bool {
	var e resourceExhaustedError
	return errors.As(err, &e)
}

// timeoutError signals that a generation exceeded its configured time budget.
type timeoutError struct{ op string }

func (e timeoutError) Error() string { return e.op + " timed out" }

// ErrTimeout constructs a timeoutError for the named operation.
func ErrTimeout(op string) error { return timeoutError{op: op} }

// IsTimeout reports whether err indicates an operation deadline was exceeded.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}

package job

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by the Registry.
var (
	// ErrNotFound means no job exists for the given id.
	ErrNotFound = errors.New("job not found")
	// ErrDuplicateJob means a job with the same id was already submitted.
	ErrDuplicateJob = errors.New("job already submitted")
	// ErrAlreadyComplete means a result was already recorded for the job.
	ErrAlreadyComplete = errors.New("job already complete")
)

// Error classes recorded on failed jobs.
const (
	ClassConversion = "conversion_error"
	ClassInternal   = "internal_error"
	ClassCancelled  = "cancelled"
	ClassTimeout    = "timeout"
)

// RunError is a classified failure from a single job execution. Retryable
// tells the worker whether re-running the job could succeed (I/O and
// conversion trouble) or not (engine bugs, cancellation).
type RunError struct {
	Class     string
	Retryable bool
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func conversionErr(err error) *RunError {
	// The converter checks its context and wraps expiry like any other
	// failure. An expired deadline is the job's wall-clock budget running
	// out, not bad input: it must not be retried as a conversion failure.
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutErr(err)
	}
	return &RunError{Class: ClassConversion, Retryable: true, Err: err}
}

func internalErr(err error) *RunError {
	return &RunError{Class: ClassInternal, Retryable: false, Err: err}
}

func cancelledErr(err error) *RunError {
	return &RunError{Class: ClassCancelled, Retryable: false, Err: err}
}

func timeoutErr(err error) *RunError {
	return &RunError{Class: ClassTimeout, Retryable: false, Err: err}
}

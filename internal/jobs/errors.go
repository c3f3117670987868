package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations.
// These can be checked with errors.Is().
var (
	ErrValidation  = errors.New("invalid conversion request")
	ErrTimeout     = errors.New("conversion timed out")
	ErrCancelled   = errors.New("conversion cancelled")
	ErrJobNotFound = errors.New("job not found")
	ErrClosed      = errors.New("controller closed")
)

// ValidationError is returned for requests rejected before ffmpeg starts.
// Msg is the user-facing text; Path names the offending file or directory.
type ValidationError struct {
	Path string
	Msg  string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// jobNotFoundError returns a wrapped error for a job that is not running.
func jobNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

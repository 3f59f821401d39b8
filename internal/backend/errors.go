package backend

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGeneration is matched by every error a Generator returns.
	ErrGeneration = errors.New("generation failed")

	// ErrGenerationTimeout is matched when the per-call deadline expired.
	ErrGenerationTimeout = errors.New("generation timed out")
)

// GenerationError wraps a backend failure.
type GenerationError struct {
	Backend string
	Err     error
	Timeout bool
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: generation timed out: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool {
	switch target {
	case ErrGeneration:
		return true
	case ErrGenerationTimeout:
		return e.Timeout
	}
	return false
}

// wrapError converts err into a *GenerationError. ctx is the call context,
// used to tell a deadline expiry from other failures.
func wrapError(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return err
	}
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &GenerationError{Backend: name, Err: err, Timeout: timeout}
}

package pipeline

import (
	"errors"
	"fmt"
)

// ErrAborted is matched by the error Run returns when it stopped early,
// either on a fail-fast tier failure or on cancellation.
var ErrAborted = errors.New("pipeline aborted")

// ErrorKind classifies a tier failure.
type ErrorKind string

const (
	KindRender     ErrorKind = "render"     // Strict rendering found an unresolved variable
	KindGeneration ErrorKind = "generation" // The generator failed
	KindTimeout    ErrorKind = "timeout"    // The generator exceeded its deadline
	KindCanceled   ErrorKind = "canceled"   // The run was canceled before the tier started
)

// TierError is a failure attributed to one tier.
type TierError struct {
	Tier string
	Kind ErrorKind
	Err  error

	// Aborted is set when this failure ended the run.
	Aborted bool
}

func (e *TierError) Error() string {
	return fmt.Sprintf("tier %q: %s: %v", e.Tier, e.Kind, e.Err)
}

func (e *TierError) Unwrap() error { return e.Err }

func (e *TierError) Is(target error) bool {
	return target == ErrAborted && e.Aborted
}

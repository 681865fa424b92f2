package producer

import (
	"fmt"

	"github.com/framewell/fwb/internal/target"
)

// ResolutionError means the build graph could not be resolved into concrete
// targets. Fatal for the run.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve build products: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// BuildError means the compiler or extractor failed for a target. Fatal for
// the run; there is no further fallback once a target reaches build
// dispatch.
type BuildError struct {
	Target string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build %s: %v", e.Target, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// InvariantError is a programmer defect, not a user-facing failure: the
// build worklist must only ever contain library and binary targets.
type InvariantError struct {
	Target string
	Kind   target.Kind
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal error: target %s reached build dispatch with kind %q", e.Target, e.Kind)
}

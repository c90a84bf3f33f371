package problem

import (
	"errors"
	"fmt"
)

// Structural and contract errors shared by the solver core. Numerical
// failures (dt underflow, divergence, step budget) are not errors: they
// are return codes carried inside the solution.
var (
	// ErrInvalidSpec indicates a problem specification that violates a
	// structural invariant. Caught during initialization, fatal to the run.
	ErrInvalidSpec = errors.New("diffeq: invalid problem specification")

	// ErrUnsupportedAlgorithm indicates the requested algorithm does not
	// support the problem's kind. Surfaced before any stepping occurs.
	ErrUnsupportedAlgorithm = errors.New("diffeq: algorithm does not support problem kind")

	// ErrUserFunction wraps a failure raised inside a user callable,
	// distinguishable from numerical failure.
	ErrUserFunction = errors.New("diffeq: user function failed")

	// ErrOutOfRange indicates a dense-output query outside the solved span.
	ErrOutOfRange = errors.New("diffeq: time outside solved span")
)

// SpecError reports which field of a Spec violated an invariant.
type SpecError struct {
	Field   string
	Message string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("invalid problem spec: %s: %s", e.Field, e.Message)
}

func (e *SpecError) Unwrap() error { return ErrInvalidSpec }

// UserFunctionError carries the recovered panic value and call site of a
// failed user callable.
type UserFunctionError struct {
	Op        string
	T         float64
	Recovered any
}

func (e *UserFunctionError) Error() string {
	return fmt.Sprintf("user %s function failed at t=%g: %v", e.Op, e.T, e.Recovered)
}

func (e *UserFunctionError) Unwrap() error { return ErrUserFunction }

// OutOfRangeError reports a dense query outside the solved interval.
type OutOfRangeError struct {
	T        float64
	T0, TEnd float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("t=%g outside solved span [%g, %g]", e.T, e.T0, e.TEnd)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

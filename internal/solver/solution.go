package solver

import (
	"github.com/google/uuid"

	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// ReturnCode classifies how a run ended. Numerical failures are carried
// here rather than as errors because the history up to the failure point
// remains valid and usable.
type ReturnCode int

const (
	Success ReturnCode = iota
	// MaxIters: the configured step budget was exhausted before tf.
	MaxIters
	// DtLessThanMin: step-size control drove dt below the configured floor.
	DtLessThanMin
	// Unstable: an implicit solve kept diverging after bounded retries.
	Unstable
	// Terminated: cooperative cancellation or a terminal event.
	Terminated
)

func (c ReturnCode) String() string {
	switch c {
	case Success:
		return "success"
	case MaxIters:
		return "max_iters"
	case DtLessThanMin:
		return "dt_less_than_min"
	case Unstable:
		return "unstable"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Stats aggregates run counters.
type Stats struct {
	Accepted     int
	Rejected     int
	Dynamics     int
	Residual     int
	Noise        int
	History      int
	NoiseDraws   int
	NewtonIters  int
	LinearSolves int
}

// Solution owns the accepted samples, the dense interpolant, and the run
// outcome. Immutable once returned; evaluation is a pure function of t.
type Solution struct {
	id     uuid.UUID
	ts     []float64
	us     []problem.State
	interp *dense.Interpolant
	code   ReturnCode
	stats  Stats

	savedTs []float64
	savedUs []problem.State
}

func (s *Solution) ID() uuid.UUID { return s.id }

// At evaluates the dense output; queries outside the solved span fail with
// an error wrapping problem.ErrOutOfRange.
func (s *Solution) At(t float64) (problem.State, error) {
	if s.interp == nil {
		return nil, &problem.OutOfRangeError{T: t, T0: s.ts[0], TEnd: s.ts[0]}
	}
	return s.interp.At(t)
}

// Samples returns the discrete accepted points in time order.
func (s *Solution) Samples() ([]float64, []problem.State) { return s.ts, s.us }

// Saved returns the extra samples requested through Options.SaveAt.
func (s *Solution) Saved() ([]float64, []problem.State) { return s.savedTs, s.savedUs }

func (s *Solution) Stats() Stats { return s.stats }

func (s *Solution) ReturnCode() ReturnCode { return s.code }

// Interpolant exposes the owned dense output, for callers that want to
// query without the Solution wrapper.
func (s *Solution) Interpolant() *dense.Interpolant { return s.interp }

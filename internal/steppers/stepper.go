// Package steppers implements the stepping strategies consumed by the
// solver through the algorithm registry: an embedded Dormand-Prince 5(4)
// pair for nonstiff ODE/DDE problems, classic RK4 on a fixed grid, an
// implicit backward-Euler method with Newton iteration for stiff ODEs and
// index-1 DAEs, and Euler-Maruyama for SDEs.
package steppers

import (
	"math"

	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/noise"
	"github.com/san-kum/diffeq/internal/problem"
)

// Descriptor advertises an algorithm's capabilities to the registry.
type Descriptor struct {
	Name     string
	Kinds    []problem.Kind
	Order    int
	Adaptive bool
	// Implicit marks methods that require Jacobian evaluation and linear
	// solves per step.
	Implicit bool
}

func (d Descriptor) Supports(k problem.Kind) bool {
	for _, kind := range d.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// StepState is the integrator-owned state handed to a stepper for one
// trial step.
type StepState struct {
	T float64
	U problem.State
	// DU is the current derivative; required for DAE stepping.
	DU problem.State

	Abstol, Reltol float64

	// Noise supplies Wiener increments for stochastic problems.
	Noise *noise.Wiener
}

// Result is the outcome of one trial step of size h. The integrator
// accepts it iff ErrNorm <= 1 under the mixed tolerance norm.
type Result struct {
	UNew  problem.State
	DUNew problem.State

	// ErrNorm is the scaled local error estimate; zero for non-adaptive
	// steppers.
	ErrNorm float64

	// Segment is the continuous extension over the step, consumed by the
	// dense output when the step is accepted.
	Segment dense.Segment

	// Newton statistics, nonzero only for implicit steppers.
	NewtonIters  int
	LinearSolves int
}

// Stepper is the plug-in stepping strategy interface. Implementations are
// stateful per run and not safe for concurrent use.
type Stepper interface {
	Descriptor() Descriptor
	// Init binds the stepper to a run's bridge before any stepping.
	Init(b *bridge.Bridge) error
	// Step proposes a trial step of size h from st without mutating it.
	Step(st *StepState, h float64) (*Result, error)
}

// ErrorNorm is the mixed absolute/relative tolerance norm: the RMS of the
// componentwise error scaled by abstol + reltol*max(|u|, |unew|). A step is
// acceptable when the result is at most 1.
func ErrorNorm(diff, u, unew problem.State, abstol, reltol float64) float64 {
	if len(diff) == 0 {
		return 0
	}
	sum := 0.0
	for i := range diff {
		sc := abstol + reltol*math.Max(math.Abs(u[i]), math.Abs(unew[i]))
		e := diff[i] / sc
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(diff)))
}

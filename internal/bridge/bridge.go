// Package bridge provides the uniform invocation contract for user-supplied
// dynamics, residual and noise functions. The solver core never calls a user
// callable directly: every call goes through a [Bridge], which recovers
// panics into [problem.UserFunctionError], counts evaluations, and
// normalizes the noise-matrix layout declared on the spec.
//
// The callable is bound once at construction. Repeated calls dispatch
// through the stored function value, so an externally compiled callable
// pays its resolution cost only on the first call.
package bridge

import (
	"github.com/san-kum/diffeq/internal/problem"
)

// Counts tracks user-function evaluations for solution statistics.
type Counts struct {
	Dynamics int
	Residual int
	Noise    int
	History  int
}

// Bridge invokes user callables on behalf of the solver. A Bridge belongs
// to a single run and is not safe for concurrent use.
type Bridge struct {
	spec   *problem.Spec
	counts Counts

	// delayed resolves lagged state during DDE integration. Installed by
	// the solver once the in-progress interpolant exists.
	delayed problem.HistoryFunc

	dyn   func(du, u problem.State, t float64)
	resid problem.ResidualFunc
	noise problem.NoiseFunc

	gmat *problem.Matrix
}

// New binds the spec's callables. The returned bridge routes Dynamics to
// the kind-appropriate user function without further per-call dispatch.
func New(spec *problem.Spec) *Bridge {
	b := &Bridge{spec: spec}

	switch spec.Kind {
	case problem.DDE:
		f := spec.FDelay
		b.dyn = func(du, u problem.State, t float64) {
			f(du, u, b.history, spec.Params, t)
		}
	default:
		if spec.F != nil {
			f := spec.F
			b.dyn = func(du, u problem.State, t float64) {
				f(du, u, spec.Params, t)
			}
		}
	}
	b.resid = spec.Residual
	b.noise = spec.G
	if spec.Kind == problem.SDE {
		b.gmat = problem.NewMatrix(spec.NoiseShape.Rows, spec.NoiseShape.Cols, spec.Layout)
	}
	return b
}

// SetDelayed installs the delayed-state accessor used for lag times inside
// the already-integrated region.
func (b *Bridge) SetDelayed(h problem.HistoryFunc) { b.delayed = h }

// history is the accessor handed to DDE user functions: lag times at or
// before t0 resolve through the spec's history function, later ones through
// the solver-installed accessor.
func (b *Bridge) history(p []float64, t float64) problem.State {
	b.counts.History++
	if t <= b.spec.TSpan[0] || b.delayed == nil {
		return b.spec.History(p, t)
	}
	return b.delayed(p, t)
}

func (b *Bridge) recover(op string, t float64, err *error) {
	if r := recover(); r != nil {
		*err = &problem.UserFunctionError{Op: op, T: t, Recovered: r}
	}
}

// Dynamics evaluates du/dt at (u, t) in place.
func (b *Bridge) Dynamics(du, u problem.State, t float64) (err error) {
	defer b.recover("dynamics", t, &err)
	b.counts.Dynamics++
	b.dyn(du, u, t)
	return nil
}

// Residual evaluates the DAE residual at (du, u, t) in place.
func (b *Bridge) Residual(resid, du, u problem.State, t float64) (err error) {
	defer b.recover("residual", t, &err)
	b.counts.Residual++
	b.resid(resid, du, u, b.spec.Params, t)
	return nil
}

// Noise evaluates the diffusion matrix at (u, t). The returned matrix is a
// buffer owned by the bridge and overwritten on the next call; read it
// through At, which honors the layout the spec declared.
func (b *Bridge) Noise(u problem.State, t float64) (g *problem.Matrix, err error) {
	defer b.recover("noise", t, &err)
	b.counts.Noise++
	b.gmat.Zero()
	b.noise(b.gmat, u, b.spec.Params, t)
	return b.gmat, nil
}

func (b *Bridge) Counts() Counts { return b.counts }

func (b *Bridge) Spec() *problem.Spec { return b.spec }

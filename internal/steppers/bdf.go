package steppers

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// ErrNewtonDiverged signals a failed nonlinear solve inside an implicit
// step. The integrator retries with a smaller step a bounded number of
// times before surfacing an Unstable return code.
var ErrNewtonDiverged = errors.New("steppers: newton iteration diverged")

const sqrtEps = 1.4901161193847656e-08

// BDF is a first-order implicit method (backward Euler) in residual form,
// solved by Newton iteration with a finite-difference Jacobian and dense LU
// factorization. It integrates stiff ODEs and index-1 DAEs; for ODEs the
// residual resid = du - f(u) is synthesized. The local error estimate comes
// from step doubling.
type BDF struct {
	b         *bridge.Bridge
	isDAE     bool
	newtonMax int

	fbuf problem.State
}

func NewBDF() *BDF { return &BDF{newtonMax: 8} }

func (s *BDF) Descriptor() Descriptor {
	return Descriptor{
		Name:     "bdf",
		Kinds:    []problem.Kind{problem.ODE, problem.DAE},
		Order:    1,
		Adaptive: true,
		Implicit: true,
	}
}

func (s *BDF) Init(b *bridge.Bridge) error {
	s.b = b
	s.isDAE = b.Spec().Kind == problem.DAE
	s.fbuf = make(problem.State, b.Spec().StateDim())
	return nil
}

func (s *BDF) residual(res, du, u problem.State, t float64) error {
	if s.isDAE {
		return s.b.Residual(res, du, u, t)
	}
	if err := s.b.Dynamics(s.fbuf, u, t); err != nil {
		return err
	}
	for i := range res {
		res[i] = du[i] - s.fbuf[i]
	}
	return nil
}

// solve advances one backward-Euler step from (t, u) to t+h, returning the
// new state and derivative. The unknown is u_{n+1}; du_{n+1} = (u_{n+1} - u_n)/h.
func (s *BDF) solve(t float64, u, du0 problem.State, h float64, st *StepState, res *Result) (problem.State, problem.State, error) {
	n := len(u)
	x := make(problem.State, n)
	for i := range x {
		x[i] = u[i] + h*du0[i] // explicit predictor
	}
	du := make(problem.State, n)
	fval := make(problem.State, n)
	fpert := make(problem.State, n)
	tNew := t + h

	eval := func(y problem.State, out problem.State) error {
		for i := range du {
			du[i] = (y[i] - u[i]) / h
		}
		return s.residual(out, du, y, tNew)
	}

	jac := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	dx := mat.NewVecDense(n, nil)
	var lu mat.LU

	prevNorm := math.Inf(1)
	for iter := 0; iter < s.newtonMax; iter++ {
		if err := eval(x, fval); err != nil {
			return nil, nil, err
		}

		// Forward-difference Jacobian of the residual with respect to the
		// unknown state; the du dependence is folded in through eval.
		for j := 0; j < n; j++ {
			save := x[j]
			delta := sqrtEps * math.Max(math.Abs(save), 1)
			x[j] = save + delta
			if err := eval(x, fpert); err != nil {
				return nil, nil, err
			}
			x[j] = save
			for i := 0; i < n; i++ {
				jac.Set(i, j, (fpert[i]-fval[i])/delta)
			}
		}

		if err := func() error {
			lu.Factorize(jac)
			for i := 0; i < n; i++ {
				rhs.SetVec(i, -fval[i])
			}
			return lu.SolveVecTo(dx, false, rhs)
		}(); err != nil {
			return nil, nil, ErrNewtonDiverged
		}
		res.LinearSolves++
		res.NewtonIters++

		for i := 0; i < n; i++ {
			x[i] += dx.AtVec(i)
		}
		corr := problem.State(dx.RawVector().Data)
		norm := ErrorNorm(corr, x, x, st.Abstol, st.Reltol)
		if norm <= 1e-2 {
			for i := range du {
				du[i] = (x[i] - u[i]) / h
			}
			return x, du, nil
		}
		if iter > 0 && norm > 2*prevNorm {
			return nil, nil, ErrNewtonDiverged
		}
		prevNorm = norm
	}
	return nil, nil, ErrNewtonDiverged
}

func (s *BDF) Step(st *StepState, h float64) (*Result, error) {
	res := &Result{}
	u := st.U
	du0 := st.DU
	if du0 == nil {
		du0 = make(problem.State, len(u))
	}

	full, _, err := s.solve(st.T, u, du0, h, st, res)
	if err != nil {
		return nil, err
	}

	// Step doubling: two half steps give both the error estimate and the
	// higher-quality accepted state.
	mid, duMid, err := s.solve(st.T, u, du0, h/2, st, res)
	if err != nil {
		return nil, err
	}
	uNew, duNew, err := s.solve(st.T+h/2, mid, duMid, h/2, st, res)
	if err != nil {
		return nil, err
	}

	diff := make(problem.State, len(u))
	for i := range diff {
		diff[i] = full[i] - uNew[i]
	}
	res.ErrNorm = ErrorNorm(diff, u, uNew, st.Abstol, st.Reltol)
	res.UNew = uNew
	res.DUNew = duNew
	res.Segment = &dense.Hermite{
		T0: st.T, T1: st.T + h,
		U0: u.Clone(), U1: uNew,
		DU0: du0.Clone(), DU1: duNew,
	}
	return res, nil
}

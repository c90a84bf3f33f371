package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/steppers"
)

const sqrtEps = 1.4901161193847656e-08

// initialStep picks the first step size from the magnitude of the initial
// derivative in the tolerance-scaled norm, clamped to a small fraction of
// the span.
func initialStep(b *bridge.Bridge, spec *problem.Spec, u, du problem.State, opts Options) (float64, error) {
	span := spec.TSpan[1] - spec.TSpan[0]

	f0 := du
	if spec.Kind != problem.DAE {
		f0 = make(problem.State, len(u))
		if err := b.Dynamics(f0, u, spec.TSpan[0]); err != nil {
			return 0, err
		}
	}

	d0 := steppers.ErrorNorm(u, u, u, opts.Abstol, opts.Reltol)
	d1 := steppers.ErrorNorm(f0, u, u, opts.Abstol, opts.Reltol)

	var h float64
	if d0 < 1e-5 || d1 < 1e-5 {
		h = 1e-6 * span
	} else {
		h = 0.01 * d0 / d1
	}
	h = math.Min(h, 0.1*span)
	h = math.Max(h, opts.DtMin)
	return h, nil
}

// consistentInit verifies that (du0, u0) satisfy the DAE residual at t0,
// and otherwise projects the algebraic components of u0 onto the residual
// manifold by Newton iteration. The differential components and du0 are
// held fixed.
func consistentInit(b *bridge.Bridge, spec *problem.Spec, opts Options) (problem.State, problem.State, error) {
	n := spec.StateDim()
	u := spec.U0.Clone()
	du := spec.DU0.Clone()
	t0 := spec.TSpan[0]

	res := make(problem.State, n)
	if err := b.Residual(res, du, u, t0); err != nil {
		return nil, nil, err
	}
	tol := sqrtEps * (1 + u.Norm())
	if res.Norm() <= tol {
		return u, du, nil
	}

	var alg []int
	for i, diff := range spec.DifferentialVars {
		if !diff {
			alg = append(alg, i)
		}
	}
	if len(alg) == 0 {
		return nil, nil, &problem.SpecError{Field: "du0", Message: "initial conditions do not satisfy the residual"}
	}

	na := len(alg)
	jac := mat.NewDense(na, na, nil)
	rhs := mat.NewVecDense(na, nil)
	dx := mat.NewVecDense(na, nil)
	pert := make(problem.State, n)
	var lu mat.LU

	for iter := 0; iter < 10; iter++ {
		if err := b.Residual(res, du, u, t0); err != nil {
			return nil, nil, err
		}
		ok := true
		for _, i := range alg {
			if math.Abs(res[i]) > tol {
				ok = false
			}
		}
		if ok {
			return u, du, nil
		}

		for cj, j := range alg {
			save := u[j]
			delta := sqrtEps * math.Max(math.Abs(save), 1)
			u[j] = save + delta
			if err := b.Residual(pert, du, u, t0); err != nil {
				return nil, nil, err
			}
			u[j] = save
			for ci, i := range alg {
				jac.Set(ci, cj, (pert[i]-res[i])/delta)
			}
		}
		lu.Factorize(jac)
		for ci, i := range alg {
			rhs.SetVec(ci, -res[i])
		}
		if err := lu.SolveVecTo(dx, false, rhs); err != nil {
			return nil, nil, &problem.SpecError{Field: "u0", Message: "consistent initialization failed: singular algebraic Jacobian"}
		}
		for cj, j := range alg {
			u[j] += dx.AtVec(cj)
		}
	}
	return nil, nil, &problem.SpecError{Field: "u0", Message: "consistent initialization did not converge"}
}

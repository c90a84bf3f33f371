package steppers

import (
	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// EM is the Euler-Maruyama method for SDE problems: fixed-structure, fixed
// grid, strong order 1/2. The Wiener increment for a step is drawn once;
// retries over the same interval reuse it through the noise cache.
type EM struct {
	b     *bridge.Bridge
	shape problem.NoiseShape
}

func NewEM() *EM { return &EM{} }

func (e *EM) Descriptor() Descriptor {
	return Descriptor{
		Name:  "em",
		Kinds: []problem.Kind{problem.SDE},
		Order: 1,
	}
}

func (e *EM) Init(b *bridge.Bridge) error {
	e.b = b
	e.shape = b.Spec().NoiseShape
	return nil
}

func (e *EM) Step(st *StepState, h float64) (*Result, error) {
	n := len(st.U)
	u := st.U
	t := st.T

	drift := make(problem.State, n)
	if err := e.b.Dynamics(drift, u, t); err != nil {
		return nil, err
	}
	g, err := e.b.Noise(u, t)
	if err != nil {
		return nil, err
	}
	dW := st.Noise.Increment(t, h)

	uNew := make(problem.State, n)
	for i := 0; i < n; i++ {
		v := u[i] + h*drift[i]
		for j := 0; j < e.shape.Cols; j++ {
			v += g.At(i, j) * dW[j]
		}
		uNew[i] = v
	}

	driftEnd := make(problem.State, n)
	if err := e.b.Dynamics(driftEnd, uNew, t+h); err != nil {
		return nil, err
	}

	seg := &dense.Hermite{
		T0: t, T1: t + h,
		U0: u.Clone(), U1: uNew,
		DU0: drift, DU1: driftEnd,
	}
	return &Result{UNew: uNew, DUNew: driftEnd, Segment: seg}, nil
}

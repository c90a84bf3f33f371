package steppers

import (
	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// RK4 is the classic fourth-order Runge-Kutta method on a fixed grid.
// Non-adaptive: every step is accepted and the controller is bypassed.
type RK4 struct {
	b       *bridge.Bridge
	scratch problem.State
}

func NewRK4() *RK4 { return &RK4{} }

func (r *RK4) Descriptor() Descriptor {
	return Descriptor{
		Name:  "rk4",
		Kinds: []problem.Kind{problem.ODE},
		Order: 4,
	}
}

func (r *RK4) Init(b *bridge.Bridge) error {
	r.b = b
	return nil
}

func (r *RK4) Step(st *StepState, h float64) (*Result, error) {
	n := len(st.U)
	u := st.U
	t := st.T
	if len(r.scratch) != n {
		r.scratch = make(problem.State, n)
	}

	k1 := make(problem.State, n)
	if err := r.b.Dynamics(k1, u, t); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = u[i] + h*0.5*k1[i]
	}
	k2 := make(problem.State, n)
	if err := r.b.Dynamics(k2, r.scratch, t+h*0.5); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = u[i] + h*0.5*k2[i]
	}
	k3 := make(problem.State, n)
	if err := r.b.Dynamics(k3, r.scratch, t+h*0.5); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = u[i] + h*k3[i]
	}
	k4 := make(problem.State, n)
	if err := r.b.Dynamics(k4, r.scratch, t+h); err != nil {
		return nil, err
	}

	uNew := make(problem.State, n)
	h6 := h / 6.0
	for i := 0; i < n; i++ {
		uNew[i] = u[i] + h6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	// Endpoint derivative for the Hermite segment.
	kEnd := make(problem.State, n)
	if err := r.b.Dynamics(kEnd, uNew, t+h); err != nil {
		return nil, err
	}

	seg := &dense.Hermite{
		T0: t, T1: t + h,
		U0: u.Clone(), U1: uNew,
		DU0: k1, DU1: kEnd,
	}
	return &Result{UNew: uNew, DUNew: kEnd, Segment: seg}, nil
}

package steppers

import (
	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// Dormand-Prince 5(4) coefficients
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// continuous extension (fourth order)
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

// Dopri5 is the adaptive Dormand-Prince 5(4) pair with a fourth-order
// continuous extension. Handles ODE problems and, through the bridge's
// delayed-state routing, DDE problems by the method of steps.
type Dopri5 struct {
	b *bridge.Bridge
}

func NewDopri5() *Dopri5 { return &Dopri5{} }

func (d *Dopri5) Descriptor() Descriptor {
	return Descriptor{
		Name:     "dopri5",
		Kinds:    []problem.Kind{problem.ODE, problem.DDE},
		Order:    5,
		Adaptive: true,
	}
}

func (d *Dopri5) Init(b *bridge.Bridge) error {
	d.b = b
	return nil
}

func (d *Dopri5) Step(st *StepState, h float64) (*Result, error) {
	n := len(st.U)
	u := st.U
	t := st.T

	k1 := make(problem.State, n)
	if err := d.b.Dynamics(k1, u, t); err != nil {
		return nil, err
	}

	stage := make(problem.State, n)
	for i := 0; i < n; i++ {
		stage[i] = u[i] + h*b21*k1[i]
	}
	k2 := make(problem.State, n)
	if err := d.b.Dynamics(k2, stage, t+a2*h); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		stage[i] = u[i] + h*(b31*k1[i]+b32*k2[i])
	}
	k3 := make(problem.State, n)
	if err := d.b.Dynamics(k3, stage, t+a3*h); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		stage[i] = u[i] + h*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := make(problem.State, n)
	if err := d.b.Dynamics(k4, stage, t+a4*h); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		stage[i] = u[i] + h*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := make(problem.State, n)
	if err := d.b.Dynamics(k5, stage, t+a5*h); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		stage[i] = u[i] + h*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := make(problem.State, n)
	if err := d.b.Dynamics(k6, stage, t+h); err != nil {
		return nil, err
	}

	uNew := make(problem.State, n)
	for i := 0; i < n; i++ {
		uNew[i] = u[i] + h*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	k7 := make(problem.State, n)
	if err := d.b.Dynamics(k7, uNew, t+h); err != nil {
		return nil, err
	}

	diff := make(problem.State, n)
	for i := 0; i < n; i++ {
		diff[i] = h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
	}
	errNorm := ErrorNorm(diff, u, uNew, st.Abstol, st.Reltol)

	seg := &dense.DP5{
		T0: t, H: h,
		R1: u.Clone(),
		R2: make(problem.State, n),
		R3: make(problem.State, n),
		R4: make(problem.State, n),
		R5: make(problem.State, n),
	}
	for i := 0; i < n; i++ {
		ydiff := uNew[i] - u[i]
		bspl := h*k1[i] - ydiff
		seg.R2[i] = ydiff
		seg.R3[i] = bspl
		seg.R4[i] = ydiff - h*k7[i] - bspl
		seg.R5[i] = h * (d1*k1[i] + d3*k3[i] + d4*k4[i] + d5*k5[i] + d6*k6[i] + d7*k7[i])
	}

	return &Result{UNew: uNew, DUNew: k7, ErrNorm: errNorm, Segment: seg}, nil
}

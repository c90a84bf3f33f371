package dense

import "github.com/san-kum/diffeq/internal/problem"

// Hermite is a cubic Hermite segment from endpoint states and derivatives.
// Third-order accurate; used by steppers without a specialized continuous
// extension and as the stochastic sample-path segment.
type Hermite struct {
	T0, T1         float64
	U0, U1         problem.State
	DU0, DU1       problem.State
}

func (s *Hermite) Span() (float64, float64) { return s.T0, s.T1 }

func (s *Hermite) Eval(t float64, out problem.State) {
	h := s.T1 - s.T0
	th := (t - s.T0) / h
	th2 := th * th
	th3 := th2 * th

	h00 := 2*th3 - 3*th2 + 1
	h10 := th3 - 2*th2 + th
	h01 := -2*th3 + 3*th2
	h11 := th3 - th2

	for i := range out {
		out[i] = h00*s.U0[i] + h10*h*s.DU0[i] + h01*s.U1[i] + h11*h*s.DU1[i]
	}
}

// DP5 is the fourth-order continuous extension of the Dormand-Prince 5(4)
// pair, evaluated from the five precomputed coefficient vectors.
type DP5 struct {
	T0, H                  float64
	R1, R2, R3, R4, R5     problem.State
}

func (s *DP5) Span() (float64, float64) { return s.T0, s.T0 + s.H }

func (s *DP5) Eval(t float64, out problem.State) {
	th := (t - s.T0) / s.H
	th1 := 1 - th
	for i := range out {
		out[i] = s.R1[i] + th*(s.R2[i]+th1*(s.R3[i]+th*(s.R4[i]+th1*s.R5[i])))
	}
}

// Package problems is a catalog of canonical differential equation
// instances used by the CLI, examples and tests: classic nonstiff and
// stiff ODEs, the Robertson DAE, a delayed logistic equation and geometric
// Brownian motion.
package problems

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/diffeq/internal/problem"
)

// LinearDecay is du/dt = -k*u with k = params[0]; exact solution
// u0*exp(-k*t).
func LinearDecay() *problem.Spec {
	return &problem.Spec{
		Kind:   problem.ODE,
		U0:     problem.State{1.0},
		TSpan:  [2]float64{0, 1},
		Params: []float64{1.0},
		F: func(du, u problem.State, p []float64, t float64) {
			du[0] = -p[0] * u[0]
		},
	}
}

// HarmonicOscillator is the undamped unit oscillator; energy
// (u0^2 + u1^2)/2 is conserved.
func HarmonicOscillator() *problem.Spec {
	return &problem.Spec{
		Kind:  problem.ODE,
		U0:    problem.State{1.0, 0.0},
		TSpan: [2]float64{0, 2 * math.Pi},
		F: func(du, u problem.State, p []float64, t float64) {
			du[0] = u[1]
			du[1] = -u[0]
		},
	}
}

// VanDerPol with stiffness parameter mu = params[0].
func VanDerPol(mu float64) *problem.Spec {
	return &problem.Spec{
		Kind:   problem.ODE,
		U0:     problem.State{2.0, 0.0},
		TSpan:  [2]float64{0, 6},
		Params: []float64{mu},
		F: func(du, u problem.State, p []float64, t float64) {
			du[0] = u[1]
			du[1] = p[0]*(1-u[0]*u[0])*u[1] - u[0]
		},
	}
}

// Lorenz with the classic (sigma, rho, beta) = (10, 28, 8/3).
func Lorenz() *problem.Spec {
	return &problem.Spec{
		Kind:   problem.ODE,
		U0:     problem.State{1.0, 1.0, 1.0},
		TSpan:  [2]float64{0, 20},
		Params: []float64{10, 28, 8.0 / 3.0},
		F: func(du, u problem.State, p []float64, t float64) {
			du[0] = p[0] * (u[1] - u[0])
			du[1] = u[0]*(p[1]-u[2]) - u[1]
			du[2] = u[0]*u[1] - p[2]*u[2]
		},
	}
}

// Robertson is the classic stiff index-1 DAE in residual form. The third
// equation is the algebraic conservation constraint u1+u2+u3 = 1.
func Robertson() *problem.Spec {
	return &problem.Spec{
		Kind:             problem.DAE,
		U0:               problem.State{1.0, 0.0, 0.0},
		DU0:              problem.State{-0.04, 0.04, 0.0},
		DifferentialVars: []bool{true, true, false},
		TSpan:            [2]float64{0, 1e5},
		Residual: func(resid, du, u problem.State, p []float64, t float64) {
			resid[0] = -0.04*u[0] + 1e4*u[1]*u[2] - du[0]
			resid[1] = 0.04*u[0] - 1e4*u[1]*u[2] - 3e7*u[1]*u[1] - du[1]
			resid[2] = u[0] + u[1] + u[2] - 1
		},
	}
}

// DelayedLogistic is Hutchinson's equation du/dt = r*u(t)*(1 - u(t-lag)),
// with constant history 0.5 for t <= 0.
func DelayedLogistic(lag float64) *problem.Spec {
	return &problem.Spec{
		Kind:         problem.DDE,
		U0:           problem.State{0.5},
		TSpan:        [2]float64{0, 10 * lag},
		Params:       []float64{0.8},
		ConstantLags: []float64{lag},
		History: func(p []float64, t float64) problem.State {
			return problem.State{0.5}
		},
		FDelay: func(du, u problem.State, h problem.HistoryFunc, p []float64, t float64) {
			ulag := h(p, t-lag)
			du[0] = p[0] * u[0] * (1 - ulag[0])
		},
	}
}

// GeometricBrownianMotion is du = mu*u dt + sigma*u dW with diagonal noise.
func GeometricBrownianMotion(mu, sigma float64) *problem.Spec {
	return &problem.Spec{
		Kind:       problem.SDE,
		U0:         problem.State{1.0},
		TSpan:      [2]float64{0, 1},
		Params:     []float64{mu, sigma},
		NoiseShape: problem.NoiseShape{Rows: 1, Cols: 1},
		F: func(du, u problem.State, p []float64, t float64) {
			du[0] = p[0] * u[0]
		},
		G: func(g *problem.Matrix, u problem.State, p []float64, t float64) {
			g.Set(0, 0, p[1]*u[0])
		},
	}
}

// Catalog maps problem names to their default constructions.
func Catalog() map[string]func() *problem.Spec {
	return map[string]func() *problem.Spec{
		"decay":            LinearDecay,
		"harmonic":         HarmonicOscillator,
		"vanderpol":        func() *problem.Spec { return VanDerPol(5) },
		"lorenz":           Lorenz,
		"robertson":        Robertson,
		"delayed_logistic": func() *problem.Spec { return DelayedLogistic(1.0) },
		"gbm":              func() *problem.Spec { return GeometricBrownianMotion(0.05, 0.2) },
	}
}

// Names lists catalog entries in order.
func Names() []string {
	c := Catalog()
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get builds the named problem.
func Get(name string) (*problem.Spec, error) {
	fn, ok := Catalog()[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem: %s", name)
	}
	return fn(), nil
}

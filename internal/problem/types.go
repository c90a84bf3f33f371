package problem

import (
	"fmt"
	"math"
)

// State is a dense vector of state components.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Kind identifies the problem formulation.
type Kind uint8

const (
	ODE Kind = iota + 1
	DAE
	SDE
	DDE
)

func (k Kind) String() string {
	switch k {
	case ODE:
		return "ode"
	case DAE:
		return "dae"
	case SDE:
		return "sde"
	case DDE:
		return "dde"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Layout declares the element order of the noise matrix as written by the
// user's diffusion function. The core reads through [Matrix.At], so a
// foreign callable only has to honor the layout it declared.
type Layout uint8

const (
	RowMajor Layout = iota
	ColMajor
)

// Matrix is a fixed-shape dense matrix with a declared element layout.
type Matrix struct {
	Rows, Cols int
	Layout     Layout
	Data       []float64
}

func NewMatrix(rows, cols int, layout Layout) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Layout: layout, Data: make([]float64, rows*cols)}
}

func (m *Matrix) index(i, j int) int {
	if m.Layout == ColMajor {
		return j*m.Rows + i
	}
	return i*m.Cols + j
}

func (m *Matrix) At(i, j int) float64 { return m.Data[m.index(i, j)] }

func (m *Matrix) Set(i, j int, v float64) { m.Data[m.index(i, j)] = v }

func (m *Matrix) Zero() {
	for i := range m.Data {
		m.Data[i] = 0
	}
}

// HistoryFunc returns the state at a time at or before the initial time.
// For delay problems it must be defined for all t <= t0.
type HistoryFunc func(p []float64, t float64) State

// ODEFunc computes du/dt in place: f(du, u, p, t).
type ODEFunc func(du, u State, p []float64, t float64)

// DDEFunc computes du/dt for a delay problem. The accessor h resolves the
// state at any lagged time at or before the current one.
type DDEFunc func(du, u State, h HistoryFunc, p []float64, t float64)

// ResidualFunc writes the DAE residual: f(resid, du, u, p, t). Integration
// drives resid toward zero.
type ResidualFunc func(resid, du, u State, p []float64, t float64)

// NoiseFunc writes the diffusion coefficients g(u, p, t) into a
// state_dim x noise_cols matrix.
type NoiseFunc func(g *Matrix, u State, p []float64, t float64)

// NoiseShape describes how many independent Wiener processes drive an SDE
// and how they couple to state components: Rows must equal the state
// dimension, Cols is the number of independent driving processes.
type NoiseShape struct {
	Rows, Cols int
}

// Diagonal reports whether each state component is driven by its own
// independent process.
func (n NoiseShape) Diagonal() bool { return n.Rows == n.Cols }

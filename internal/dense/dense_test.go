package dense

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/diffeq/internal/problem"
)

// expSegment builds a Hermite segment of u(t) = exp(-t) over [t0, t1].
func expSegment(t0, t1 float64) *Hermite {
	return &Hermite{
		T0: t0, T1: t1,
		U0:  problem.State{math.Exp(-t0)},
		U1:  problem.State{math.Exp(-t1)},
		DU0: problem.State{-math.Exp(-t0)},
		DU1: problem.State{-math.Exp(-t1)},
	}
}

func TestHermiteMatchesEndpoints(t *testing.T) {
	seg := expSegment(0, 0.5)
	out := make(problem.State, 1)

	seg.Eval(0, out)
	assert.InDelta(t, 1.0, out[0], 1e-15)
	seg.Eval(0.5, out)
	assert.InDelta(t, math.Exp(-0.5), out[0], 1e-15)
}

func TestHermiteInteriorAccuracy(t *testing.T) {
	seg := expSegment(0, 0.1)
	out := make(problem.State, 1)
	seg.Eval(0.05, out)
	// Cubic Hermite on a smooth function over a small step: O(h^4).
	assert.InDelta(t, math.Exp(-0.05), out[0], 1e-8)
}

func buildInterpolant(t *testing.T, edges []float64) *Interpolant {
	t.Helper()
	acc := NewAccumulator(1)
	for i := 0; i+1 < len(edges); i++ {
		acc.Append(expSegment(edges[i], edges[i+1]))
	}
	return acc.Build()
}

func TestInterpolantOutOfRange(t *testing.T) {
	ip := buildInterpolant(t, []float64{0, 0.5, 1.0})

	_, err := ip.At(-0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, problem.ErrOutOfRange))

	_, err = ip.At(1.0001)
	assert.ErrorIs(t, err, problem.ErrOutOfRange)

	_, err = ip.At(1.0)
	assert.NoError(t, err)
}

func TestInterpolantIdempotent(t *testing.T) {
	ip := buildInterpolant(t, []float64{0, 0.3, 0.7, 1.0})

	a, err := ip.At(0.42)
	require.NoError(t, err)
	// Out-of-order queries, then repeat.
	if _, err := ip.At(0.9); err != nil {
		t.Fatal(err)
	}
	if _, err := ip.At(0.1); err != nil {
		t.Fatal(err)
	}
	b, err := ip.At(0.42)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestInterpolantSegmentSelection(t *testing.T) {
	ip := buildInterpolant(t, []float64{0, 0.25, 0.5, 0.75, 1.0})
	for _, tq := range []float64{0, 0.25, 0.33, 0.5, 0.99, 1.0} {
		u, err := ip.At(tq)
		require.NoError(t, err)
		assert.InDelta(t, math.Exp(-tq), u[0], 1e-6, "t=%v", tq)
	}
}

func TestAccumulatorCoveredGrows(t *testing.T) {
	acc := NewAccumulator(1)
	_, _, ok := acc.Covered()
	assert.False(t, ok)

	acc.Append(expSegment(0, 0.5))
	lo, hi, ok := acc.Covered()
	require.True(t, ok)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.5, hi)

	// A frozen interpolant is unaffected by later growth.
	ip := acc.Build()
	acc.Append(expSegment(0.5, 1.0))
	_, err := ip.At(0.9)
	assert.ErrorIs(t, err, problem.ErrOutOfRange)
	u, err := acc.At(0.9)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-0.9), u[0], 1e-6)
}

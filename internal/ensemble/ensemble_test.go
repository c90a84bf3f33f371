package ensemble

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/problems"
	"github.com/san-kum/diffeq/internal/solver"
)

func TestRunProducesAllRealizations(t *testing.T) {
	e := New(problems.GeometricBrownianMotion(0.05, 0.2), solver.DefaultOptions(), 8)
	e.SetWorkers(4)

	sols, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sols, 8)
	for i, sol := range sols {
		require.NotNil(t, sol, "run %d", i)
		assert.Equal(t, solver.Success, sol.ReturnCode())
	}
}

func TestRunSeedsDiffer(t *testing.T) {
	opts := solver.DefaultOptions()
	opts.Seed = 100
	e := New(problems.GeometricBrownianMotion(0.05, 0.2), opts, 4)

	sols, err := e.Run(context.Background())
	require.NoError(t, err)

	// Distinct per-run seeds give distinct trajectories.
	_, a := sols[0].Samples()
	_, b := sols[1].Samples()
	assert.NotEqual(t, a[len(a)-1], b[len(b)-1])

	// And the whole ensemble is reproducible.
	again, err := New(problems.GeometricBrownianMotion(0.05, 0.2), opts, 4).Run(context.Background())
	require.NoError(t, err)
	for i := range sols {
		_, x := sols[i].Samples()
		_, y := again[i].Samples()
		assert.Equal(t, x, y, "run %d", i)
	}
}

func TestRunMutateHook(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}

	e := New(problems.LinearDecay(), solver.DefaultOptions(), 3)
	e.SetMutate(func(i int, opts *solver.Options) {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		opts.Reltol = 1e-6
	})

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

func TestRunStructuralErrorCancels(t *testing.T) {
	spec := problems.LinearDecay()
	spec.F = func(du, u problem.State, p []float64, tt float64) {
		panic("broken model")
	}
	e := New(spec, solver.DefaultOptions(), 4)

	sols, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, sols)
	assert.ErrorIs(t, err, problem.ErrUserFunction)
}

func TestSummarize(t *testing.T) {
	e := New(problems.LinearDecay(), solver.DefaultOptions(), 3)
	sols, err := e.Run(context.Background())
	require.NoError(t, err)

	s := Summarize(sols)
	assert.Equal(t, 3, s.Runs)
	assert.Greater(t, s.Accepted, 0)
	assert.Equal(t, 3, s.Codes[solver.Success])
}

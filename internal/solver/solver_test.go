package solver

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/events"
	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/problems"
	"github.com/san-kum/diffeq/internal/registry"
	"github.com/san-kum/diffeq/internal/steppers"
)

func TestSolveDecay(t *testing.T) {
	sol, err := Solve(context.Background(), problems.LinearDecay(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Success, sol.ReturnCode())

	u, err := sol.At(1.0)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), u[0], 1e-4)

	ts, us := sol.Samples()
	require.NotEmpty(t, ts)
	assert.Equal(t, 0.0, ts[0])
	assert.InDelta(t, 1.0, ts[len(ts)-1], 1e-12, "integration must land on tf")
	assert.Equal(t, problem.State{1.0}, us[0])
	assert.Greater(t, sol.Stats().Accepted, 0)
	assert.Greater(t, sol.Stats().Dynamics, 0)
}

func TestSolveInterpolantMatchesSamples(t *testing.T) {
	sol, err := Solve(context.Background(), problems.HarmonicOscillator(), DefaultOptions())
	require.NoError(t, err)

	ts, us := sol.Samples()
	for i, tq := range ts {
		u, err := sol.At(tq)
		require.NoError(t, err)
		for j := range u {
			assert.InDelta(t, us[i][j], u[j], 1e-10, "t=%v", tq)
		}
	}
}

func TestSolveOutOfRangeQuery(t *testing.T) {
	sol, err := Solve(context.Background(), problems.LinearDecay(), DefaultOptions())
	require.NoError(t, err)

	_, err = sol.At(2.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, problem.ErrOutOfRange)

	var oor *problem.OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 2.0, oor.T)
}

func TestSolveRobertsonConservation(t *testing.T) {
	sol, err := Solve(context.Background(), problems.Robertson(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Success, sol.ReturnCode())

	_, us := sol.Samples()
	for _, u := range us {
		assert.InDelta(t, 1.0, u[0]+u[1]+u[2], 1e-6)
	}
	assert.Greater(t, sol.Stats().NewtonIters, 0)
	assert.Greater(t, sol.Stats().LinearSolves, 0)
	assert.Greater(t, sol.Stats().Residual, 0)
}

func TestSolveDAEConsistentInit(t *testing.T) {
	// The algebraic component starts off the constraint manifold; the run
	// must project it before the first step.
	spec := problems.Robertson()
	spec.TSpan = [2]float64{0, 1}
	spec.U0 = problem.State{1.0, 0.0, 0.3}

	sol, err := Solve(context.Background(), spec, DefaultOptions())
	require.NoError(t, err)

	_, us := sol.Samples()
	assert.InDelta(t, 0.0, us[0][2], 1e-7)
	assert.InDelta(t, 1.0, us[0][0]+us[0][1]+us[0][2], 1e-7)
}

func TestSolveRejectsAlgorithmKindMismatch(t *testing.T) {
	opts := DefaultOptions()
	opts.Algorithm = "rk4"
	sol, err := Solve(context.Background(), problems.Robertson(), opts)
	require.Error(t, err)
	assert.Nil(t, sol)
	assert.ErrorIs(t, err, problem.ErrUnsupportedAlgorithm)
}

func TestSolveRejectsInvalidSpec(t *testing.T) {
	spec := problems.LinearDecay()
	spec.U0 = nil
	_, err := Solve(context.Background(), spec, DefaultOptions())
	assert.ErrorIs(t, err, problem.ErrInvalidSpec)
}

func TestSolveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol, err := Solve(ctx, problems.LinearDecay(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Terminated, sol.ReturnCode())

	// The history up to the cancellation point survives.
	ts, _ := sol.Samples()
	assert.NotEmpty(t, ts)
}

func TestSolveMaxIters(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSteps = 2
	sol, err := Solve(context.Background(), problems.LinearDecay(), opts)
	require.NoError(t, err)
	assert.Equal(t, MaxIters, sol.ReturnCode())

	ts, _ := sol.Samples()
	assert.Less(t, ts[len(ts)-1], 1.0)
}

func TestSolveDtLessThanMin(t *testing.T) {
	// A violently oscillating right-hand side under an unreachable tolerance
	// drives the controller below the floor.
	spec := &problem.Spec{
		Kind:  problem.ODE,
		U0:    problem.State{1.0},
		TSpan: [2]float64{0, 1},
		F: func(du, u problem.State, p []float64, t float64) {
			du[0] = math.Sin(1e6 * t)
		},
	}
	opts := DefaultOptions()
	opts.Abstol = 1e-14
	opts.Reltol = 1e-14
	opts.DtInitial = 0.1
	opts.DtMin = 1e-6

	sol, err := Solve(context.Background(), spec, opts)
	require.NoError(t, err)
	assert.Equal(t, DtLessThanMin, sol.ReturnCode())
	assert.Greater(t, sol.Stats().Rejected, 0)
}

func TestSolveUserFunctionError(t *testing.T) {
	spec := &problem.Spec{
		Kind:  problem.ODE,
		U0:    problem.State{1.0},
		TSpan: [2]float64{0, 1},
		F: func(du, u problem.State, p []float64, t float64) {
			if t > 0.5 {
				panic("model blew up")
			}
			du[0] = -u[0]
		},
	}
	sol, err := Solve(context.Background(), spec, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, sol)
	assert.ErrorIs(t, err, problem.ErrUserFunction)

	var ufe *problem.UserFunctionError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "dynamics", ufe.Op)
}

func TestSolveSaveAt(t *testing.T) {
	opts := DefaultOptions()
	opts.SaveAt = []float64{0.25, 0.5, 0.75}

	sol, err := Solve(context.Background(), problems.LinearDecay(), opts)
	require.NoError(t, err)

	ts, us := sol.Saved()
	require.Len(t, ts, 3)
	for i, tq := range ts {
		assert.Equal(t, opts.SaveAt[i], tq)
		assert.InDelta(t, math.Exp(-tq), us[i][0], 1e-3)
	}
}

func TestSolveObserverSeesEveryAcceptedStep(t *testing.T) {
	var calls int
	var lastT float64
	opts := DefaultOptions()
	opts.Observer = func(tt float64, u problem.State, h float64) {
		calls++
		assert.Greater(t, h, 0.0)
		assert.Greater(t, tt, lastT)
		lastT = tt
	}

	sol, err := Solve(context.Background(), problems.LinearDecay(), opts)
	require.NoError(t, err)
	assert.Equal(t, sol.Stats().Accepted, calls)
	assert.InDelta(t, 1.0, lastT, 1e-12)
}

func TestSolveTerminalEvent(t *testing.T) {
	opts := DefaultOptions()
	opts.Events = []*events.Event{{
		Name:     "half-life",
		Terminal: true,
		Root: func(u problem.State, tt float64, p []float64) float64 {
			return u[0] - 0.5
		},
	}}

	sol, err := Solve(context.Background(), problems.LinearDecay(), opts)
	require.NoError(t, err)
	assert.Equal(t, Terminated, sol.ReturnCode())

	ts, us := sol.Samples()
	tEnd := ts[len(ts)-1]
	assert.InDelta(t, math.Ln2, tEnd, 1e-5)
	assert.InDelta(t, 0.5, us[len(us)-1][0], 1e-5)
}

// balkyStepper delegates to an inner stepper but reports a diverged solve
// the first time it is asked to land on tBalk, mimicking an implicit method
// whose Newton iteration fails on the event-locating re-step.
type balkyStepper struct {
	inner  steppers.Stepper
	tBalk  float64
	balked bool
}

func (s *balkyStepper) Descriptor() steppers.Descriptor {
	d := s.inner.Descriptor()
	d.Name = "balky"
	return d
}

func (s *balkyStepper) Init(b *bridge.Bridge) error { return s.inner.Init(b) }

func (s *balkyStepper) Step(st *steppers.StepState, h float64) (*steppers.Result, error) {
	if !s.balked && math.Abs(st.T+h-s.tBalk) < 1e-6 {
		s.balked = true
		return nil, steppers.ErrNewtonDiverged
	}
	return s.inner.Step(st, h)
}

func TestSolveEventRestepDivergenceRetries(t *testing.T) {
	// Decay crosses 0.5 at ln 2; the first attempt to land there diverges.
	// The attempt must be rejected and retried, never committed at the
	// original step's far boundary.
	balky := &balkyStepper{inner: steppers.NewDopri5(), tBalk: math.Ln2}
	reg := registry.New()
	reg.Register(func() steppers.Stepper { return balky })

	opts := DefaultOptions()
	opts.Registry = reg
	opts.Algorithm = "balky"
	opts.Events = []*events.Event{{
		Name:     "half-life",
		Terminal: true,
		Root: func(u problem.State, tt float64, p []float64) float64 {
			return u[0] - 0.5
		},
	}}

	sol, err := Solve(context.Background(), problems.LinearDecay(), opts)
	require.NoError(t, err)
	require.True(t, balky.balked, "divergence injection never triggered")
	assert.Equal(t, Terminated, sol.ReturnCode())
	assert.Greater(t, sol.Stats().Rejected, 0)

	ts, _ := sol.Samples()
	assert.InDelta(t, math.Ln2, ts[len(ts)-1], 1e-5)
}

func TestSolveEventApplyAndOneShot(t *testing.T) {
	// Reset the state to 1 the first time it decays through 0.5, then run to
	// tf without re-firing.
	opts := DefaultOptions()
	opts.Events = []*events.Event{{
		Name:    "reset",
		OneShot: true,
		Root: func(u problem.State, tt float64, p []float64) float64 {
			return u[0] - 0.5
		},
		Apply: func(u problem.State, tt float64) {
			u[0] = 1.0
		},
	}}

	spec := problems.LinearDecay()
	spec.TSpan = [2]float64{0, 2}
	sol, err := Solve(context.Background(), spec, opts)
	require.NoError(t, err)
	assert.Equal(t, Success, sol.ReturnCode())

	// u(2) = exp(-(2 - ln 2)) after the single reset at t = ln 2.
	ts, us := sol.Samples()
	assert.InDelta(t, 2.0, ts[len(ts)-1], 1e-12)
	assert.InDelta(t, math.Exp(-(2-math.Ln2)), us[len(us)-1][0], 5e-3)
}

func TestSolveDDEForcedBoundaries(t *testing.T) {
	spec := problems.DelayedLogistic(1.0)

	sol, err := Solve(context.Background(), spec, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Success, sol.ReturnCode())

	ts, us := sol.Samples()
	// Every propagated discontinuity is an accepted sample time.
	for k := 1; k <= 9; k++ {
		found := false
		for _, tt := range ts {
			if math.Abs(tt-float64(k)) < 1e-9 {
				found = true
				break
			}
		}
		assert.True(t, found, "missing forced boundary at t=%d", k)
	}
	assert.InDelta(t, 10.0, ts[len(ts)-1], 1e-9)
	assert.Greater(t, sol.Stats().History, 0)

	// Hutchinson's equation with r = 0.8 approaches the carrying capacity.
	for _, u := range us {
		assert.Greater(t, u[0], 0.0)
		assert.Less(t, u[0], 2.0)
	}
	assert.InDelta(t, 1.0, us[len(us)-1][0], 0.3)
}

func TestSolveSDESeedReproducible(t *testing.T) {
	run := func(seed uint64) []problem.State {
		opts := DefaultOptions()
		opts.Seed = seed
		sol, err := Solve(context.Background(), problems.GeometricBrownianMotion(0.05, 0.2), opts)
		require.NoError(t, err)
		assert.Equal(t, Success, sol.ReturnCode())
		assert.Greater(t, sol.Stats().NoiseDraws, 0)
		_, us := sol.Samples()
		return us
	}

	a := run(42)
	b := run(42)
	c := run(7)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

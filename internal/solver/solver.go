// Package solver drives adaptive time integration: it resolves an
// algorithm through the registry, validates the problem, then repeatedly
// proposes trial steps, estimates local error, accepts or rejects, and
// adapts the step size. Accepted steps feed the dense output; the run ends
// in a [Solution] carrying samples, interpolant, statistics and a return
// code.
//
// A single run is sequential by construction: step n+1 depends on the
// error estimate of step n. Independent runs are parallel; see the
// ensemble package.
package solver

import (
	"context"
	"errors"
	"math"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"github.com/san-kum/diffeq/internal/bridge"
	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/events"
	"github.com/san-kum/diffeq/internal/noise"
	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/steppers"
)

// maxNewtonRetries bounds how often a diverging implicit solve is retried
// with a smaller step before the run reports Unstable.
const maxNewtonRetries = 10

// Solve integrates spec under opts. Structural errors (invalid spec,
// unsupported algorithm, user-function failure) return a non-nil error
// before or during the run; numerical failures end the run normally and
// are reported in the solution's return code.
func Solve(ctx context.Context, spec *problem.Spec, opts Options) (*Solution, error) {
	opts = opts.withDefaults()

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	stepper, desc, err := opts.Registry.Resolve(spec.Kind, opts.Algorithm)
	if err != nil {
		return nil, err
	}

	b := bridge.New(spec)
	if err := stepper.Init(b); err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := log.With(opts.Logger,
		"run", runID.String()[:8],
		"algorithm", desc.Name,
		"kind", spec.Kind.String(),
	)

	t0, tf := spec.TSpan[0], spec.TSpan[1]
	u := spec.U0.Clone()
	var du problem.State
	if spec.Kind == problem.DAE {
		u, du, err = consistentInit(b, spec, opts)
		if err != nil {
			return nil, err
		}
	}

	acc := dense.NewAccumulator(spec.StateDim())

	var wiener *noise.Wiener
	if spec.Kind == problem.SDE {
		wiener = noise.NewWiener(spec.NoiseShape.Cols, opts.Seed)
	}

	var tracker *events.Tracker
	if spec.Kind == problem.DDE {
		tracker = events.NewTracker(spec.ConstantLags, t0, tf)
		b.SetDelayed(events.DelayedAccessor(spec, acc))
	}

	evm := events.NewManager(opts.Events, spec.Params)
	evm.Prime(u, t0)

	h := opts.DtInitial
	if h <= 0 {
		if desc.Adaptive {
			h, err = initialStep(b, spec, u, du, opts)
			if err != nil {
				return nil, err
			}
		} else {
			h = (tf - t0) / 200
		}
	}
	dtMax := opts.DtMax
	if dtMax <= 0 {
		dtMax = tf - t0
	}

	st := &steppers.StepState{Abstol: opts.Abstol, Reltol: opts.Reltol, Noise: wiener}
	ts := []float64{t0}
	us := []problem.State{u.Clone()}

	t := t0
	code := Success
	var stats Stats
	newtonRetries := 0
	attempts := 0

	_ = logger.Log("msg", "solve start", "t0", t0, "tf", tf, "h0", h)

loop:
	for t < tf {
		select {
		case <-ctx.Done():
			code = Terminated
			break loop
		default:
		}
		if attempts >= opts.MaxSteps {
			code = MaxIters
			break
		}
		attempts++

		if h > dtMax {
			h = dtMax
		}

		// Clamp to the next forced boundary: a propagated discontinuity if
		// one comes first, otherwise tf. Landing is exact, never an
		// overshoot.
		target := tf
		if tracker != nil {
			if stop, ok := tracker.Next(t); ok && stop < target {
				target = stop
			}
		}
		hTry := h
		if t+hTry >= target {
			hTry = target - t
		}

		st.T, st.U, st.DU = t, u, du
		res, err := stepper.Step(st, hTry)
		if err != nil {
			if errors.Is(err, steppers.ErrNewtonDiverged) {
				stats.Rejected++
				newtonRetries++
				if newtonRetries > maxNewtonRetries {
					code = Unstable
					break
				}
				h = hTry / 4
				if h < opts.DtMin {
					code = DtLessThanMin
					break
				}
				continue
			}
			return nil, err
		}
		newtonRetries = 0

		if desc.Adaptive && res.ErrNorm > 1 {
			stats.Rejected++
			h = hTry * math.Max(minScale, safety*math.Pow(1.0/res.ErrNorm, 1.0/float64(desc.Order+1)))
			if h < opts.DtMin {
				code = DtLessThanMin
				break
			}
			continue
		}

		tNew := t + hTry
		hit := evm.Detect(res.Segment, res.UNew, t, tNew)
		if hit != nil && hit.T > t && hit.T < tNew-1e-12*(1+math.Abs(tNew)) {
			// Re-step to land exactly on the crossing. The shortened step
			// is accepted as located. A diverging implicit re-step rejects
			// the whole attempt so the crossing is never committed at the
			// un-located boundary.
			res2, err2 := stepper.Step(st, hit.T-t)
			if err2 != nil {
				if !errors.Is(err2, steppers.ErrNewtonDiverged) {
					return nil, err2
				}
				stats.Rejected++
				newtonRetries++
				if newtonRetries > maxNewtonRetries {
					code = Unstable
					break
				}
				h = (hit.T - t) / 4
				if h < opts.DtMin {
					code = DtLessThanMin
					break
				}
				continue
			}
			res = res2
			tNew = hit.T
		}

		hTaken := tNew - t
		t = tNew
		u = res.UNew
		if res.DUNew != nil {
			du = res.DUNew
		}
		acc.Append(res.Segment)
		ts = append(ts, t)
		us = append(us, u.Clone())
		stats.Accepted++
		stats.NewtonIters += res.NewtonIters
		stats.LinearSolves += res.LinearSolves
		if wiener != nil {
			wiener.Advance(t)
		}

		if hit != nil {
			if hit.Event.Apply != nil {
				hit.Event.Apply(u, t)
				us[len(us)-1] = u.Clone()
			}
			evm.Commit(u, t, hit)
		} else {
			evm.Commit(u, t, nil)
		}
		if opts.Observer != nil {
			opts.Observer(t, u, hTaken)
		}
		if hit != nil && hit.Event.Terminal {
			code = Terminated
			_ = logger.Log("msg", "terminal event", "event", hit.Event.Name, "t", t)
			break
		}

		if desc.Adaptive {
			fac := maxScale
			if res.ErrNorm > 0 {
				fac = math.Min(maxScale, math.Max(minScale, safety*math.Pow(1.0/res.ErrNorm, 1.0/float64(desc.Order+1))))
			}
			h = hTry * fac
		}
	}

	var interp *dense.Interpolant
	if acc.Len() > 0 {
		interp = acc.Build()
	}

	sol := &Solution{
		id:     runID,
		ts:     ts,
		us:     us,
		interp: interp,
		code:   code,
		stats:  stats,
	}
	counts := b.Counts()
	sol.stats.Dynamics = counts.Dynamics
	sol.stats.Residual = counts.Residual
	sol.stats.Noise = counts.Noise
	sol.stats.History = counts.History
	if wiener != nil {
		sol.stats.NoiseDraws = wiener.Draws()
	}

	if interp != nil {
		for _, tq := range opts.SaveAt {
			if v, qerr := interp.At(tq); qerr == nil {
				sol.savedTs = append(sol.savedTs, tq)
				sol.savedUs = append(sol.savedUs, v)
			}
		}
	}

	_ = logger.Log("msg", "solve done",
		"code", code.String(),
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"t_final", t,
	)
	return sol, nil
}

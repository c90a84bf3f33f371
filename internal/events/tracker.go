package events

import (
	"math"
	"sort"

	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// maxStops bounds discontinuity-point generation for pathologically small
// lags.
const maxStops = 16384

// Tracker pre-registers the propagated discontinuity points of a delay
// problem as forced step boundaries. Every constant lag L produces kinks at
// t0+L, t0+2L, ... and, with multiple lags, at all sums of lags inside the
// span; stepping across one instead of landing on it costs the method its
// order.
type Tracker struct {
	stops []float64
}

// NewTracker expands the lag set over (t0, tf). Points are grown
// breadth-first: each known discontinuity propagates forward by every lag
// until no new point falls inside the span.
func NewTracker(lags []float64, t0, tf float64) *Tracker {
	seen := map[int64]bool{}
	scale := (tf - t0) * 1e-12
	key := func(t float64) int64 {
		if scale == 0 {
			return int64(t)
		}
		return int64(math.Round((t - t0) / scale))
	}

	frontier := []float64{t0}
	seen[key(t0)] = true
	var stops []float64

	for len(frontier) > 0 && len(stops) < maxStops {
		var next []float64
		for _, base := range frontier {
			for _, lag := range lags {
				if lag == 0 {
					continue
				}
				t := base + lag
				if t >= tf || seen[key(t)] {
					continue
				}
				seen[key(t)] = true
				stops = append(stops, t)
				next = append(next, t)
				if len(stops) >= maxStops {
					break
				}
			}
		}
		frontier = next
	}
	sort.Float64s(stops)
	return &Tracker{stops: stops}
}

// Stops returns the forced boundaries inside the span, ordered.
func (tr *Tracker) Stops() []float64 { return tr.stops }

// Next returns the smallest forced boundary strictly after t.
func (tr *Tracker) Next(t float64) (float64, bool) {
	i := sort.SearchFloat64s(tr.stops, t)
	for i < len(tr.stops) {
		if tr.stops[i] > t*(1+1e-14)+1e-300 && tr.stops[i]-t > 1e-12*(1+math.Abs(t)) {
			return tr.stops[i], true
		}
		i++
	}
	return 0, false
}

// DelayedAccessor builds the lagged-state accessor a delay problem's
// dynamics receive: lag times at or before t0 resolve through the spec's
// history function, times inside the integrated region through the
// in-progress dense output. A lag inside the current step (shorter than the
// step size) extrapolates from the last covered point; the tracker's forced
// boundaries keep that region smooth.
func DelayedAccessor(spec *problem.Spec, acc *dense.Accumulator) problem.HistoryFunc {
	return func(p []float64, t float64) problem.State {
		if t <= spec.TSpan[0] {
			return spec.History(p, t)
		}
		u, err := acc.At(t)
		if err == nil {
			return u
		}
		// Before the first accepted step, or a lag landing inside the
		// trial step: clamp to the nearest covered state.
		if _, tEnd, ok := acc.Covered(); ok && t > tEnd {
			u, _ = acc.At(tEnd)
			return u
		}
		return spec.History(p, spec.TSpan[0])
	}
}

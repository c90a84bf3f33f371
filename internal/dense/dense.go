// Package dense builds continuous solution output from accepted steps.
//
// Each accepted step contributes one [Segment]: a local polynomial valid on
// [t0, t1] with accuracy consistent with the stepper that produced it. The
// finalized [Interpolant] is a pure query object: evaluation depends only on
// t, is safe to repeat, and fails with [problem.OutOfRangeError] outside the
// solved span.
package dense

import (
	"sort"

	"github.com/san-kum/diffeq/internal/problem"
)

// Segment is a continuous local approximation over one accepted step.
type Segment interface {
	Span() (t0, t1 float64)
	// Eval writes the state at t into out; t must lie within Span.
	Eval(t float64, out problem.State)
}

// Interpolant is the finalized dense output over [T0, TEnd]. Immutable.
type Interpolant struct {
	segs   []Segment
	starts []float64
	t0     float64
	tEnd   float64
	dim    int
}

// Span returns the queryable interval.
func (ip *Interpolant) Span() (float64, float64) { return ip.t0, ip.tEnd }

// At evaluates the solution at t. Queries outside the solved span fail with
// an error wrapping problem.ErrOutOfRange.
func (ip *Interpolant) At(t float64) (problem.State, error) {
	if t < ip.t0 || t > ip.tEnd {
		return nil, &problem.OutOfRangeError{T: t, T0: ip.t0, TEnd: ip.tEnd}
	}
	out := make(problem.State, ip.dim)
	ip.segs[ip.locate(t)].Eval(t, out)
	return out, nil
}

func (ip *Interpolant) locate(t float64) int {
	// First segment whose start exceeds t, minus one.
	i := sort.SearchFloat64s(ip.starts, t)
	if i < len(ip.starts) && ip.starts[i] == t {
		return i
	}
	if i == 0 {
		return 0
	}
	return i - 1
}

// Accumulator collects segments during a run. The solver appends one
// segment per accepted step; delay problems query the covered region
// through At before the run finishes.
type Accumulator struct {
	segs   []Segment
	starts []float64
	dim    int
}

func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{dim: dim}
}

// Append adds the segment for the latest accepted step. Segments must be
// contiguous and time-ordered; this is guaranteed by the integration loop,
// which owns the history buffer.
func (a *Accumulator) Append(seg Segment) {
	t0, _ := seg.Span()
	a.segs = append(a.segs, seg)
	a.starts = append(a.starts, t0)
}

func (a *Accumulator) Len() int { return len(a.segs) }

// Covered reports the time interval the accumulated segments span.
func (a *Accumulator) Covered() (float64, float64, bool) {
	if len(a.segs) == 0 {
		return 0, 0, false
	}
	first, _ := a.segs[0].Span()
	_, last := a.segs[len(a.segs)-1].Span()
	return first, last, true
}

// At evaluates within the covered region; used for delayed-state lookups
// while integration is still in progress.
func (a *Accumulator) At(t float64) (problem.State, error) {
	t0, tEnd, ok := a.Covered()
	if !ok || t < t0 || t > tEnd {
		return nil, &problem.OutOfRangeError{T: t, T0: t0, TEnd: tEnd}
	}
	out := make(problem.State, a.dim)
	i := sort.SearchFloat64s(a.starts, t)
	if i >= len(a.starts) || a.starts[i] != t {
		if i > 0 {
			i--
		}
	}
	a.segs[i].Eval(t, out)
	return out, nil
}

// Build freezes the accumulated segments into an immutable Interpolant.
// The accumulator may keep growing afterwards without affecting the result.
func (a *Accumulator) Build() *Interpolant {
	segs := make([]Segment, len(a.segs))
	copy(segs, a.segs)
	starts := make([]float64, len(a.starts))
	copy(starts, a.starts)
	t0, tEnd, _ := a.Covered()
	return &Interpolant{segs: segs, starts: starts, t0: t0, tEnd: tEnd, dim: a.dim}
}

// Package events implements root-found user events and the propagated
// discontinuity tracking required by delay problems. Both feed the
// integrator the same mechanism: forced step boundaries the loop must land
// on exactly.
package events

import (
	"math"

	"github.com/san-kum/diffeq/internal/dense"
	"github.com/san-kum/diffeq/internal/problem"
)

// Event is a scalar root condition checked after every tentative step.
// When the root function changes sign across a step, the crossing is
// located to Tolerance and the step is forced to land there.
type Event struct {
	Name string
	// Root is the scalar condition; a crossing is a sign change between
	// step boundaries.
	Root func(u problem.State, t float64, p []float64) float64
	// Tolerance is the time tolerance for locating the crossing; zero
	// selects a default relative to the crossing time.
	Tolerance float64
	// OneShot events deactivate after their first crossing.
	OneShot bool
	// Terminal events stop the run at the crossing.
	Terminal bool
	// Apply optionally mutates the state at the crossing. Nil means no
	// state modification.
	Apply func(u problem.State, t float64)
}

func (e *Event) tol(t float64) float64 {
	if e.Tolerance > 0 {
		return e.Tolerance
	}
	return 1e-9 * (1 + math.Abs(t))
}

// Hit describes a located crossing.
type Hit struct {
	Event *Event
	Index int
	T     float64
}

// Manager tracks registered events across a run. Events are registered
// before integration and never removed mid-run, except one-shot events
// after they fire.
type Manager struct {
	events []*Event
	active []bool
	last   []float64
	params []float64
	primed bool
}

func NewManager(events []*Event, params []float64) *Manager {
	return &Manager{
		events: events,
		active: make([]bool, len(events)),
		last:   make([]float64, len(events)),
		params: params,
	}
}

func (m *Manager) Len() int { return len(m.events) }

// Prime records root values at the initial point.
func (m *Manager) Prime(u problem.State, t float64) {
	for i, ev := range m.events {
		m.active[i] = true
		m.last[i] = ev.Root(u, t, m.params)
	}
	m.primed = true
}

// Detect checks every active event against the trial step's continuous
// extension and returns the earliest crossing, if any. The manager's stored
// root values are not advanced; call Commit once a boundary is accepted.
func (m *Manager) Detect(seg dense.Segment, uNew problem.State, tPrev, tNew float64) *Hit {
	if !m.primed {
		return nil
	}
	var best *Hit
	for i, ev := range m.events {
		if !m.active[i] {
			continue
		}
		g0 := m.last[i]
		g1 := ev.Root(uNew, tNew, m.params)
		if g0 == 0 || g0*g1 > 0 {
			continue
		}
		tc := m.locate(ev, seg, tPrev, tNew, g0, g1, len(uNew))
		if best == nil || tc < best.T {
			best = &Hit{Event: ev, Index: i, T: tc}
		}
	}
	return best
}

// locate bisects within (lo, hi) on the step's dense output until the
// bracket is narrower than the event tolerance.
func (m *Manager) locate(ev *Event, seg dense.Segment, lo, hi, glo, ghi float64, dim int) float64 {
	if ghi == 0 {
		return hi
	}
	buf := make(problem.State, dim)
	for hi-lo > ev.tol(hi) {
		mid := 0.5 * (lo + hi)
		seg.Eval(mid, buf)
		gm := ev.Root(buf, mid, m.params)
		if gm == 0 {
			return mid
		}
		if glo*gm < 0 {
			hi, ghi = mid, gm
		} else {
			lo, glo = mid, gm
		}
	}
	return hi
}

// Commit advances stored root values to an accepted boundary and retires
// the fired event when it is one-shot.
func (m *Manager) Commit(u problem.State, t float64, fired *Hit) {
	for i, ev := range m.events {
		if !m.active[i] {
			continue
		}
		m.last[i] = ev.Root(u, t, m.params)
	}
	if fired != nil && fired.Event.OneShot {
		m.active[fired.Index] = false
	}
}

package solver

import (
	"github.com/go-kit/kit/log"

	"github.com/san-kum/diffeq/internal/events"
	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/registry"
)

// Step-size controller constants.
const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 10.0
)

// Observer is called after every accepted step.
type Observer func(t float64, u problem.State, h float64)

// Options is the per-run configuration surface.
type Options struct {
	// Algorithm names a registered stepper; empty or "default" selects the
	// highest-order adaptive method for the problem kind.
	Algorithm string

	Abstol float64
	Reltol float64

	// DtInitial seeds the first step; zero selects the derivative-based
	// heuristic (or a fixed grid of (tf-t0)/200 for non-adaptive methods).
	DtInitial float64
	// DtMin is the step-size floor; falling below it ends the run with
	// DtLessThanMin.
	DtMin float64
	// DtMax caps the step size; zero means the full span.
	DtMax float64

	// MaxSteps bounds total step attempts; exceeding it ends the run with
	// MaxIters.
	MaxSteps int

	// SaveAt requests additional dense-output samples at fixed times
	// during finalization.
	SaveAt []float64

	// Seed drives the Wiener process of stochastic problems.
	Seed uint64

	// Events are registered before integration starts.
	Events []*events.Event

	// Observer, when set, sees every accepted step.
	Observer Observer

	// Registry resolves the algorithm; nil uses the built-in registry.
	Registry *registry.Registry

	Logger log.Logger
}

// DefaultOptions mirrors the common tolerances of adaptive ODE suites.
func DefaultOptions() Options {
	return Options{
		Abstol:   1e-6,
		Reltol:   1e-3,
		DtMin:    1e-12,
		MaxSteps: 100000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Abstol <= 0 {
		o.Abstol = d.Abstol
	}
	if o.Reltol <= 0 {
		o.Reltol = d.Reltol
	}
	if o.DtMin <= 0 {
		o.DtMin = d.DtMin
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = d.MaxSteps
	}
	if o.Registry == nil {
		o.Registry = registry.New()
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	return o
}

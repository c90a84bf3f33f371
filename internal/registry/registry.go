// Package registry resolves (problem kind, algorithm name) pairs to
// stepping strategies. The default registry carries the built-in steppers;
// external algorithm modules add their own through Register, so new methods
// never touch the integrator.
package registry

import (
	"fmt"
	"sort"

	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/steppers"
)

// Factory builds a fresh stepper instance for one run.
type Factory func() steppers.Stepper

// AlgorithmError reports an algorithm that is unknown or does not support
// the problem's kind. Surfaced before any stepping occurs.
type AlgorithmError struct {
	Name    string
	Kind    problem.Kind
	Unknown bool
}

func (e *AlgorithmError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("unknown algorithm %q", e.Name)
	}
	return fmt.Sprintf("algorithm %q does not support %s problems", e.Name, e.Kind)
}

func (e *AlgorithmError) Unwrap() error { return problem.ErrUnsupportedAlgorithm }

// Registry maps algorithm names to factories. Construct explicitly and
// inject; there is no ambient global registry.
type Registry struct {
	factories map[string]Factory
	descs     map[string]steppers.Descriptor
}

// New returns a registry populated with the built-in steppers.
func New() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		descs:     make(map[string]steppers.Descriptor),
	}
	r.Register(func() steppers.Stepper { return steppers.NewDopri5() })
	r.Register(func() steppers.Stepper { return steppers.NewRK4() })
	r.Register(func() steppers.Stepper { return steppers.NewBDF() })
	r.Register(func() steppers.Stepper { return steppers.NewEM() })
	return r
}

// Register adds a factory under its descriptor's name, replacing any
// previous registration of the same name.
func (r *Registry) Register(f Factory) {
	d := f().Descriptor()
	r.factories[d.Name] = f
	r.descs[d.Name] = d
}

// Resolve returns a fresh stepper for the requested algorithm, or the
// kind-appropriate default when name is empty: the highest-order adaptive
// method registered for the kind, falling back to the highest-order
// non-adaptive one.
func (r *Registry) Resolve(kind problem.Kind, name string) (steppers.Stepper, steppers.Descriptor, error) {
	if name == "" || name == "default" {
		return r.resolveDefault(kind)
	}
	d, ok := r.descs[name]
	if !ok {
		return nil, steppers.Descriptor{}, &AlgorithmError{Name: name, Kind: kind, Unknown: true}
	}
	if !d.Supports(kind) {
		return nil, steppers.Descriptor{}, &AlgorithmError{Name: name, Kind: kind}
	}
	return r.factories[name](), d, nil
}

func (r *Registry) resolveDefault(kind problem.Kind) (steppers.Stepper, steppers.Descriptor, error) {
	pick := func(adaptive bool) string {
		best := ""
		order := -1
		for name, d := range r.descs {
			if !d.Supports(kind) || d.Adaptive != adaptive {
				continue
			}
			if d.Order > order || (d.Order == order && name < best) {
				best, order = name, d.Order
			}
		}
		return best
	}
	// Adaptive methods win; order breaks ties within each class.
	best := pick(true)
	if best == "" {
		best = pick(false)
	}
	if best == "" {
		return nil, steppers.Descriptor{}, &AlgorithmError{Name: "default", Kind: kind}
	}
	return r.factories[best](), r.descs[best], nil
}

// List returns all registered descriptors ordered by name.
func (r *Registry) List() []steppers.Descriptor {
	out := make([]steppers.Descriptor, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

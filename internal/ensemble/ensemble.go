// Package ensemble runs many independent integrations of one problem in
// parallel. Runs share nothing mutable: each gets its own bridge, stepper,
// noise process and history buffer, so the only requirement on the user's
// callables is that they are safe to call from multiple goroutines.
package ensemble

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/solver"
)

// Mutate customizes the options of run i, e.g. perturbing tolerances or
// seeding. The base seed is already offset by the run index before Mutate
// is called.
type Mutate func(i int, opts *solver.Options)

type Ensemble struct {
	spec    *problem.Spec
	opts    solver.Options
	runs    int
	workers int
	mutate  Mutate
}

func New(spec *problem.Spec, opts solver.Options, runs int) *Ensemble {
	return &Ensemble{spec: spec, opts: opts, runs: runs}
}

// SetWorkers bounds parallelism; zero or negative means unbounded.
func (e *Ensemble) SetWorkers(n int) { e.workers = n }

func (e *Ensemble) SetMutate(m Mutate) { e.mutate = m }

// Run solves every realization and returns the solutions in run order.
// The first structural error cancels the remaining runs.
func (e *Ensemble) Run(ctx context.Context) ([]*solver.Solution, error) {
	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}

	sols := make([]*solver.Solution, e.runs)
	for i := 0; i < e.runs; i++ {
		i := i
		g.Go(func() error {
			opts := e.opts
			opts.Seed = e.opts.Seed + uint64(i)
			if e.mutate != nil {
				e.mutate(i, &opts)
			}
			sol, err := solver.Solve(ctx, e.spec, opts)
			if err != nil {
				return err
			}
			sols[i] = sol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sols, nil
}

// Summary aggregates outcomes across an ensemble.
type Summary struct {
	Runs     int
	Accepted int
	Rejected int
	Codes    map[solver.ReturnCode]int
}

func Summarize(sols []*solver.Solution) Summary {
	s := Summary{Runs: len(sols), Codes: make(map[solver.ReturnCode]int)}
	for _, sol := range sols {
		if sol == nil {
			continue
		}
		st := sol.Stats()
		s.Accepted += st.Accepted
		s.Rejected += st.Rejected
		s.Codes[sol.ReturnCode()]++
	}
	return s
}

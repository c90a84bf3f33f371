package solver_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/problems"
	"github.com/san-kum/diffeq/internal/solver"
)

var _ = Describe("dense output", func() {
	var sol *solver.Solution

	BeforeEach(func() {
		var err error
		sol, err = solver.Solve(context.Background(), problems.LinearDecay(), solver.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(sol.ReturnCode()).To(Equal(solver.Success))
	})

	It("covers the whole span", func() {
		for _, tq := range []float64{0, 0.1, 0.5, 0.999, 1.0} {
			_, err := sol.At(tq)
			Expect(err).NotTo(HaveOccurred(), "t=%v", tq)
		}
	})

	It("tracks the exact solution between samples", func() {
		for tq := 0.05; tq < 1.0; tq += 0.1 {
			u, err := sol.At(tq)
			Expect(err).NotTo(HaveOccurred())
			Expect(u[0]).To(BeNumerically("~", math.Exp(-tq), 1e-4))
		}
	})

	It("is continuous across segment boundaries", func() {
		ts, _ := sol.Samples()
		eps := 1e-9
		for _, tn := range ts[1 : len(ts)-1] {
			left, err := sol.At(tn - eps)
			Expect(err).NotTo(HaveOccurred())
			right, err := sol.At(tn + eps)
			Expect(err).NotTo(HaveOccurred())
			Expect(left[0]).To(BeNumerically("~", right[0], 1e-6))
		}
	})

	It("returns the same values on repeated queries", func() {
		a, err := sol.At(0.42)
		Expect(err).NotTo(HaveOccurred())
		b, err := sol.At(0.42)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(a))
	})

	It("rejects queries outside the span", func() {
		_, err := sol.At(-0.5)
		Expect(err).To(MatchError(problem.ErrOutOfRange))
		_, err = sol.At(1.5)
		Expect(err).To(MatchError(problem.ErrOutOfRange))
	})
})

var _ = Describe("tolerance scaling", func() {
	finalError := func(reltol float64) float64 {
		opts := solver.DefaultOptions()
		opts.Abstol = reltol * 1e-3
		opts.Reltol = reltol
		sol, err := solver.Solve(context.Background(), problems.LinearDecay(), opts)
		Expect(err).NotTo(HaveOccurred())
		u, err := sol.At(1.0)
		Expect(err).NotTo(HaveOccurred())
		return math.Abs(u[0] - math.Exp(-1))
	}

	It("tightening the tolerance tightens the answer", func() {
		loose := finalError(1e-3)
		tight := finalError(1e-9)
		Expect(tight).To(BeNumerically("<", loose))
		Expect(tight).To(BeNumerically("<", 1e-8))
	})
})

// Package noise generates the Wiener increments driving stochastic
// problems. Increments are cached per interval: a step that is rejected and
// retried with a smaller size reuses the original draw, split consistently
// by a Brownian bridge. Re-drawing instead would silently break strong-order
// convergence.
package noise

import (
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

type draw struct {
	t, h float64
	dW   []float64
}

// Wiener produces increments for a fixed number of independent processes.
// Not safe for concurrent use; each run owns its own Wiener.
type Wiener struct {
	cols   int
	normal distuv.Normal
	cache  []draw
	draws  int
}

func NewWiener(cols int, seed uint64) *Wiener {
	return &Wiener{
		cols: cols,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   exprand.NewSource(seed),
		},
	}
}

func (w *Wiener) Cols() int { return w.cols }

// Draws reports how many fresh vector increments were sampled.
func (w *Wiener) Draws() int { return w.draws }

func sameTime(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*(1+math.Abs(a)+math.Abs(b))
}

func (w *Wiener) fresh(h float64) []float64 {
	w.draws++
	sd := math.Sqrt(h)
	dW := make([]float64, w.cols)
	for i := range dW {
		dW[i] = sd * w.normal.Rand()
	}
	return dW
}

// Increment returns the increment vector over [t, t+h]. The same interval
// always yields the same values; a sub-interval of a cached draw is derived
// from it by bridging.
func (w *Wiener) Increment(t, h float64) []float64 {
	for i, d := range w.cache {
		if !sameTime(d.t, t) {
			continue
		}
		switch {
		case sameTime(d.h, h):
			return d.dW
		case h < d.h:
			return w.split(i, h)
		default:
			// Extension past a cached draw: append a fresh increment for
			// the uncovered tail and merge.
			tail := w.fresh(h - d.h)
			merged := make([]float64, w.cols)
			for j := range merged {
				merged[j] = d.dW[j] + tail[j]
			}
			w.cache[i] = draw{t: t, h: h, dW: merged}
			return merged
		}
	}
	dW := w.fresh(h)
	w.cache = append(w.cache, draw{t: t, h: h, dW: dW})
	return dW
}

// split carves [t, t+h] out of the cached draw at index i using a Brownian
// bridge, so the two halves sum exactly to the original increment.
func (w *Wiener) split(i int, h float64) []float64 {
	d := w.cache[i]
	frac := h / d.h
	sd := math.Sqrt(h * (d.h - h) / d.h)

	left := make([]float64, w.cols)
	right := make([]float64, w.cols)
	for j := range left {
		left[j] = frac*d.dW[j] + sd*w.normal.Rand()
		right[j] = d.dW[j] - left[j]
	}
	w.cache[i] = draw{t: d.t, h: h, dW: left}
	w.cache = append(w.cache, draw{t: d.t + h, h: d.h - h, dW: right})
	return left
}

// Advance discards cached draws that end at or before t; called after a
// step is accepted.
func (w *Wiener) Advance(t float64) {
	kept := w.cache[:0]
	for _, d := range w.cache {
		if d.t+d.h > t && !sameTime(d.t+d.h, t) {
			kept = append(kept, d)
		}
	}
	w.cache = kept
}

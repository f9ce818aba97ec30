package stats

import (
	"math"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
)

// Windowed tracks the mean and population variance of the last size
// observations without recomputing from scratch.
//
// Warm-up (count <= size): values are accumulated as mean += x/size and
// second moment += x²/size; on the observation that fills the window the
// second moment becomes a variance (var -= mean²). Before that point Mean
// and Variance are partial sums. Afterwards each update evicts the oldest
// value x0:
//
//	mean' = mean + (x - x0)/size
//	var'  = var + (x² - x0²)/size + (mean² - mean'²)
//
// Round-off can push var' slightly below zero; it is clamped to 0.
type Windowed struct {
	size     int
	inv      float64
	values   *common.Ring
	mean     float64
	variance float64
	count    uint64
}

// NewWindowed creates windowed statistics over size observations
func NewWindowed(size int) *Windowed {
	if size < 1 {
		size = 1
	}
	return &Windowed{
		size:   size,
		inv:    1.0 / float64(size),
		values: common.NewRing(size),
	}
}

// Update incorporates x and returns the new mean and variance
func (w *Windowed) Update(x float64) (mean, variance float64) {
	w.count++

	if w.count <= uint64(w.size) {
		w.values.Push(x)
		w.mean += w.inv * x
		w.variance += w.inv * x * x
		if w.count == uint64(w.size) {
			w.variance = math.Max(w.variance-w.mean*w.mean, 0)
		}
		return w.mean, w.variance
	}

	oldest, _ := w.values.Push(x)
	prevMean := w.mean
	w.mean = prevMean + w.inv*(x-oldest)
	w.variance += w.inv*(x*x-oldest*oldest) + (prevMean*prevMean - w.mean*w.mean)
	if w.variance < 0 {
		w.variance = 0
	}
	return w.mean, w.variance
}

// Mean returns the current windowed mean
func (w *Windowed) Mean() float64 { return w.mean }

// Variance returns the current windowed variance
func (w *Windowed) Variance() float64 { return w.variance }

// Count returns the number of observations seen
func (w *Windowed) Count() uint64 { return w.count }

// Size returns the window length
func (w *Windowed) Size() int { return w.size }

// Ready reports whether the window has been filled once
func (w *Windowed) Ready() bool { return w.count >= uint64(w.size) }

// Values copies the retained observations, oldest first, into dst
func (w *Windowed) Values(dst []float64) []float64 {
	return w.values.Values(dst)
}

// Global tracks the mean and population variance of every observation
// since creation with the online recurrence
//
//	mean_n = ((n-1)/n)·mean_{n-1} + x/n
//	var_n  = ((n-1)/n)·var_{n-1} + (x - mean_{n-1})(x - mean_n)/n
//
// which equals the brute-force population variance of the whole history.
type Global struct {
	count    uint64
	mean     float64
	variance float64
}

// Update incorporates x and returns the new lifetime mean and variance
func (g *Global) Update(x float64) (mean, variance float64) {
	g.count++
	if g.count == 1 {
		g.mean = x
		g.variance = 0
		return g.mean, g.variance
	}

	n := float64(g.count)
	w := (n - 1) / n
	prevMean := g.mean
	g.mean = w*prevMean + x/n
	g.variance = w*g.variance + (x-prevMean)*(x-g.mean)/n
	return g.mean, g.variance
}

// Anchor replaces the estimate with mean and variance. The observation count
// is kept, so later observations are weighted as before.
func (g *Global) Anchor(mean, variance float64) {
	g.mean = mean
	g.variance = variance
}

// Mean returns the lifetime mean
func (g *Global) Mean() float64 { return g.mean }

// Variance returns the lifetime variance
func (g *Global) Variance() float64 { return g.variance }

// Count returns the number of observations seen
func (g *Global) Count() uint64 { return g.count }

// Moments is the result of one Running update
type Moments struct {
	WindowMean     float64 `json:"window_mean"`
	WindowVariance float64 `json:"window_variance"`
	GlobalMean     float64 `json:"global_mean"`
	GlobalVariance float64 `json:"global_variance"`
}

// Running pairs sliding-window and lifetime statistics for one signal
type Running struct {
	Window *Windowed
	Global *Global
}

// NewRunning creates running statistics with the given window length
func NewRunning(windowSize int) *Running {
	return &Running{
		Window: NewWindowed(windowSize),
		Global: &Global{},
	}
}

// Update feeds x to both estimators. The lifetime estimate is updated
// first, then the window.
func (r *Running) Update(x float64) Moments {
	gm, gv := r.Global.Update(x)
	wm, wv := r.Window.Update(x)
	return Moments{
		WindowMean:     wm,
		WindowVariance: wv,
		GlobalMean:     gm,
		GlobalVariance: gv,
	}
}

// Recalibrate anchors the lifetime estimate to the current window
func (r *Running) Recalibrate() {
	r.Global.Anchor(r.Window.Mean(), r.Window.Variance())
}

// Moments returns the current estimates without updating
func (r *Running) Moments() Moments {
	return Moments{
		WindowMean:     r.Window.Mean(),
		WindowVariance: r.Window.Variance(),
		GlobalMean:     r.Global.Mean(),
		GlobalVariance: r.Global.Variance(),
	}
}

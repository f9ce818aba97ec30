package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func sequence(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	xs := make([]float64, n)
	for i := range xs {
		// band levels are non-negative sums of magnitudes
		xs[i] = 50 + 40*rng.Float64() + 10*math.Sin(float64(i)/7)
	}
	return xs
}

func closeTo(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}

func TestWindowedMatchesBruteForce(t *testing.T) {
	tests := []struct {
		name   string
		window int
		n      int
	}{
		{"window 1", 1, 40},
		{"window 5", 5, 100},
		{"window 50", 50, 500},
		{"exactly full", 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xs := sequence(tt.n, uint64(tt.window))
			w := NewWindowed(tt.window)

			for k, x := range xs {
				mean, variance := w.Update(x)
				if k+1 < tt.window {
					continue
				}
				wantMean, wantVar := stat.PopMeanVariance(xs[k+1-tt.window:k+1], nil)
				if !closeTo(mean, wantMean, 1e-9) {
					t.Fatalf("step %d: mean = %v, want %v", k, mean, wantMean)
				}
				if !closeTo(variance, wantVar, 1e-6) {
					t.Fatalf("step %d: variance = %v, want %v", k, variance, wantVar)
				}
			}

			if !w.Ready() {
				t.Error("Ready() = false after a full window")
			}
			values := w.Values(nil)
			last := xs[len(xs)-tt.window:]
			for i := range last {
				if values[i] != last[i] {
					t.Fatalf("Values() = %v, want %v", values, last)
				}
			}
		})
	}
}

func TestWindowedWarmupIsPartial(t *testing.T) {
	w := NewWindowed(4)
	w.Update(4)
	w.Update(8)

	if w.Ready() {
		t.Fatal("Ready() = true before the window filled")
	}
	// two of four slots: mean accumulates x/size
	if got := w.Mean(); got != 3 {
		t.Errorf("partial Mean() = %v, want 3", got)
	}
}

func TestGlobalMatchesBruteForce(t *testing.T) {
	xs := sequence(1000, 7)
	var g Global

	for k, x := range xs {
		mean, variance := g.Update(x)
		wantMean, wantVar := stat.PopMeanVariance(xs[:k+1], nil)
		if !closeTo(mean, wantMean, 1e-9) {
			t.Fatalf("step %d: mean = %v, want %v", k, mean, wantMean)
		}
		if !closeTo(variance, wantVar, 1e-8) {
			t.Fatalf("step %d: variance = %v, want %v", k, variance, wantVar)
		}
	}
	if g.Count() != uint64(len(xs)) {
		t.Errorf("Count() = %d, want %d", g.Count(), len(xs))
	}
}

func TestVarianceNeverNegative(t *testing.T) {
	// Large offset with tiny jitter provokes cancellation in var -= mean².
	rng := rand.New(rand.NewPCG(1, 2))
	w := NewWindowed(50)
	var g Global

	for k := range 5000 {
		x := 1e8 + 1e-3*rng.Float64()
		if k%500 == 0 {
			x = 1e8
		}
		_, wv := w.Update(x)
		_, gv := g.Update(x)
		if wv < 0 {
			t.Fatalf("step %d: windowed variance %v < 0", k, wv)
		}
		if gv < 0 {
			t.Fatalf("step %d: global variance %v < 0", k, gv)
		}
	}
}

func TestConstantInputConverges(t *testing.T) {
	const c = 12.5
	r := NewRunning(50)

	var m Moments
	for range 200 {
		m = r.Update(c)
	}

	if !closeTo(m.WindowMean, c, 1e-12) || !closeTo(m.GlobalMean, c, 1e-12) {
		t.Errorf("means = (%v, %v), want %v", m.WindowMean, m.GlobalMean, c)
	}
	if m.WindowVariance > 1e-9 || m.GlobalVariance > 1e-9 {
		t.Errorf("variances = (%v, %v), want ~0", m.WindowVariance, m.GlobalVariance)
	}
}

func TestRecalibrateKeepsCount(t *testing.T) {
	r := NewRunning(3)
	for _, x := range []float64{1, 2, 3, 10, 10, 10} {
		r.Update(x)
	}

	r.Recalibrate()

	m := r.Moments()
	if !closeTo(m.GlobalMean, 10, 1e-12) || m.GlobalVariance > 1e-9 {
		t.Errorf("after Recalibrate global = (%v, %v), want (10, 0)", m.GlobalMean, m.GlobalVariance)
	}
	if r.Global.Count() != 6 {
		t.Errorf("Count() = %d after Recalibrate, want 6", r.Global.Count())
	}

	// next observation is weighted as the 7th
	r.Update(17)
	if got := r.Global.Mean(); !closeTo(got, 11, 1e-9) {
		t.Errorf("Mean() = %v after anchored update, want 11", got)
	}
}

func TestWindowedUpdateNoAllocs(t *testing.T) {
	w := NewWindowed(50)
	allocs := testing.AllocsPerRun(100, func() {
		w.Update(3)
	})
	if allocs != 0 {
		t.Errorf("Update allocated %v times per run, want 0", allocs)
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{4, 1, math.NaN(), 3, 2, math.Inf(1)})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Count != 4 {
		t.Errorf("Count = %d, want 4", s.Count)
	}
	if s.Mean != 2.5 || s.Variance != 1.25 {
		t.Errorf("mean/variance = %v/%v, want 2.5/1.25", s.Mean, s.Variance)
	}
	if s.Min != 1 || s.Max != 4 {
		t.Errorf("min/max = %v/%v, want 1/4", s.Min, s.Max)
	}
	if s.Quartiles.Q2 < 2 || s.Quartiles.Q2 > 3 {
		t.Errorf("median = %v, want within [2, 3]", s.Quartiles.Q2)
	}

	if _, err := Summarize([]float64{math.NaN()}); err == nil {
		t.Error("Summarize of only NaN returned no error")
	}
}

package spectral

import (
	"math"
	"testing"
)

func TestCentroid(t *testing.T) {
	// 8-sample frames at 8 kHz: bins at 0, 1000, 2000, 3000, 4000 Hz
	c := NewCentroid(8, 8000)

	tests := []struct {
		name     string
		spectrum []float64
		want     float64
	}{
		{"single bin", []float64{0, 0, 3, 0, 0}, 2000},
		{"two equal bins", []float64{0, 1, 0, 1, 0}, 2000},
		{"weighted", []float64{0, 3, 0, 0, 1}, 1750},
		{"silent", []float64{0, 0, 0, 0, 0}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Compute(tt.spectrum); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Compute(%v) = %v, want %v", tt.spectrum, got, tt.want)
			}
		})
	}
}

func TestFlux(t *testing.T) {
	f := NewFlux(3)

	steps := []struct {
		spectrum []float64
		want     float64
	}{
		{[]float64{1, 1, 1}, 0}, // first frame
		{[]float64{4, 5, 1}, 5}, // +3, +4
		{[]float64{0, 0, 0}, 0}, // decreases only
		{[]float64{0, 0, 2}, 2}, // +2
		{[]float64{0, 0, 2}, 0}, // unchanged
	}
	for i, s := range steps {
		if got := f.Compute(s.spectrum); math.Abs(got-s.want) > 1e-12 {
			t.Errorf("step %d: Compute = %v, want %v", i, got, s.want)
		}
	}

	f.Reset()
	if got := f.Compute([]float64{9, 9, 9}); got != 0 {
		t.Errorf("first Compute after Reset = %v, want 0", got)
	}
}

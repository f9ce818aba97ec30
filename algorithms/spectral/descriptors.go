package spectral

import (
	"math"
)

// Centroid computes the spectral centroid (center of mass) of a magnitude
// spectrum in Hz
type Centroid struct {
	freqBins []float64 // Pre-calculated bin frequencies
}

// NewCentroid creates a centroid calculator for spectra of frameSize/2+1
// bins at the given sample rate
func NewCentroid(frameSize, sampleRate int) *Centroid {
	bins := frameSize/2 + 1
	c := &Centroid{freqBins: make([]float64, bins)}
	for i := range bins {
		c.freqBins[i] = float64(i) * float64(sampleRate) / float64(frameSize)
	}
	return c
}

// Compute returns the centroid of spectrum, or 0 for an empty or silent
// spectrum
func (c *Centroid) Compute(spectrum []float64) float64 {
	n := min(len(spectrum), len(c.freqBins))

	numerator := 0.0
	denominator := 0.0
	for i := range n {
		numerator += c.freqBins[i] * spectrum[i]
		denominator += spectrum[i]
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// Flux computes frame-to-frame spectral flux: the L2 norm of the positive
// magnitude changes since the previous spectrum
type Flux struct {
	prev   []float64
	primed bool
}

// NewFlux creates a flux calculator for spectra of the given bin count
func NewFlux(bins int) *Flux {
	return &Flux{prev: make([]float64, bins)}
}

// Compute returns the flux against the previous call and remembers
// spectrum. The first call returns 0.
func (f *Flux) Compute(spectrum []float64) float64 {
	n := min(len(spectrum), len(f.prev))

	sum := 0.0
	for i := range n {
		diff := spectrum[i] - f.prev[i]
		if diff > 0 { // Only energy increases
			sum += diff * diff
		}
	}
	copy(f.prev, spectrum[:n])

	if !f.primed {
		f.primed = true
		return 0
	}
	return math.Sqrt(sum)
}

// Reset forgets the previous spectrum
func (f *Flux) Reset() {
	clear(f.prev)
	f.primed = false
}

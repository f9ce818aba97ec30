package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// BandLayout partitions a magnitude spectrum into logarithmically spaced
// bands. Boundaries are bin indices; band b sums bins
// [boundaries[b]+1, boundaries[b+1]), so DC and each upper boundary bin are
// left out.
type BandLayout struct {
	boundaries []int
	minFreq    float64
	maxFreq    float64
	sampleRate int
	chunkSize  int
}

// BandBoundaries returns bands+1 bin indices spaced by an equal number of
// octaves between minFreq and maxFreq:
//
//	idx[i] = round(minFreq * 2^(octavesPerBand*i) * chunkSize / sampleRate)
func BandBoundaries(minFreq, maxFreq float64, bands, sampleRate, chunkSize int) []int {
	octavesPerBand := math.Log2(maxFreq/minFreq) / float64(bands)
	boundaries := make([]int, bands+1)
	for i := range boundaries {
		freq := minFreq * math.Pow(2, octavesPerBand*float64(i))
		boundaries[i] = int(math.Round(freq * float64(chunkSize) / float64(sampleRate)))
	}
	return boundaries
}

// NewBandLayout validates the parameters and computes the boundary table
func NewBandLayout(minFreq, maxFreq float64, bands, sampleRate, chunkSize int) (*BandLayout, error) {
	switch {
	case bands < 1:
		return nil, fmt.Errorf("band count must be positive, got %d", bands)
	case sampleRate <= 0:
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	case chunkSize < 2:
		return nil, fmt.Errorf("chunk size must be at least 2, got %d", chunkSize)
	case minFreq <= 0 || maxFreq <= minFreq:
		return nil, fmt.Errorf("frequency range must satisfy 0 < min < max, got %.1f-%.1f Hz", minFreq, maxFreq)
	}

	boundaries := BandBoundaries(minFreq, maxFreq, bands, sampleRate, chunkSize)
	if top := boundaries[bands]; top > chunkSize/2 {
		return nil, fmt.Errorf("max frequency %.1f Hz maps to bin %d, beyond the last bin %d at %d Hz sample rate",
			maxFreq, top, chunkSize/2, sampleRate)
	}

	return &BandLayout{
		boundaries: boundaries,
		minFreq:    minFreq,
		maxFreq:    maxFreq,
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
	}, nil
}

// Bands returns the number of bands
func (bl *BandLayout) Bands() int {
	return len(bl.boundaries) - 1
}

// Boundaries returns a copy of the boundary table
func (bl *BandLayout) Boundaries() []int {
	return append([]int(nil), bl.boundaries...)
}

// BoundaryFrequency returns the frequency in Hz of boundary i after
// rounding to a bin
func (bl *BandLayout) BoundaryFrequency(i int) float64 {
	return float64(bl.boundaries[i]) * float64(bl.sampleRate) / float64(bl.chunkSize)
}

// Levels writes one summed magnitude per band into dst (grown if needed)
// and returns it. Bands whose range is empty get 0.
func (bl *BandLayout) Levels(magnitudes []float64, dst []float64) []float64 {
	bands := bl.Bands()
	if cap(dst) < bands {
		dst = make([]float64, bands)
	}
	dst = dst[:bands]

	for b := range bands {
		lo := bl.boundaries[b] + 1
		hi := min(bl.boundaries[b+1], len(magnitudes))
		if lo >= hi {
			dst[b] = 0
			continue
		}
		dst[b] = floats.Sum(magnitudes[lo:hi])
	}
	return dst
}

// PeakAbove reports whether any magnitude exceeds threshold
func PeakAbove(magnitudes []float64, threshold float64) bool {
	if len(magnitudes) == 0 {
		return false
	}
	return floats.Max(magnitudes) > threshold
}

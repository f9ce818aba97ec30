package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrFrameSize is returned when a frame does not match the transform size
var ErrFrameSize = errors.New("spectral: frame size mismatch")

// RealFFT computes the magnitude spectrum of real-valued frames of a fixed
// size. The plan, coefficient and magnitude buffers are allocated once, so
// repeated calls do not touch the heap. Not safe for concurrent use.
type RealFFT struct {
	size       int
	plan       *fourier.FFT
	coeffs     []complex128
	magnitudes []float64
}

// NewRealFFT creates a transform for frames of the given size
func NewRealFFT(size int) (*RealFFT, error) {
	if size < 2 {
		return nil, fmt.Errorf("fft size must be at least 2, got %d", size)
	}
	bins := size/2 + 1
	return &RealFFT{
		size:       size,
		plan:       fourier.NewFFT(size),
		coeffs:     make([]complex128, bins),
		magnitudes: make([]float64, bins),
	}, nil
}

// Compute transforms frame and returns its N/2+1 complex bins. The returned
// slice is reused by the next call.
func (f *RealFFT) Compute(frame []float64) ([]complex128, error) {
	if len(frame) != f.size {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(frame), f.size)
	}
	return f.plan.Coefficients(f.coeffs, frame), nil
}

// Magnitudes transforms frame and returns |X[k]| for k = 0..N/2. The
// returned slice is reused by the next call.
func (f *RealFFT) Magnitudes(frame []float64) ([]float64, error) {
	coeffs, err := f.Compute(frame)
	if err != nil {
		return nil, err
	}
	for i, c := range coeffs {
		f.magnitudes[i] = cmplx.Abs(c)
	}
	return f.magnitudes, nil
}

// Size returns the frame size
func (f *RealFFT) Size() int {
	return f.size
}

// Bins returns the number of frequency bins (N/2+1)
func (f *RealFFT) Bins() int {
	return len(f.magnitudes)
}

// BinFrequency returns the center frequency in Hz of bin i
func (f *RealFFT) BinFrequency(i, sampleRate int) float64 {
	return float64(i) * float64(sampleRate) / float64(f.size)
}

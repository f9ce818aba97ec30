package windowing

import (
	"fmt"
	"slices"

	"github.com/mjibson/go-dsp/window"
)

// Kind names a window function
type Kind string

const (
	Hann        Kind = "hann"
	Hamming     Kind = "hamming"
	Blackman    Kind = "blackman"
	Bartlett    Kind = "bartlett"
	FlatTop     Kind = "flattop"
	Rectangular Kind = "rectangular"
)

// All generators are symmetric: the cosine argument runs over L-1 intervals,
// so Hann is w[i] = 0.5*(1 - cos(2*pi*i/(L-1))).
var generators = map[Kind]func(int) []float64{
	Hann:        window.Hann,
	Hamming:     window.Hamming,
	Blackman:    window.Blackman,
	Bartlett:    window.Bartlett,
	FlatTop:     window.FlatTop,
	Rectangular: window.Rectangular,
}

// Kinds returns the supported window kinds in sorted order
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(generators))
	for k := range generators {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// ParseKind validates a window name
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := generators[k]; !ok {
		return "", fmt.Errorf("unknown window %q (supported: %v)", name, Kinds())
	}
	return k, nil
}

// Window holds precomputed coefficients for one window kind and size
type Window struct {
	kind         Kind
	size         int
	coefficients []float64
}

// New precomputes a window of the given kind and size
func New(kind Kind, size int) (*Window, error) {
	gen, ok := generators[kind]
	if !ok {
		return nil, fmt.Errorf("unknown window %q", kind)
	}
	if size < 2 {
		return nil, fmt.Errorf("window size must be at least 2, got %d", size)
	}

	return &Window{
		kind:         kind,
		size:         size,
		coefficients: gen(size),
	}, nil
}

// NewHann creates a symmetric Hann window
func NewHann(size int) (*Window, error) {
	return New(Hann, size)
}

// At returns the coefficient for position i
func (w *Window) At(i int) float64 {
	return w.coefficients[i]
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) []float64 {
	if len(signal) != w.size {
		return nil
	}

	windowed := make([]float64, w.size)
	for i := range w.size {
		windowed[i] = signal[i] * w.coefficients[i]
	}

	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i := range w.size {
		signal[i] *= w.coefficients[i]
	}

	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	return slices.Clone(w.coefficients)
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return w.size
}

// GetType returns the window type
func (w *Window) GetType() Kind {
	return w.kind
}

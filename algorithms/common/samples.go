package common

// Sample is a raw PCM sample type
type Sample interface {
	int8 | uint8 | int16 | int32 | float32 | float64
}

// Converter returns the full-scale conversion for T: signed integers are
// divided by 2^(bits-1), uint8 is offset by 128 first, floats pass through.
func Converter[T Sample]() func(T) float64 {
	var zero T
	switch any(zero).(type) {
	case int8:
		return func(s T) float64 { return float64(s) / 128 }
	case uint8:
		return func(s T) float64 { return (float64(s) - 128) / 128 }
	case int16:
		return func(s T) float64 { return float64(s) / 32768 }
	case int32:
		return func(s T) float64 { return float64(s) / 2147483648 }
	default:
		return func(s T) float64 { return float64(s) }
	}
}

// ToFloat converts one sample to a float64 in [-1, 1]
func ToFloat[T Sample](s T) float64 {
	return Converter[T]()(s)
}

// ToFloat32 converts a buffer of samples into dst (grown if needed)
func ToFloat32[T Sample](src []T, dst []float32) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	conv := Converter[T]()
	for i, s := range src {
		dst[i] = float32(conv(s))
	}
	return dst
}

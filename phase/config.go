package phase

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-pulse/algorithms/windowing"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure
var ErrInvalidConfig = errors.New("invalid analysis config")

// Config holds analysis pipeline configuration
type Config struct {
	ChunkSize  int     `json:"chunk_size"`  // Analysis frame length in samples (even)
	Bands      int     `json:"bands"`       // Number of logarithmic bands
	MinFreq    float64 `json:"min_freq"`    // Lower edge of band 0 in Hz
	MaxFreq    float64 `json:"max_freq"`    // Upper edge of the last band in Hz
	StatWindow int     `json:"stat_window"` // Sliding statistics window in cycles
	Channels   int     `json:"channels"`    // Interleaved channels in the input; only the first is analyzed
	Window     string  `json:"window"`      // Window function name, see windowing.Kinds

	// State machine thresholds on the band 0 discriminator
	DropThreshold  float64 `json:"drop_threshold"`  // Break -> Drop when above
	BreakThreshold float64 `json:"break_threshold"` // Drop -> Break when below

	// SilenceThreshold gates gains to 0 when no spectrum magnitude exceeds
	// it. 0 disables the gate.
	SilenceThreshold float64 `json:"silence_threshold"`

	// Seed for sub-state selection. 0 seeds from the runtime.
	Seed uint64 `json:"seed"`
}

// DefaultConfig returns default analysis configuration
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:        2048,
		Bands:            4,
		MinFreq:          20,
		MaxFreq:          20000,
		StatWindow:       50,
		Channels:         2,
		Window:           string(windowing.Hann),
		DropThreshold:    0.2,
		BreakThreshold:   0.2,
		SilenceThreshold: 0,
		Seed:             0,
	}
}

// Validate checks the configuration independently of the sample rate
func (c *Config) Validate() error {
	switch {
	case c.ChunkSize < 4 || c.ChunkSize%2 != 0:
		return fmt.Errorf("%w: chunk size must be even and >= 4, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.Bands < 1:
		return fmt.Errorf("%w: need at least one band, got %d", ErrInvalidConfig, c.Bands)
	case !(c.MinFreq > 0) || !(c.MaxFreq > c.MinFreq):
		return fmt.Errorf("%w: need 0 < min freq < max freq, got %g..%g", ErrInvalidConfig, c.MinFreq, c.MaxFreq)
	case c.StatWindow < 1:
		return fmt.Errorf("%w: stat window must be >= 1, got %d", ErrInvalidConfig, c.StatWindow)
	case c.Channels < 1:
		return fmt.Errorf("%w: channels must be >= 1, got %d", ErrInvalidConfig, c.Channels)
	case math.IsNaN(c.DropThreshold) || math.IsNaN(c.BreakThreshold):
		return fmt.Errorf("%w: thresholds must be numbers", ErrInvalidConfig)
	case c.SilenceThreshold < 0:
		return fmt.Errorf("%w: silence threshold must be >= 0, got %g", ErrInvalidConfig, c.SilenceThreshold)
	}

	if _, err := windowing.ParseKind(c.Window); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

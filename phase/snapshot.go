package phase

import (
	"slices"
	"sync/atomic"
)

// BandStats are the per-band diagnostics published with every Phase
type BandStats struct {
	Level          float64 `json:"level"`
	Mean           float64 `json:"mean"`     // windowed
	Variance       float64 `json:"variance"` // windowed
	GlobalMean     float64 `json:"global_mean"`
	GlobalVariance float64 `json:"global_variance"`
}

// Phase is one published analysis result. A Phase is never modified after
// it has been published.
type Phase struct {
	Seq           uint64      `json:"seq"`           // cycle number, starting at 1
	Gains         []float64   `json:"gains"`         // per-band z-score against the window, 0 when undefined
	State         State       `json:"state"`         // Break/Drop classification
	Reset         bool        `json:"reset"`         // a reset is pending
	Discriminator float64     `json:"discriminator"` // band 0 window-vs-lifetime score, 0 when undefined
	Silent        bool        `json:"silent"`        // the silence gate zeroed the gains
	Centroid      float64     `json:"centroid"`      // spectral centroid in Hz
	Flux          float64     `json:"flux"`          // positive spectral change since the previous frame
	Bands         []BandStats `json:"bands"`
}

// Clone returns a deep copy of p
func (p *Phase) Clone() Phase {
	c := *p
	c.Gains = slices.Clone(p.Gains)
	c.Bands = slices.Clone(p.Bands)
	return c
}

// Publisher hands the latest Phase from the analysis goroutine to any
// number of readers. Publishing never blocks; readers that fall behind
// only ever see the newest snapshot.
type Publisher struct {
	current atomic.Pointer[Phase]
	reset   atomic.Bool
}

// NewPublisher creates a publisher holding an empty Break(0) phase with
// the given band count
func NewPublisher(bands int) *Publisher {
	p := &Publisher{}
	p.current.Store(&Phase{
		Gains: make([]float64, bands),
		Bands: make([]BandStats, bands),
	})
	return p
}

// Publish replaces the current snapshot. The caller must not modify p
// afterwards.
func (p *Publisher) Publish(phase *Phase) {
	p.current.Store(phase)
}

// Load returns the current snapshot. It is shared and must not be modified.
func (p *Publisher) Load() *Phase {
	return p.current.Load()
}

// Read returns a private copy of the current snapshot with Reset
// reflecting a request that has not been consumed yet
func (p *Publisher) Read() Phase {
	c := p.current.Load().Clone()
	c.Reset = c.Reset || p.reset.Load()
	return c
}

// RequestReset asks the analysis goroutine to re-anchor its lifetime
// statistics on its next cycle. Safe from any goroutine.
func (p *Publisher) RequestReset() {
	p.reset.Store(true)
}

// ResetPending reports whether a reset request has not been consumed yet
func (p *Publisher) ResetPending() bool {
	return p.reset.Load()
}

// takeReset consumes a pending reset request
func (p *Publisher) takeReset() bool {
	return p.reset.Swap(false)
}

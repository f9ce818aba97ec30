package phase

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
	"github.com/RyanBlaney/sonido-pulse/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pulse/algorithms/stats"
	"github.com/RyanBlaney/sonido-pulse/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pulse/logging"
)

// Engine turns a sample stream into published Phase snapshots. Each full
// frame is one cycle:
//
//	window -> FFT magnitudes -> band levels -> lifetime stats -> window stats
//	-> state step -> gains -> pending reset -> publish
//
// Process, ProcessSamples and PushMono must be called from a single
// goroutine. Cycles, Skipped and the Publisher are safe from any goroutine.
type Engine struct {
	config     Config
	sampleRate int

	frames   *common.FrameAccumulator
	fft      *spectral.RealFFT
	layout   *spectral.BandLayout
	centroid *spectral.Centroid
	flux     *spectral.Flux
	stats    []*stats.Running
	machine  *Machine
	pub      *Publisher

	levels  []float64
	cycles  atomic.Uint64
	skipped atomic.Uint64
	warn    sync.Once
	logger  logging.Logger
}

// NewEngine builds the pipeline for the given sample rate and publisher.
// A nil pub gets a fresh Publisher.
func NewEngine(config *Config, sampleRate int, pub *Publisher) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, sampleRate)
	}

	kind, _ := windowing.ParseKind(config.Window)
	win, err := windowing.New(kind, config.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	frames, err := common.NewFrameAccumulator(win.GetCoefficients())
	if err != nil {
		return nil, fmt.Errorf("failed to create frame accumulator: %w", err)
	}
	fft, err := spectral.NewRealFFT(config.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create FFT: %w", err)
	}
	layout, err := spectral.NewBandLayout(config.MinFreq, config.MaxFreq, config.Bands, sampleRate, config.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	running := make([]*stats.Running, config.Bands)
	for b := range running {
		running[b] = stats.NewRunning(config.StatWindow)
	}

	if pub == nil {
		pub = NewPublisher(config.Bands)
	}

	e := &Engine{
		config:     *config,
		sampleRate: sampleRate,
		frames:     frames,
		fft:        fft,
		layout:     layout,
		centroid:   spectral.NewCentroid(config.ChunkSize, sampleRate),
		flux:       spectral.NewFlux(fft.Bins()),
		stats:      running,
		machine:    NewMachine(config.DropThreshold, config.BreakThreshold, config.Seed),
		pub:        pub,
		levels:     make([]float64, config.Bands),
		logger:     logging.WithFields(logging.Fields{"component": "engine"}),
	}

	e.logger.Debug("engine ready", logging.Fields{
		"sample_rate": sampleRate,
		"chunk_size":  config.ChunkSize,
		"window":      config.Window,
		"boundaries":  layout.Boundaries(),
	})
	return e, nil
}

// Process feeds interleaved float32 samples; only the first channel of
// each group of Config.Channels samples is analyzed
func (e *Engine) Process(interleaved []float32) {
	ProcessSamples(e, interleaved)
}

// ProcessSamples feeds interleaved samples of any supported PCM type.
// Channel groups are counted from the start of each buffer.
func ProcessSamples[T common.Sample](e *Engine, interleaved []T) {
	conv := common.Converter[T]()
	step := e.config.Channels
	for i := 0; i < len(interleaved); i += step {
		e.PushMono(conv(interleaved[i]))
	}
}

// PushMono feeds one analysis sample and runs a cycle when a frame fills
func (e *Engine) PushMono(sample float64) {
	if frame, full := e.frames.Push(sample); full {
		e.cycle(frame)
	}
}

func (e *Engine) cycle(frame []float64) {
	mags, err := e.fft.Magnitudes(frame)
	if err != nil {
		e.skip(err)
		return
	}
	e.levels = e.layout.Levels(mags, e.levels)

	bands := len(e.levels)
	next := &Phase{
		Seq:      e.cycles.Add(1),
		Gains:    make([]float64, bands),
		Bands:    make([]BandStats, bands),
		Centroid: e.centroid.Compute(mags),
		Flux:     e.flux.Compute(mags),
	}

	for b, level := range e.levels {
		m := e.stats[b].Update(level)
		next.Bands[b] = BandStats{
			Level:          level,
			Mean:           m.WindowMean,
			Variance:       m.WindowVariance,
			GlobalMean:     m.GlobalMean,
			GlobalVariance: m.GlobalVariance,
		}
	}

	band0 := next.Bands[0]
	val := Discriminator(band0.Mean, band0.GlobalMean, band0.GlobalVariance)
	next.State, _ = e.machine.Step(val)
	next.Discriminator = common.Finite(val, 0)

	next.Silent = e.config.SilenceThreshold > 0 && !spectral.PeakAbove(mags, e.config.SilenceThreshold)
	if !next.Silent {
		for b, bs := range next.Bands {
			next.Gains[b] = common.Finite(common.ZScore(bs.Level, bs.Mean, bs.Variance), 0)
		}
	}

	if e.pub.takeReset() {
		e.recalibrate(next)
	}

	e.pub.Publish(next)
}

// recalibrate anchors every band's lifetime statistics to its window and
// forces Break(0)
func (e *Engine) recalibrate(next *Phase) {
	for b, r := range e.stats {
		r.Recalibrate()
		next.Bands[b].GlobalMean = r.Global.Mean()
		next.Bands[b].GlobalVariance = r.Global.Variance()
	}
	e.machine.Reset()
	next.State = e.machine.State()

	band0 := next.Bands[0]
	next.Discriminator = common.Finite(Discriminator(band0.Mean, band0.GlobalMean, band0.GlobalVariance), 0)
}

func (e *Engine) skip(err error) {
	e.skipped.Add(1)
	e.warn.Do(func() {
		e.logger.Warn("skipping malformed frame", logging.Fields{"error": err.Error()})
	})
}

// Publisher returns the publisher the engine writes to
func (e *Engine) Publisher() *Publisher {
	return e.pub
}

// Cycles returns the number of published cycles
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// Skipped returns the number of frames dropped because the transform failed
func (e *Engine) Skipped() uint64 {
	return e.skipped.Load()
}

// SampleRate returns the analysis input sample rate
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// BandEdges returns the band boundary frequencies in Hz after rounding to
// bins, bands+1 values
func (e *Engine) BandEdges() []float64 {
	edges := make([]float64, e.layout.Bands()+1)
	for i := range edges {
		edges[i] = e.layout.BoundaryFrequency(i)
	}
	return edges
}

// IsInvalidConfig reports whether err comes from configuration validation
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

package phase

import (
	"errors"
	"math"
	"sync"
	"testing"
)

const testRate = 44100

func testConfig() *Config {
	c := DefaultConfig()
	c.MaxFreq = 15000
	c.Seed = 99
	return c
}

func newTestEngine(t *testing.T, c *Config) *Engine {
	t.Helper()
	e, err := NewEngine(c, testRate, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// stereo returns one frame of interleaved samples with left(i) on the
// analyzed channel and right(i) on the discarded one
func stereo(n int, left, right func(i int) float32) []float32 {
	buf := make([]float32, 2*n)
	for i := range n {
		buf[2*i] = left(i)
		buf[2*i+1] = right(i)
	}
	return buf
}

func silence(int) float32 { return 0 }

// bass is a sine on bin 3 (about 64.6 Hz at 44.1 kHz / 2048), inside band 0
func bass(amp float64) func(i int) float32 {
	return func(i int) float32 {
		return float32(amp * math.Sin(2*math.Pi*3*float64(i)/2048))
	}
}

func TestEngineSilence(t *testing.T) {
	c := testConfig()
	e := newTestEngine(t, c)
	frame := stereo(c.ChunkSize, silence, silence)

	for cycle := 1; cycle <= 200; cycle++ {
		e.Process(frame)

		p := e.Publisher().Load()
		if p.Seq != uint64(cycle) {
			t.Fatalf("cycle %d: Seq = %d", cycle, p.Seq)
		}
		if p.State != (State{Break, 0}) {
			t.Fatalf("cycle %d: state %v, want Break(0)", cycle, p.State)
		}
		if p.Discriminator != 0 {
			t.Fatalf("cycle %d: discriminator %v, want 0", cycle, p.Discriminator)
		}
		for b, g := range p.Gains {
			if g != 0 {
				t.Fatalf("cycle %d: gain[%d] = %v, want 0", cycle, b, g)
			}
		}
	}
	if e.Cycles() != 200 || e.Skipped() != 0 {
		t.Errorf("Cycles/Skipped = %d/%d, want 200/0", e.Cycles(), e.Skipped())
	}
}

func TestEngineKeepsFirstChannel(t *testing.T) {
	c := testConfig()
	e := newTestEngine(t, c)
	// loud signal only on the discarded channel
	frame := stereo(c.ChunkSize, silence, bass(0.9))

	for range 5 {
		e.Process(frame)
	}

	for b, bs := range e.Publisher().Load().Bands {
		if bs.Level != 0 {
			t.Errorf("band %d level = %v, want 0 with a silent first channel", b, bs.Level)
		}
	}
}

func TestEngineEntersDropOnBassSwell(t *testing.T) {
	c := testConfig()
	e := newTestEngine(t, c)

	quiet := stereo(c.ChunkSize, silence, silence)
	for range 100 {
		e.Process(quiet)
	}

	loud := stereo(c.ChunkSize, bass(0.8), silence)
	var entered bool
	for range 10 {
		e.Process(loud)
		if e.Publisher().Load().State.Kind == Drop {
			entered = true
			break
		}
	}
	if !entered {
		t.Fatalf("no Drop after a bass swell, last phase %+v", e.Publisher().Load())
	}

	p := e.Publisher().Load()
	if p.Bands[0].Level <= 0 {
		t.Errorf("band 0 level = %v, want > 0", p.Bands[0].Level)
	}
	if !(p.Gains[0] > 0) {
		t.Errorf("band 0 gain = %v, want > 0 on the swell", p.Gains[0])
	}
	if !(p.Discriminator > c.DropThreshold) {
		t.Errorf("discriminator %v not above drop threshold", p.Discriminator)
	}
	if p.Centroid < 50 || p.Centroid > 80 {
		t.Errorf("centroid = %v Hz, want near 64.6 Hz", p.Centroid)
	}
}

func TestEngineFluxOnOnset(t *testing.T) {
	c := testConfig()
	e := newTestEngine(t, c)

	for range 3 {
		e.Process(stereo(c.ChunkSize, silence, silence))
	}
	if f := e.Publisher().Load().Flux; f != 0 {
		t.Fatalf("flux on silence = %v, want 0", f)
	}

	e.Process(stereo(c.ChunkSize, bass(0.5), silence))
	if f := e.Publisher().Load().Flux; !(f > 0) {
		t.Errorf("flux on onset = %v, want > 0", f)
	}
}

func TestEngineReset(t *testing.T) {
	c := testConfig()
	e := newTestEngine(t, c)
	pub := e.Publisher()

	for i := range 120 {
		amp := 0.1
		if i >= 100 {
			amp = 0.8
		}
		e.Process(stereo(c.ChunkSize, bass(amp), silence))
	}

	pub.RequestReset()
	if !pub.Read().Reset {
		t.Fatal("Read().Reset = false with a pending request")
	}

	e.Process(stereo(c.ChunkSize, bass(0.8), silence))

	p := pub.Read()
	if p.Reset || pub.ResetPending() {
		t.Error("reset request not consumed")
	}
	if p.State != (State{Break, 0}) {
		t.Errorf("state after reset = %v, want Break(0)", p.State)
	}
	for b, bs := range p.Bands {
		if bs.GlobalMean != bs.Mean || bs.GlobalVariance != bs.Variance {
			t.Errorf("band %d global (%v, %v) != window (%v, %v) after reset",
				b, bs.GlobalMean, bs.GlobalVariance, bs.Mean, bs.Variance)
		}
		r := e.stats[b]
		if r.Global.Mean() != r.Window.Mean() || r.Global.Variance() != r.Window.Variance() {
			t.Errorf("band %d internal stats not anchored", b)
		}
	}
	if p.Discriminator != 0 {
		t.Errorf("discriminator after reset = %v, want 0", p.Discriminator)
	}
}

func TestEngineSilenceGate(t *testing.T) {
	c := testConfig()
	c.SilenceThreshold = 5
	e := newTestEngine(t, c)

	for i := range 60 {
		// faint noise-like ramp stays below the gate
		e.Process(stereo(c.ChunkSize, func(j int) float32 {
			return float32(1e-5 * float64((i*j)%7))
		}, silence))
	}

	p := e.Publisher().Load()
	if !p.Silent {
		t.Fatal("Silent = false for a signal below the gate")
	}
	for b, g := range p.Gains {
		if g != 0 {
			t.Errorf("gain[%d] = %v behind the silence gate", b, g)
		}
	}

	e.Process(stereo(c.ChunkSize, bass(0.8), silence))
	if e.Publisher().Load().Silent {
		t.Error("Silent = true for a loud frame")
	}
}

func TestProcessSamplesInt16(t *testing.T) {
	c := testConfig()
	c.Channels = 1
	a := newTestEngine(t, c)
	b := newTestEngine(t, c)

	ints := make([]int16, c.ChunkSize)
	floats := make([]float32, c.ChunkSize)
	for i := range ints {
		ints[i] = int16(16384 * math.Sin(2*math.Pi*5*float64(i)/2048))
		floats[i] = float32(ints[i]) / 32768
	}

	ProcessSamples(a, ints)
	b.Process(floats)

	pa, pb := a.Publisher().Load(), b.Publisher().Load()
	for i := range pa.Bands {
		if math.Abs(pa.Bands[i].Level-pb.Bands[i].Level) > 1e-6 {
			t.Errorf("band %d level int16 %v != float32 %v", i, pa.Bands[i].Level, pb.Bands[i].Level)
		}
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		rate   int
	}{
		{"odd chunk", func(c *Config) { c.ChunkSize = 2047 }, testRate},
		{"no bands", func(c *Config) { c.Bands = 0 }, testRate},
		{"inverted range", func(c *Config) { c.MinFreq, c.MaxFreq = 500, 100 }, testRate},
		{"zero window", func(c *Config) { c.StatWindow = 0 }, testRate},
		{"zero channels", func(c *Config) { c.Channels = 0 }, testRate},
		{"unknown window", func(c *Config) { c.Window = "kaiser" }, testRate},
		{"negative gate", func(c *Config) { c.SilenceThreshold = -1 }, testRate},
		{"max above nyquist", func(c *Config) { c.MaxFreq = 20000 }, 16000},
		{"zero rate", func(c *Config) {}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			_, err := NewEngine(c, tt.rate, nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewEngine error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestPublisherConsistentSnapshots(t *testing.T) {
	const bands = 8
	pub := NewPublisher(bands)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := pub.Read()
				if p.Seq < last {
					t.Errorf("Seq went backwards: %d after %d", p.Seq, last)
					return
				}
				last = p.Seq
				for _, g := range p.Gains {
					if g != float64(p.Seq) {
						t.Errorf("torn snapshot: seq %d gains %v", p.Seq, p.Gains)
						return
					}
				}
			}
		}()
	}

	for seq := uint64(1); seq <= 5000; seq++ {
		gains := make([]float64, bands)
		for i := range gains {
			gains[i] = float64(seq)
		}
		pub.Publish(&Phase{Seq: seq, Gains: gains, Bands: make([]BandStats, bands)})
	}
	close(stop)
	wg.Wait()
}

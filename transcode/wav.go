package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mjibson/go-dsp/wav"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
	"github.com/RyanBlaney/sonido-pulse/logging"
)

// WAVSource streams a PCM 8/16-bit or IEEE float WAV file
type WAVSource struct {
	name         string
	closer       io.Closer
	wav          *wav.Wav
	bufferFrames int
	realtime     bool
	logger       logging.Logger
}

// OpenWAV opens a WAV file for streaming. With realtime set, buffers are
// paced at the file's sample rate.
func OpenWAV(path string, bufferFrames int, realtime bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	s, err := NewWAVSource(f, path, bufferFrames, realtime)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewWAVSource reads the WAV header from r
func NewWAVSource(r io.Reader, name string, bufferFrames int, realtime bool) (*WAVSource, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav header: %w", err)
	}
	if w.NumChannels == 0 || w.SampleRate == 0 {
		return nil, fmt.Errorf("wav header reports %d channels at %d Hz", w.NumChannels, w.SampleRate)
	}
	if bufferFrames <= 0 {
		bufferFrames = 1024
	}

	s := &WAVSource{
		name:         name,
		wav:          w,
		bufferFrames: bufferFrames,
		realtime:     realtime,
		logger: logging.WithFields(logging.Fields{
			"component": "wav_source",
			"file":      name,
		}),
	}

	s.logger.Debug("WAV header read", logging.Fields{
		"sample_rate":     w.SampleRate,
		"channels":        w.NumChannels,
		"bits_per_sample": w.BitsPerSample,
		"duration":        w.Duration.Seconds(),
	})
	return s, nil
}

// SampleRate returns the file sample rate
func (s *WAVSource) SampleRate() int {
	return int(s.wav.SampleRate)
}

// Channels returns the file channel count
func (s *WAVSource) Channels() int {
	return int(s.wav.NumChannels)
}

// Duration returns the duration reported by the header
func (s *WAVSource) Duration() time.Duration {
	return s.wav.Duration
}

// Stream delivers the whole file to fn, then closes it
func (s *WAVSource) Stream(ctx context.Context, fn func(interleaved []float32)) error {
	defer s.Close()

	chunk := s.bufferFrames * s.Channels()
	remaining := s.wav.Samples - s.wav.Samples%s.Channels()
	var buf []float32

	var ticker *time.Ticker
	if s.realtime {
		period := time.Duration(s.bufferFrames) * time.Second / time.Duration(s.SampleRate())
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(chunk, remaining)
		data, err := s.wav.ReadSamples(n)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// header overstated the data chunk
				s.logger.Warn("WAV data ended early", logging.Fields{"missing_samples": remaining})
				return nil
			}
			return fmt.Errorf("failed to read wav samples: %w", err)
		}
		remaining -= n

		switch d := data.(type) {
		case []uint8:
			buf = common.ToFloat32(d, buf)
		case []int16:
			buf = common.ToFloat32(d, buf)
		case []float32:
			buf = d
		default:
			return fmt.Errorf("unsupported wav sample type %T", d)
		}
		fn(buf)

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
	return nil
}

// Close releases the underlying file if the source opened it
func (s *WAVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-pulse/logging"
)

// FFmpegConfig holds capture configuration for FFmpegSource
type FFmpegConfig struct {
	Input        string        `json:"input"`         // Device name, file path or URL
	InputFormat  string        `json:"input_format"`  // ffmpeg demuxer, e.g. "pulse", "alsa", "avfoundation"; empty to autodetect
	StreamType   string        `json:"stream_type"`   // "icecast", "hls" or empty
	SampleRate   int           `json:"sample_rate"`   // Output rate; 0 to probe the input
	Channels     int           `json:"channels"`      // Output channels; 0 to probe the input
	BufferFrames int           `json:"buffer_frames"` // Frames per callback
	Realtime     bool          `json:"realtime"`      // Pace file input at its native rate (-re)
	FFmpegPath   string        `json:"ffmpeg_path"`   // Path to ffmpeg binary
	FFprobePath  string        `json:"ffprobe_path"`  // Path to ffprobe binary
	ProbeTimeout time.Duration `json:"probe_timeout"` // Timeout for ffprobe
}

// DefaultFFmpegConfig returns default capture configuration
func DefaultFFmpegConfig() *FFmpegConfig {
	return &FFmpegConfig{
		SampleRate:   44100,
		Channels:     2,
		BufferFrames: 1024,
		FFmpegPath:   "ffmpeg",  // Assume in PATH
		FFprobePath:  "ffprobe", // Assume in PATH
		ProbeTimeout: 15 * time.Second,
	}
}

// Fallbacks when probing fails
const (
	fallbackSampleRate = 44100
	fallbackChannels   = 2
)

// FFmpegSource captures audio by running ffmpeg and reading raw f32le from
// its stdout
type FFmpegSource struct {
	config *FFmpegConfig
	logger logging.Logger
}

// NewFFmpegSource creates a source. Call Resolve before SampleRate or
// Channels when either is left at 0.
func NewFFmpegSource(config *FFmpegConfig) (*FFmpegSource, error) {
	if config == nil {
		config = DefaultFFmpegConfig()
	}
	if config.Input == "" {
		return nil, fmt.Errorf("ffmpeg source needs an input")
	}
	if config.SampleRate < 0 || config.Channels < 0 {
		return nil, fmt.Errorf("invalid output format: %d Hz, %d channels", config.SampleRate, config.Channels)
	}

	c := *config
	if c.BufferFrames <= 0 {
		c.BufferFrames = 1024
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}

	return &FFmpegSource{
		config: &c,
		logger: logging.WithFields(logging.Fields{
			"component": "ffmpeg_source",
			"input":     c.Input,
		}),
	}, nil
}

// SampleRate returns the output sample rate
func (s *FFmpegSource) SampleRate() int {
	return s.config.SampleRate
}

// Channels returns the output channel count
func (s *FFmpegSource) Channels() int {
	return s.config.Channels
}

// Resolve fills in a zero sample rate or channel count from ffprobe,
// falling back to 44100 Hz stereo when the input cannot be probed
func (s *FFmpegSource) Resolve(ctx context.Context) {
	if s.config.SampleRate > 0 && s.config.Channels > 0 {
		return
	}

	metadata, err := s.Probe(ctx)
	if err != nil {
		s.logger.Warn("Probe failed, using fallback format", logging.Fields{
			"error":       err.Error(),
			"sample_rate": fallbackSampleRate,
			"channels":    fallbackChannels,
		})
		metadata = &AudioMetadata{SampleRate: fallbackSampleRate, Channels: fallbackChannels}
	}

	if s.config.SampleRate == 0 {
		s.config.SampleRate = metadata.SampleRate
	}
	if s.config.Channels == 0 {
		s.config.Channels = metadata.Channels
	}
}

// Probe runs ffprobe on the input
func (s *FFmpegSource) Probe(ctx context.Context) (*AudioMetadata, error) {
	probeCtx := ctx
	if s.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, s.config.ProbeTimeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
	}
	if s.config.InputFormat != "" {
		args = append(args, "-f", s.config.InputFormat)
	}
	args = append(args, s.config.Input)

	s.logger.Debug("Running FFprobe", logging.Fields{
		"command": fmt.Sprintf("%s %s", s.config.FFprobePath, strings.Join(args, " ")),
	})

	output, err := exec.CommandContext(probeCtx, s.config.FFprobePath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	metadata, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("FFprobe completed", logging.Fields{
		"sample_rate": metadata.SampleRate,
		"channels":    metadata.Channels,
		"codec":       metadata.Codec,
	})
	return metadata, nil
}

// Args returns the ffmpeg command line, without the binary
func (s *FFmpegSource) Args() []string {
	args := []string{"-v", "error", "-nostdin"}

	switch s.config.StreamType {
	case "icecast":
		args = append(args,
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "1",
			"-fflags", "+genpts+igndts+flush_packets",
			"-rw_timeout", "5000000",
		)
	case "hls":
		args = append(args,
			"-fflags", "+genpts+igndts+flush_packets",
			"-live_start_index", "-1",
			"-rw_timeout", "30000000",
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "2",
		)
	}

	if s.config.Realtime {
		args = append(args, "-re")
	}
	if s.config.InputFormat != "" {
		args = append(args, "-f", s.config.InputFormat)
	}
	args = append(args, "-i", s.config.Input)

	args = append(args,
		"-map", "0:a:0?",
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
	)
	if s.config.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(s.config.Channels))
	}
	if s.config.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(s.config.SampleRate))
	}

	return append(args, "pipe:1")
}

// Stream runs ffmpeg and calls fn with every buffer of BufferFrames
// frames until the input ends or ctx is canceled. A trailing partial
// buffer is delivered too.
func (s *FFmpegSource) Stream(ctx context.Context, fn func(interleaved []float32)) error {
	if s.config.SampleRate <= 0 || s.config.Channels <= 0 {
		s.Resolve(ctx)
	}

	args := s.Args()
	cmd := exec.CommandContext(ctx, s.config.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}

	s.logger.Debug("Running FFmpeg", logging.Fields{
		"command": fmt.Sprintf("%s %s", s.config.FFmpegPath, strings.Join(args, " ")),
	})

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	frameBytes := 4 * s.config.Channels
	raw := make([]byte, s.config.BufferFrames*frameBytes)
	samples := make([]float32, 0, s.config.BufferFrames*s.config.Channels)
	var frames int64

	readErr := func() error {
		for {
			n, err := io.ReadFull(stdout, raw)
			n -= n % frameBytes
			if n > 0 {
				samples = DecodeFloat32LE(raw[:n], samples)
				frames += int64(n / frameBytes)
				fn(samples)
			}
			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return nil
			default:
				return err
			}
		}
	}()

	waitErr := cmd.Wait()

	s.logger.Debug("FFmpeg stream ended", logging.Fields{
		"frames":   frames,
		"duration": float64(frames) / float64(s.config.SampleRate),
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return fmt.Errorf("failed to read ffmpeg output: %w", readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// DecodeFloat32LE converts little-endian IEEE float32 bytes into dst
// (grown if needed). A trailing partial sample is ignored.
func DecodeFloat32LE(raw []byte, dst []float32) []float32 {
	n := len(raw) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return dst
}

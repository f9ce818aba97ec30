package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
	"github.com/RyanBlaney/sonido-pulse/algorithms/stats"
	"github.com/RyanBlaney/sonido-pulse/internal/cli"
	"github.com/RyanBlaney/sonido-pulse/internal/ui"
	"github.com/RyanBlaney/sonido-pulse/logging"
	"github.com/RyanBlaney/sonido-pulse/phase"
	"github.com/RyanBlaney/sonido-pulse/transcode"
)

var (
	version = "0.1.0"
)

const (
	// watchInterval is how often headless mode polls for snapshots
	watchInterval = 10 * time.Millisecond

	// historySize bounds the discriminator history kept for the exit summary
	historySize = 1 << 16

	defaultUILog = "sonido-pulse.log"
)

// CLI defines the command-line interface
type CLI struct {
	Version bool            `short:"v" help:"Show version information."`
	Config  kong.ConfigFlag `short:"c" help:"JSON config file with flag values." placeholder:"path"`

	Input      string `short:"i" group:"Input" help:"ffmpeg input: capture device, file or URL." placeholder:"input"`
	Format     string `short:"f" group:"Input" help:"ffmpeg input format, e.g. pulse, alsa, avfoundation, dshow." placeholder:"format"`
	StreamType string `group:"Input" enum:",icecast,hls" default:"" help:"Reconnect behavior for network inputs (icecast, hls)."`
	WAV        string `name:"wav" group:"Input" type:"existingfile" help:"Read a WAV file instead of running ffmpeg." placeholder:"file"`
	SampleRate int    `group:"Input" default:"44100" help:"Capture sample rate in Hz, 0 to probe the input."`
	Channels   int    `group:"Input" default:"2" help:"Capture channels, 0 to probe the input. Only the first is analyzed."`
	Realtime   bool   `group:"Input" help:"Pace file input at its native rate."`

	ChunkSize        int     `group:"Analysis" default:"2048" help:"Analysis frame length in samples."`
	Bands            int     `group:"Analysis" default:"4" help:"Number of logarithmic bands."`
	MinFreq          float64 `group:"Analysis" default:"20" help:"Lower edge of the lowest band in Hz."`
	MaxFreq          float64 `group:"Analysis" default:"20000" help:"Upper edge of the highest band in Hz."`
	Window           string  `group:"Analysis" default:"hann" enum:"hann,hamming,blackman,bartlett,flattop,rectangular" help:"Window function."`
	StatWindow       int     `group:"Analysis" default:"50" help:"Sliding statistics window in frames."`
	DropThreshold    float64 `group:"Analysis" default:"0.2" help:"Break to Drop when the discriminator rises above this."`
	BreakThreshold   float64 `group:"Analysis" default:"0.2" help:"Drop to Break when the discriminator falls below this."`
	SilenceThreshold float64 `group:"Analysis" default:"0" help:"Zero the gains when no bin magnitude exceeds this, 0 disables."`
	Seed             uint64  `group:"Analysis" default:"0" help:"Sub-state random seed, 0 for a random seed."`

	Headless bool   `group:"Output" help:"Log transitions instead of showing the live meter. SIGHUP recalibrates."`
	Trace    string `group:"Output" type:"path" help:"Write a tab-separated trace of every snapshot." placeholder:"file"`
	LogLevel string `group:"Output" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	LogFile  string `group:"Output" type:"path" help:"Log file. The live meter logs to ./sonido-pulse.log by default." placeholder:"file"`
}

var keyBindings = []cli.KeyBinding{
	{Key: "r", Help: "Recalibrate: re-anchor the baseline to the current level"},
	{Key: "q", Help: "Quit"},
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("sonido-pulse"),
		kong.Description("Real-time audio band gains and Break/Drop phase detection"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.config/sonido-pulse/config.json"),
		kong.Groups{"Input": "Input", "Analysis": "Analysis", "Output": "Output"},
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter("Real-time audio band gains and Break/Drop phase detection", keyBindings)),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if cliArgs.Input == "" && cliArgs.WAV == "" {
		cli.PrintError("No input specified, use --input or --wav")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	if err := run(cliArgs); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

func run(c *CLI) error {
	closeLog, err := setupLogging(c)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, name, err := openSource(ctx, c)
	if err != nil {
		return err
	}

	config := analysisConfig(c)
	config.Channels = source.Channels()

	pub := phase.NewPublisher(config.Bands)
	engine, err := phase.NewEngine(config, source.SampleRate(), pub)
	if err != nil {
		return err
	}

	logging.Info("Analysis started", logging.Fields{
		"source":      name,
		"sample_rate": source.SampleRate(),
		"channels":    source.Channels(),
		"bands":       config.Bands,
		"band_edges":  engine.BandEdges(),
	})

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	done := make(chan error, 1)
	go func() {
		done <- source.Stream(streamCtx, engine.Process)
	}()

	if c.Headless {
		err = runHeadless(streamCtx, c, engine, done)
	} else {
		err = runMeter(c, engine, name, done)
	}
	cancelStream()

	logging.Info("Analysis stopped", logging.Fields{
		"cycles":  engine.Cycles(),
		"skipped": engine.Skipped(),
	})
	return err
}

// setupLogging installs the global logger. The live meter owns the
// terminal, so its logs always go to a file.
func setupLogging(c *CLI) (func(), error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	path := c.LogFile
	if path == "" && !c.Headless {
		path = defaultUILog
	}

	var logger *logging.DefaultLogger
	closeLog := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger = logging.NewDefaultLoggerTo(f)
		closeLog = func() { f.Close() }
	} else {
		logger = logging.NewDefaultLogger()
	}

	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return closeLog, nil
}

func openSource(ctx context.Context, c *CLI) (transcode.Source, string, error) {
	if c.WAV != "" {
		src, err := transcode.OpenWAV(c.WAV, 1024, c.Realtime)
		if err != nil {
			return nil, "", err
		}
		return src, c.WAV, nil
	}

	config := transcode.DefaultFFmpegConfig()
	config.Input = c.Input
	config.InputFormat = c.Format
	config.StreamType = c.StreamType
	config.SampleRate = c.SampleRate
	config.Channels = c.Channels
	config.Realtime = c.Realtime

	src, err := transcode.NewFFmpegSource(config)
	if err != nil {
		return nil, "", err
	}
	src.Resolve(ctx)

	name := c.Input
	if c.Format != "" {
		name = c.Format + ":" + c.Input
	}
	return src, name, nil
}

func analysisConfig(c *CLI) *phase.Config {
	config := phase.DefaultConfig()
	config.ChunkSize = c.ChunkSize
	config.Bands = c.Bands
	config.MinFreq = c.MinFreq
	config.MaxFreq = c.MaxFreq
	config.Window = c.Window
	config.StatWindow = c.StatWindow
	config.DropThreshold = c.DropThreshold
	config.BreakThreshold = c.BreakThreshold
	config.SilenceThreshold = c.SilenceThreshold
	config.Seed = c.Seed
	return config
}

// runMeter shows the live meter until the user quits or the source ends
func runMeter(c *CLI, engine *phase.Engine, name string, done <-chan error) error {
	trace, closeTrace, err := openTrace(c.Trace, engine.Config().Bands)
	if err != nil {
		return err
	}
	defer closeTrace()

	p := tea.NewProgram(ui.NewModel(engine.Publisher(), name, engine.BandEdges()), tea.WithAltScreen())

	go func() {
		p.Send(ui.StreamDoneMsg{Err: <-done})
	}()

	if trace != nil {
		watchCtx, stopWatch := context.WithCancel(context.Background())
		watchDone := make(chan struct{})
		go func() {
			defer close(watchDone)
			_ = phase.Watch(watchCtx, engine.Publisher(), watchInterval, func(ph *phase.Phase) {
				if err := trace.Write(time.Now(), ph); err != nil {
					logging.Error(err, "Trace write failed")
				}
			})
		}()
		defer func() {
			stopWatch()
			<-watchDone
		}()
	}

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}

	if m, ok := final.(ui.Model); ok && m.Err != nil && !errors.Is(m.Err, context.Canceled) {
		return m.Err
	}
	return nil
}

// runHeadless logs transitions, recalibrates on SIGHUP and prints a
// discriminator summary when the source ends or the process is interrupted
func runHeadless(ctx context.Context, c *CLI, engine *phase.Engine, done <-chan error) error {
	trace, closeTrace, err := openTrace(c.Trace, engine.Config().Bands)
	if err != nil {
		return err
	}
	defer closeTrace()

	logger := logging.WithFields(logging.Fields{"component": "watcher"})
	pub := engine.Publisher()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	var streamErr error
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-hup:
				logger.Info("Recalibration requested")
				pub.RequestReset()
			case streamErr = <-done:
				stopWatch()
				return
			}
		}
	}()

	var tracker phase.TransitionTracker
	history := common.NewRing(historySize)
	_ = phase.Watch(watchCtx, pub, watchInterval, func(p *phase.Phase) {
		history.Push(p.Discriminator)
		if from, changed := tracker.Observe(p); changed {
			logger.Info("Phase transition", logging.Fields{
				"from":          from.String(),
				"to":            p.State.String(),
				"seq":           p.Seq,
				"discriminator": p.Discriminator,
			})
		}
		if trace != nil {
			if err := trace.Write(time.Now(), p); err != nil {
				logger.Error(err, "Trace write failed")
			}
		}
	})

	<-finished

	printSummary(os.Stdout, engine, history)

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return streamErr
	}
	return nil
}

func printSummary(w io.Writer, engine *phase.Engine, history *common.Ring) {
	fmt.Fprintln(w, cli.TitleStyle.Render("Session summary"))
	cli.PrintKeyValue(w, "Cycles:", engine.Cycles())
	cli.PrintKeyValue(w, "Final state:", engine.Publisher().Load().State)

	summary, err := stats.Summarize(history.Values(nil))
	if err != nil {
		return
	}
	cli.PrintKeyValue(w, "Disc. mean:", fmt.Sprintf("%+.3f", summary.Mean))
	cli.PrintKeyValue(w, "Disc. std dev:", fmt.Sprintf("%.3f", summary.StdDev))
	cli.PrintKeyValue(w, "Disc. range:", fmt.Sprintf("%+.3f .. %+.3f", summary.Min, summary.Max))
	cli.PrintKeyValue(w, "Disc. IQR:", fmt.Sprintf("%+.3f .. %+.3f", summary.Quartiles.Q1, summary.Quartiles.Q3))
}

// openTrace creates the trace writer when path is set. The returned close
// function flushes and closes the file.
func openTrace(path string, bands int) (*phase.TraceWriter, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	tw, err := phase.NewTraceWriter(f, bands)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return tw, func() {
		if err := tw.Flush(); err != nil {
			logging.Error(err, "Trace flush failed")
		}
		f.Close()
	}, nil
}

// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pitchscope/internal/config"
	"pitchscope/pkg/build"
)

// Commands selected on the command line.
const (
	CommandListen  = "listen"  // Run the detector on the configured source.
	CommandList    = "list"    // Print the host devices and exit.
	CommandDevices = "devices" // Pick a device interactively, then listen.
	CommandAnalyze = "analyze" // Run the detector over a WAV file without pacing.
)

// Invocation is the parsed command line: what to do and with which
// configuration.
type Invocation struct {
	Command string
	Config  *config.Config
	Verbose bool
}

// flagValues collects flag values before they are laid over the file
// configuration. Only flags the user actually set are applied.
type flagValues struct {
	configPath string
	verbose    bool

	device     int
	sampleRate float64
	blockSize  int
	lowLatency bool

	threshold int
	ratio     float64
	backend   string
	window    string
	overflow  string
	tick      time.Duration

	minHz, maxHz float64
	tui          bool

	record    bool
	outputDir string

	ws        bool
	wsAddress string
	udp       bool
	udpTarget string

	source  string
	wavLoop bool
	toneHz  float64
	note    string
}

// ParseArgs parses os.Args.
func ParseArgs() (*Invocation, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildFlags()
	inv := &Invocation{Command: CommandListen}
	fv := &flagValues{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandListen
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Every subcommand resolves the configuration the same way.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(fv.configPath)
		if err != nil {
			return err
		}
		fv.apply(cmd.Flags(), cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
		inv.Config = cfg
		inv.Verbose = fv.verbose
		return nil
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			inv.Command = CommandList
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Choose an input device and sample rate, then start listening",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			inv.Command = CommandDevices
			inv.Config.Source.Kind = config.SourceDevice
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Print the notes detected in a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandAnalyze
			cfg := inv.Config
			cfg.Source.Kind = config.SourceWAV
			cfg.Source.WAVPath = args[0]
			cfg.Source.WAVLoop = false
			cfg.Loop.TickInterval = 0
			cfg.Display.TUI = false
			return nil
		},
	})

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&fv.configPath, "config", "",
		fmt.Sprintf("Path to a YAML configuration file (default %s if present)", config.DefaultPath))
	pf.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Device Configuration
	pf.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.blockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per analysis block, a power of two (sets frequency resolution)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Analysis
	pf.IntVarP(&fv.threshold, "threshold", "t", config.DefaultAmplitudeThreshold,
		"Peak sample amplitude (0-32768) below which a block counts as silence")
	pf.Float64Var(&fv.ratio, "threshold-ratio", 0,
		"Silence threshold as a fraction of full scale (0-1), overrides --threshold")
	pf.StringVar(&fv.backend, "fft", config.DefaultFFTBackend,
		"FFT backend: gonum or godsp")
	pf.StringVar(&fv.window, "window", config.DefaultWindow,
		"Analysis window: rectangular, hann, hamming, blackman, ...")
	pf.StringVar(&fv.overflow, "overflow", config.DefaultOverflowPolicy,
		"What to analyze after an input overflow: repeat, zero or skip")
	pf.DurationVar(&fv.tick, "tick", config.DefaultTickInterval,
		"Interval between analysis cycles, 0 to run unpaced")

	// Display
	pf.Float64Var(&fv.minHz, "min-hz", config.DefaultMinHz, "Lowest plotted frequency")
	pf.Float64Var(&fv.maxHz, "max-hz", config.DefaultMaxHz, "Highest plotted frequency")
	pf.BoolVar(&fv.tui, "tui", false, "Show the live spectrum in the terminal")

	// Recording Configuration
	pf.BoolVarP(&fv.record, "record", "r", false,
		"Record the analyzed input to a WAV file")
	pf.StringVarP(&fv.outputDir, "output-dir", "o", config.DefaultRecordingDir,
		"Directory for recordings, named pitchscope-YYYYMMDD-HHMMSS.wav")

	// Transport
	pf.BoolVar(&fv.ws, "ws", false, "Serve detections to WebSocket clients")
	pf.StringVar(&fv.wsAddress, "ws-address", config.DefaultWebSocketAddress, "WebSocket listen address")
	pf.BoolVar(&fv.udp, "udp", false, "Publish detections as UDP packets")
	pf.StringVar(&fv.udpTarget, "udp-target", config.DefaultUDPTargetAddress, "UDP target address")

	// Source
	pf.StringVar(&fv.source, "source", config.DefaultSourceKind,
		"Where blocks come from: device, wav or tone")
	pf.BoolVar(&fv.wavLoop, "loop", false, "Replay the wav source from the start when it ends")
	pf.Float64Var(&fv.toneHz, "tone-hz", config.DefaultToneHz, "Frequency of the tone source")
	pf.StringVar(&fv.note, "tone-note", "", "Piano key for the tone source, e.g. A4 (overrides --tone-hz)")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	// --help and --version return without running a command.
	if inv.Config == nil {
		return nil, nil
	}
	return inv, nil
}

// apply lays every changed flag over cfg.
func (fv *flagValues) apply(flags *pflag.FlagSet, cfg *config.Config) {
	set := map[string]func(){
		"verbose":         func() { cfg.Debug = fv.verbose },
		"device":          func() { cfg.Audio.InputDevice = fv.device },
		"sample-rate":     func() { cfg.Audio.SampleRate = fv.sampleRate },
		"block-size":      func() { cfg.Audio.BlockSize = fv.blockSize },
		"low-latency":     func() { cfg.Audio.LowLatency = fv.lowLatency },
		"threshold":       func() { cfg.Analysis.AmplitudeThreshold = fv.threshold },
		"threshold-ratio": func() { cfg.Analysis.ThresholdRatio = fv.ratio },
		"fft":             func() { cfg.Analysis.FFTBackend = fv.backend },
		"window":          func() { cfg.Analysis.Window = fv.window },
		"overflow":        func() { cfg.Analysis.OverflowPolicy = fv.overflow },
		"tick":            func() { cfg.Loop.TickInterval = fv.tick },
		"min-hz":          func() { cfg.Display.MinHz = fv.minHz },
		"max-hz":          func() { cfg.Display.MaxHz = fv.maxHz },
		"tui":             func() { cfg.Display.TUI = fv.tui },
		"record":          func() { cfg.Recording.Enabled = fv.record },
		"output-dir":      func() { cfg.Recording.OutputDir = fv.outputDir },
		"ws":              func() { cfg.Transport.WebSocketEnabled = fv.ws },
		"ws-address":      func() { cfg.Transport.WebSocketAddress = fv.wsAddress },
		"udp":             func() { cfg.Transport.UDPEnabled = fv.udp },
		"udp-target":      func() { cfg.Transport.UDPTargetAddress = fv.udpTarget },
		"source":          func() { cfg.Source.Kind = fv.source },
		"loop":            func() { cfg.Source.WAVLoop = fv.wavLoop },
		"tone-hz":         func() { cfg.Source.ToneHz = fv.toneHz },
		"tone-note":       func() { cfg.Source.ToneNote = fv.note },
	}
	flags.Visit(func(f *pflag.Flag) {
		if fn, ok := set[f.Name]; ok {
			fn()
		}
	})
}

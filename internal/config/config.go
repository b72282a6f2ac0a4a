// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"time"

	"pitchscope/internal/notes"
)

// Defaults and limits for the detector configuration.
const (
	// Audio
	DefaultDeviceID   = MinDeviceID // System default input device
	DefaultSampleRate = 44100       // CD-quality audio
	DefaultBlockSize  = 1024        // ~23ms at 44.1kHz, ~43Hz bins
	DefaultChannels   = 1           // Mono only
	DefaultLowLatency = false       // Standard latency mode

	// Analysis
	DefaultAmplitudeThreshold = 1000 // Raw 16-bit peak that opens the gate
	DefaultFFTBackend         = "gonum"
	DefaultWindow             = "rectangular"
	DefaultOverflowPolicy     = OverflowRepeat

	// Loop
	DefaultTickInterval = 50 * time.Millisecond

	// Display
	DefaultMinHz = 0.0
	DefaultMaxHz = 4000.0

	// Recording
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	// Transport
	DefaultWebSocketAddress = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Source
	DefaultSourceKind    = SourceDevice
	DefaultToneHz        = 440.0
	DefaultToneAmplitude = 0.5

	DefaultLogLevel = "info"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinBlockSize  = 64
	MaxBlockSize  = 65536
)

// Overflow policies: what the loop analyzes in place of a block lost to an
// input overflow.
const (
	OverflowRepeat = "repeat" // Re-analyze the last good block.
	OverflowZero   = "zero"   // Analyze an all-zero block (reports silence).
	OverflowSkip   = "skip"   // Emit nothing for the cycle.
)

// Frame source kinds.
const (
	SourceDevice = "device"
	SourceWAV    = "wav"
	SourceTone   = "tone"
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable verbose logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Loop      LoopConfig      `yaml:"loop"`
	Display   DisplayConfig   `yaml:"display"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Source    SourceConfig    `yaml:"source"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice int     `yaml:"input_device"` // PortAudio device index (-1 for default).
	SampleRate  float64 `yaml:"sample_rate"`  // Hz.
	BlockSize   int     `yaml:"block_size"`   // Samples per block, power of two.
	Channels    int     `yaml:"channels"`     // Must be 1.
	LowLatency  bool    `yaml:"low_latency"`  // Request low latency from PortAudio.
}

// AnalysisConfig holds gate and spectrum settings.
type AnalysisConfig struct {
	AmplitudeThreshold int     `yaml:"amplitude_threshold"` // 1..32768.
	ThresholdRatio     float64 `yaml:"threshold_ratio"`     // Fraction of full scale; overrides amplitude_threshold when > 0.
	FFTBackend         string  `yaml:"fft_backend"`         // "gonum" or "godsp".
	Window             string  `yaml:"window"`              // "rectangular", "hann", ...
	OverflowPolicy     string  `yaml:"overflow_policy"`     // "repeat", "zero" or "skip".
}

// LoopConfig holds pacing settings for the analysis loop.
type LoopConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"` // 0 disables pacing.
}

// DisplayConfig bounds the plotted frequency range. It never affects
// detection.
type DisplayConfig struct {
	MinHz float64 `yaml:"min_hz"`
	MaxHz float64 `yaml:"max_hz"`
	TUI   bool    `yaml:"tui"`
}

// RecordingConfig holds settings for the WAV recording tap.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16 only.
}

// TransportConfig holds settings for sending results over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// SourceConfig selects where sample blocks come from.
type SourceConfig struct {
	Kind          string  `yaml:"kind"` // "device", "wav" or "tone".
	WAVPath       string  `yaml:"wav_path"`
	WAVLoop       bool    `yaml:"wav_loop"`
	ToneHz        float64 `yaml:"tone_hz"`
	ToneNote      string  `yaml:"tone_note"`      // Piano key, e.g. "A4"; overrides tone_hz.
	ToneAmplitude float64 `yaml:"tone_amplitude"` // Fraction of full scale.
}

// ToneFrequency returns the frequency of the tone source: the reference
// frequency of ToneNote when set, otherwise ToneHz.
func (s SourceConfig) ToneFrequency() (float64, error) {
	if s.ToneNote == "" {
		return s.ToneHz, nil
	}
	n, ok := notes.Lookup(s.ToneNote)
	if !ok {
		return 0, fmt.Errorf("unknown piano key %q", s.ToneNote)
	}
	return n.Frequency, nil
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice: DefaultDeviceID,
			SampleRate:  DefaultSampleRate,
			BlockSize:   DefaultBlockSize,
			Channels:    DefaultChannels,
			LowLatency:  DefaultLowLatency,
		},
		Analysis: AnalysisConfig{
			AmplitudeThreshold: DefaultAmplitudeThreshold,
			FFTBackend:         DefaultFFTBackend,
			Window:             DefaultWindow,
			OverflowPolicy:     DefaultOverflowPolicy,
		},
		Loop: LoopConfig{
			TickInterval: DefaultTickInterval,
		},
		Display: DisplayConfig{
			MinHz: DefaultMinHz,
			MaxHz: DefaultMaxHz,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
		Source: SourceConfig{
			Kind:          DefaultSourceKind,
			ToneHz:        DefaultToneHz,
			ToneAmplitude: DefaultToneAmplitude,
		},
	}
}

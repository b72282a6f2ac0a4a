// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"
	"pitchscope/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var configLog = applog.For("configuration")

// DefaultPath is tried when LoadConfig is called with an empty path.
const DefaultPath = "config.yaml"

// LoadConfig loads configuration from the YAML file at path. If path is empty
// it tries DefaultPath, falling back to built-in defaults when that file does
// not exist. Environment overrides are applied after the file, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device %d is invalid (use %d for the default device)", c.Audio.InputDevice, MinDeviceID))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f outside %d..%d", c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Audio.BlockSize < MinBlockSize || c.Audio.BlockSize > MaxBlockSize || !bitint.IsPowerOfTwo(c.Audio.BlockSize) {
		errs = append(errs, fmt.Errorf("audio.block_size %d must be a power of two in %d..%d", c.Audio.BlockSize, MinBlockSize, MaxBlockSize))
	}
	if c.Audio.Channels != 1 {
		errs = append(errs, fmt.Errorf("audio.channels %d is not supported, only mono (1) input is analyzed", c.Audio.Channels))
	}

	// Analysis
	if c.Analysis.AmplitudeThreshold < analysis.MinAmplitudeThreshold || c.Analysis.AmplitudeThreshold > 32768 {
		errs = append(errs, fmt.Errorf("analysis.amplitude_threshold %d outside %d..32768",
			c.Analysis.AmplitudeThreshold, analysis.MinAmplitudeThreshold))
	}
	if c.Analysis.ThresholdRatio < 0 || c.Analysis.ThresholdRatio > 1 {
		errs = append(errs, fmt.Errorf("analysis.threshold_ratio %.3f outside 0..1", c.Analysis.ThresholdRatio))
	}
	if _, err := analysis.ParseBackend(c.Analysis.FFTBackend); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_backend: %w", err))
	}
	if _, err := analysis.ParseWindowFunc(c.Analysis.Window); err != nil {
		errs = append(errs, fmt.Errorf("analysis.window: %w", err))
	}
	switch c.Analysis.OverflowPolicy {
	case OverflowRepeat, OverflowZero, OverflowSkip:
	default:
		errs = append(errs, fmt.Errorf("analysis.overflow_policy %q is not one of %s, %s, %s",
			c.Analysis.OverflowPolicy, OverflowRepeat, OverflowZero, OverflowSkip))
	}

	// Loop
	if c.Loop.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("loop.tick_interval must not be negative"))
	}

	// Display
	if c.Display.MinHz < 0 || c.Display.MaxHz <= c.Display.MinHz {
		errs = append(errs, fmt.Errorf("display range %.0f..%.0f Hz is empty or negative", c.Display.MinHz, c.Display.MaxHz))
	}

	// Recording
	if c.Recording.Enabled {
		if c.Recording.OutputDir == "" {
			errs = append(errs, fmt.Errorf("recording.output_dir must be set when recording is enabled"))
		}
		if c.Recording.BitDepth != 16 {
			errs = append(errs, fmt.Errorf("recording.bit_depth %d is not supported, samples are 16-bit", c.Recording.BitDepth))
		}
	}

	// Transport
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		errs = append(errs, fmt.Errorf("transport.websocket_address must be set when the websocket is enabled"))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}

	// Source
	switch c.Source.Kind {
	case SourceDevice:
	case SourceWAV:
		if c.Source.WAVPath == "" {
			errs = append(errs, fmt.Errorf("source.wav_path must be set for the wav source"))
		}
	case SourceTone:
		if hz, err := c.Source.ToneFrequency(); err != nil {
			errs = append(errs, fmt.Errorf("source.tone_note: %w", err))
		} else if hz <= 0 || hz >= c.Audio.SampleRate/2 {
			errs = append(errs, fmt.Errorf("source.tone_hz %.1f must lie between 0 and Nyquist", hz))
		}
		if c.Source.ToneAmplitude < 0 || c.Source.ToneAmplitude > 1 {
			errs = append(errs, fmt.Errorf("source.tone_amplitude %.2f outside 0..1", c.Source.ToneAmplitude))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is not one of %s, %s, %s", c.Source.Kind, SourceDevice, SourceWAV, SourceTone))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of file values. Values
// that fail to parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			configLog.Infof("Overriding debug from env: %v", bVal)
		} else {
			configLog.Warnf("Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		configLog.Infof("Overriding log_level from env: %s", val)
	}

	// ENV_AMPLITUDE_THRESHOLD
	if val, ok := os.LookupEnv("ENV_AMPLITUDE_THRESHOLD"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Analysis.AmplitudeThreshold = iVal
			configLog.Infof("Overriding analysis.amplitude_threshold from env: %d", iVal)
		} else {
			configLog.Warnf("Ignoring ENV_AMPLITUDE_THRESHOLD=%q: %v", val, err)
		}
	}
	// ENV_TICK_INTERVAL
	if val, ok := os.LookupEnv("ENV_TICK_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Loop.TickInterval = dur
			configLog.Infof("Overriding loop.tick_interval from env: %s", dur)
		} else {
			configLog.Warnf("Ignoring ENV_TICK_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			configLog.Infof("Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			configLog.Warnf("Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		configLog.Infof("Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			configLog.Infof("Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			configLog.Warnf("Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		configLog.Infof("Overriding transport.websocket_address from env: %s", val)
	}
}

// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pitchscope/internal/config"
)

func TestParseDefaults(t *testing.T) {
	inv, err := parse(nil)
	if err != nil {
		t.Fatalf("parse() error: %v", err)
	}
	if inv.Command != CommandListen {
		t.Errorf("Command = %q, want %q", inv.Command, CommandListen)
	}
	if inv.Config.Audio.BlockSize != config.DefaultBlockSize ||
		inv.Config.Analysis.AmplitudeThreshold != config.DefaultAmplitudeThreshold {
		t.Errorf("unexpected config: %+v", inv.Config)
	}
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("audio:\n  block_size: 4096\n  sample_rate: 48000\nanalysis:\n  amplitude_threshold: 500\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	inv, err := parse([]string{"--config", path, "--threshold", "2000", "--tick", "10ms", "--fft", "godsp"})
	if err != nil {
		t.Fatalf("parse() error: %v", err)
	}
	cfg := inv.Config
	if cfg.Audio.BlockSize != 4096 || cfg.Audio.SampleRate != 48000 {
		t.Errorf("file values lost: block %d, rate %v", cfg.Audio.BlockSize, cfg.Audio.SampleRate)
	}
	if cfg.Analysis.AmplitudeThreshold != 2000 {
		t.Errorf("threshold = %d, want the flag value 2000", cfg.Analysis.AmplitudeThreshold)
	}
	if cfg.Loop.TickInterval != 10*time.Millisecond || cfg.Analysis.FFTBackend != "godsp" {
		t.Errorf("tick %v, backend %q", cfg.Loop.TickInterval, cfg.Analysis.FFTBackend)
	}
}

func TestParseSubcommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"list"}, CommandList},
		{[]string{"devices"}, CommandDevices},
		{[]string{"analyze", "take1.wav"}, CommandAnalyze},
		{[]string{"--source", "tone", "--tone-hz", "261.63"}, CommandListen},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			inv, err := parse(tt.args)
			if err != nil {
				t.Fatalf("parse(%v) error: %v", tt.args, err)
			}
			if inv.Command != tt.want {
				t.Errorf("Command = %q, want %q", inv.Command, tt.want)
			}
		})
	}
}

func TestParseThresholdRatioAndToneNote(t *testing.T) {
	inv, err := parse([]string{"--source", "tone", "--tone-note", "E5", "--threshold-ratio", "0.05"})
	if err != nil {
		t.Fatalf("parse() error: %v", err)
	}
	cfg := inv.Config
	if cfg.Analysis.ThresholdRatio != 0.05 {
		t.Errorf("ThresholdRatio = %v, want 0.05", cfg.Analysis.ThresholdRatio)
	}
	if hz, err := cfg.Source.ToneFrequency(); err != nil || hz != 659.26 {
		t.Errorf("ToneFrequency() = (%v, %v), want E5", hz, err)
	}
}

func TestParseAnalyze(t *testing.T) {
	inv, err := parse([]string{"analyze", "take1.wav", "--tui", "--loop"})
	if err != nil {
		t.Fatal(err)
	}
	src := inv.Config.Source
	if src.Kind != config.SourceWAV || src.WAVPath != "take1.wav" || src.WAVLoop {
		t.Errorf("source = %+v", src)
	}
	if inv.Config.Loop.TickInterval != 0 || inv.Config.Display.TUI {
		t.Error("analyze must run unpaced without the display")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--block-size", "1000"},
		{"--threshold", "-1"},
		{"--threshold", "0"},
		{"--threshold-ratio", "2"},
		{"--source", "tone", "--tone-note", "H4"},
		{"--window", "kaiser"},
		{"--overflow", "drop"},
		{"analyze"},
		{"bogus"},
	} {
		if _, err := parse(args); err == nil {
			t.Errorf("parse(%v) should fail", args)
		}
	}
}

func TestParseHelp(t *testing.T) {
	inv, err := parse([]string{"--help"})
	if err != nil || inv != nil {
		t.Errorf("parse(--help) = (%v, %v), want (nil, nil)", inv, err)
	}
}

// SPDX-License-Identifier: MIT
/*
Package audio provides the frame sources that feed the analysis loop: a
PortAudio capture stream, WAV file replay and a synthetic tone, plus the
WAV recording tap.

Every source hands out blocks of mono 16-bit samples of exactly the
configured block size. A returned block is valid until the next Read.
*/
package audio

import (
	"fmt"

	"pitchscope/internal/analysis"
	"pitchscope/internal/config"
)

// FrameSource yields fixed-size sample blocks on demand.
type FrameSource interface {
	// Open acquires the underlying resource. Failures wrap
	// analysis.ErrDeviceFault.
	Open(sampleRate float64, channels, blockSize int) error
	// Read blocks until the next block is available. An error wrapping
	// analysis.ErrOverflow is recoverable. io.EOF means the source is
	// exhausted.
	Read() (analysis.SampleBlock, error)
	// Close releases what Open acquired. It is safe to call after a failed
	// Open and more than once.
	Close() error
}

// Compile-time checks for interface implementation.
var (
	_ FrameSource = (*DeviceSource)(nil)
	_ FrameSource = (*WAVSource)(nil)
	_ FrameSource = (*ToneSource)(nil)
)

// NewSource builds the frame source selected by cfg.Source.Kind. The source
// is not opened.
func NewSource(cfg *config.Config) (FrameSource, error) {
	switch cfg.Source.Kind {
	case config.SourceDevice, "":
		return NewDeviceSource(cfg.Audio.InputDevice, cfg.Audio.LowLatency), nil
	case config.SourceWAV:
		return NewWAVSource(cfg.Source.WAVPath, cfg.Source.WAVLoop), nil
	case config.SourceTone:
		hz, err := cfg.Source.ToneFrequency()
		if err != nil {
			return nil, err
		}
		return NewToneSource(hz, cfg.Source.ToneAmplitude), nil
	default:
		return nil, fmt.Errorf("unknown source kind: '%s'", cfg.Source.Kind)
	}
}

// checkOpenArgs rejects anything but mono input and a positive block size.
func checkOpenArgs(component string, sampleRate float64, channels, blockSize int) error {
	switch {
	case channels != 1:
		return analysis.NewFault(component, analysis.ErrDeviceFault, nil,
			fmt.Sprintf("%d channels requested, only mono is supported", channels))
	case blockSize <= 0:
		return analysis.NewFault(component, analysis.ErrDeviceFault, nil,
			fmt.Sprintf("invalid block size %d", blockSize))
	case sampleRate <= 0:
		return analysis.NewFault(component, analysis.ErrDeviceFault, nil,
			fmt.Sprintf("invalid sample rate %.0f", sampleRate))
	}
	return nil
}

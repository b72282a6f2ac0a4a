// SPDX-License-Identifier: MIT
package audio

import (
	"pitchscope/internal/analysis"
	"pitchscope/pkg/utils"
)

const toneComponent = "ToneSource"

// ToneSource synthesizes a phase-continuous sine, for running the detector
// without an input device.
type ToneSource struct {
	tones []utils.Tone

	sampleRate float64
	offset     int64 // Absolute index of the next sample.
	block      analysis.SampleBlock
}

// NewToneSource returns an unopened source for one sine of amplitude (a
// fraction of full scale).
func NewToneSource(frequency, amplitude float64) *ToneSource {
	return NewChordSource(utils.Tone{Frequency: frequency, Amplitude: amplitude})
}

// NewChordSource returns an unopened source summing several tones.
func NewChordSource(tones ...utils.Tone) *ToneSource {
	return &ToneSource{tones: tones}
}

func (s *ToneSource) Open(sampleRate float64, channels, blockSize int) error {
	if err := checkOpenArgs(toneComponent, sampleRate, channels, blockSize); err != nil {
		return err
	}
	s.sampleRate = sampleRate
	s.offset = 0
	s.block = make(analysis.SampleBlock, blockSize)
	return nil
}

func (s *ToneSource) Read() (analysis.SampleBlock, error) {
	if s.block == nil {
		return nil, analysis.NewFault(toneComponent, analysis.ErrDeviceFault, nil, "read from a closed source")
	}
	utils.GenerateTonesAt(s.block, s.offset, s.sampleRate, s.tones...)
	s.offset += int64(len(s.block))
	return s.block, nil
}

func (s *ToneSource) Close() error {
	s.block = nil
	return nil
}

// Name identifies the source in diagnostics.
func (s *ToneSource) Name() string { return toneComponent }

// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"time"

	"pitchscope/internal/analysis"
)

// Frame is what the analysis loop hands to sinks once per cycle.
type Frame struct {
	Seq    uint64    // Cycle number, starting at 1.
	Time   time.Time // When the block was read.
	Result analysis.Result
	// Spectrum is only valid for the duration of Emit. A sink that keeps it
	// must Clone it or copy what it needs.
	Spectrum analysis.Spectrum
}

// Sink receives frames from the analysis loop. Emit must return within one
// tick; sinks with slow consumers buffer or drop frames themselves.
// Implementations need not be safe for concurrent Emit calls.
type Sink interface {
	Emit(frame Frame) error
	Close() error
}

// Fanout forwards every frame to each of its sinks in order.
type Fanout []Sink

// Emit forwards frame to every sink and returns their errors joined.
func (f Fanout) Emit(frame Frame) error {
	var errs []error
	for _, s := range f {
		if err := s.Emit(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, in reverse order.
func (f Fanout) Close() error {
	var errs []error
	for i := len(f) - 1; i >= 0; i-- {
		if err := f[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Fanout satisfies the interface at compile time.
var _ Sink = Fanout(nil)

// Message is the JSON form of a Frame, restricted to a display range.
type Message struct {
	Seq           uint64    `json:"seq"`
	Timestamp     int64     `json:"timestamp"` // Unix milliseconds.
	Detected      bool      `json:"detected"`
	Frequency     float64   `json:"frequency,omitempty"` // Peak bin centre, Hz.
	Note          string    `json:"note,omitempty"`
	NoteFrequency float64   `json:"noteFrequency,omitempty"`
	Cents         float64   `json:"cents"` // Peak deviation from the key.
	Label         string    `json:"label"`
	BinWidth      float64   `json:"binWidth"`
	FirstBin      int       `json:"firstBin"`
	Magnitudes    []float64 `json:"magnitudes"`
}

// NewMessage copies frame into a Message, keeping the bins whose centre lies
// in [lowHz, highHz].
func NewMessage(frame Frame, lowHz, highHz float64) Message {
	bins, first := frame.Spectrum.DisplayBins(lowHz, highHz)
	mags := make([]float64, len(bins))
	copy(mags, bins)

	return Message{
		Seq:           frame.Seq,
		Timestamp:     frame.Time.UnixMilli(),
		Detected:      frame.Result.Detected,
		Frequency:     frame.Result.Frequency,
		Note:          frame.Result.Note.Label,
		NoteFrequency: frame.Result.Note.Frequency,
		Cents:         frame.Result.Cents(),
		Label:         frame.Result.String(),
		BinWidth:      frame.Spectrum.BinWidth,
		FirstBin:      first,
		Magnitudes:    mags,
	}
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"pitchscope/internal/notes"
)

// Result is the outcome of one cycle: silence, or the peak frequency and the
// piano key nearest to it.
type Result struct {
	Detected  bool
	Frequency float64    // Centre frequency of the peak bin, Hz.
	Note      notes.Note // Nearest key to Frequency.
}

// Silence is the Result of a gated cycle.
var Silence = Result{}

// String renders the result the way the display labels it, e.g.
// "A4 (440.0 Hz)", using the key's reference frequency.
func (r Result) String() string {
	if !r.Detected {
		return "silence"
	}
	return fmt.Sprintf("%s (%.1f Hz)", r.Note.Label, r.Note.Frequency)
}

// Cents returns how far the peak frequency lies from the key, in cents.
// Positive is sharp. Silence has no deviation.
func (r Result) Cents() float64 {
	if !r.Detected {
		return 0
	}
	return r.Note.Cents(r.Frequency)
}

// Detail extends String with the measured peak and its deviation from the
// key, e.g. "A4 (440.0 Hz) peak 430.7 Hz, -37 cents".
func (r Result) Detail() string {
	if !r.Detected {
		return r.String()
	}
	return fmt.Sprintf("%s peak %.1f Hz, %+.0f cents", r, r.Frequency, r.Cents())
}

// PitchResolver picks the dominant bin of a spectrum and names its key.
//
// The dominant bin is not a true fundamental estimate: when a harmonic
// carries more energy than the fundamental, the harmonic's key is reported.
type PitchResolver struct{}

// NewPitchResolver returns a PitchResolver.
func NewPitchResolver() *PitchResolver { return &PitchResolver{} }

// Resolve returns the Detected result for spectrum. Ties between equal
// peaks go to the lowest frequency bin. An empty spectrum is Silence.
func (r *PitchResolver) Resolve(spectrum Spectrum) Result {
	peak := spectrum.Peak()
	if peak < 0 {
		return Silence
	}
	freq := spectrum.Frequency(peak)
	return Result{
		Detected:  true,
		Frequency: freq,
		Note:      notes.Nearest(freq),
	}
}

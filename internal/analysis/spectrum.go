// SPDX-License-Identifier: MIT
package analysis

// Spectrum is a normalized magnitude spectrum of one block: N/2+1 bins where
// bin i is centred on i*BinWidth Hz. For a non-silent block every magnitude
// lies in [0,1] and the loudest bin is exactly 1.0. The silent spectrum is
// all zeros.
type Spectrum struct {
	Magnitudes []float64
	BinWidth   float64 // sampleRate / blockSize, in Hz.
}

// Len returns the number of bins.
func (s Spectrum) Len() int { return len(s.Magnitudes) }

// Frequency returns the centre frequency of bin i, or 0 if i is out of range.
func (s Spectrum) Frequency(i int) float64 {
	if i < 0 || i >= len(s.Magnitudes) {
		return 0
	}
	return float64(i) * s.BinWidth
}

// Peak returns the index of the largest magnitude, taking the lowest
// frequency bin when several are equal. Returns -1 for an empty spectrum.
func (s Spectrum) Peak() int {
	if len(s.Magnitudes) == 0 {
		return -1
	}
	peak := 0
	for i, m := range s.Magnitudes[1:] {
		if m > s.Magnitudes[peak] {
			peak = i + 1
		}
	}
	return peak
}

// Clone returns a deep copy, for sinks that keep a spectrum past the cycle
// that produced it.
func (s Spectrum) Clone() Spectrum {
	mags := make([]float64, len(s.Magnitudes))
	copy(mags, s.Magnitudes)
	return Spectrum{Magnitudes: mags, BinWidth: s.BinWidth}
}

// DisplayBins returns the sub-slice of bins whose centre frequency lies in
// [lowHz, highHz] together with the index of its first bin. The returned
// slice aliases s.Magnitudes.
func (s Spectrum) DisplayBins(lowHz, highHz float64) (bins []float64, first int) {
	if s.BinWidth <= 0 || len(s.Magnitudes) == 0 || highHz < lowHz {
		return nil, 0
	}
	first = 0
	for first < len(s.Magnitudes) && s.Frequency(first) < lowHz {
		first++
	}
	last := first
	for last < len(s.Magnitudes) && s.Frequency(last) <= highHz {
		last++
	}
	return s.Magnitudes[first:last], first
}

// silentSpectrum returns the flat spectrum used for silent cycles.
func silentSpectrum(bins int, binWidth float64) Spectrum {
	return Spectrum{Magnitudes: make([]float64, bins), BinWidth: binWidth}
}

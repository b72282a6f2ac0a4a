// SPDX-License-Identifier: MIT
//
// Package utils generates synthetic 16-bit test signals. It backs the
// synthetic tone source and the test suites of the analysis packages.
package utils

import (
	"math"
	"math/rand"
)

// Tone is one sinusoidal component. Amplitude is a fraction of 16-bit full
// scale (1.0 = 32767).
type Tone struct {
	Frequency float64
	Amplitude float64
}

// GenerateSineWave returns size samples of a sine at frequency with the given
// amplitude (fraction of full scale), starting at phase zero.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	return GenerateTones(size, sampleRate, Tone{Frequency: frequency, Amplitude: amplitude})
}

// GenerateTones returns the sum of tones, starting at sample zero.
func GenerateTones(size int, sampleRate float64, tones ...Tone) []int16 {
	return GenerateTonesAt(make([]int16, size), 0, sampleRate, tones...)
}

// GenerateTonesAt fills buffer with the sum of tones starting at absolute
// sample index offset, so consecutive blocks join without a phase jump. The
// sum is clipped to the int16 range. Returns buffer.
func GenerateTonesAt(buffer []int16, offset int64, sampleRate float64, tones ...Tone) []int16 {
	for i := range buffer {
		t := float64(offset+int64(i)) / sampleRate
		var v float64
		for _, tone := range tones {
			v += tone.Amplitude * math.Sin(2*math.Pi*tone.Frequency*t)
		}
		buffer[i] = clip16(v * math.MaxInt16)
	}
	return buffer
}

// GenerateNoise returns size samples of uniform noise in
// [-amplitude, amplitude] of full scale, reproducible for a given seed.
func GenerateNoise(size int, amplitude float64, seed int64) []int16 {
	rng := rand.New(rand.NewSource(seed))
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = clip16((rng.Float64()*2 - 1) * amplitude * math.MaxInt16)
	}
	return buffer
}

// Constant returns size samples all equal to value.
func Constant(size int, value int16) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

func clip16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// SPDX-License-Identifier: MIT
package analysis

import "math"

// DefaultAmplitudeThreshold is roughly 3% of 16-bit full scale.
const DefaultAmplitudeThreshold = 1000

// MinAmplitudeThreshold is the lowest threshold a gate accepts. An all-zero
// block must stay silent, since its spectrum cannot be normalized.
const MinAmplitudeThreshold = 1

// fullScale is the largest magnitude a 16-bit sample can have.
const fullScale = -math.MinInt16

// SilenceGate decides whether a block carries signal. A block whose peak
// absolute amplitude is strictly below the threshold is silence and must not
// reach the SpectralAnalyzer.
type SilenceGate struct {
	threshold int32 // Absolute amplitude threshold (0-32768).
}

// NewSilenceGate returns a gate with the given absolute threshold, clamped
// to [MinAmplitudeThreshold, 32768].
func NewSilenceGate(threshold int) *SilenceGate {
	g := &SilenceGate{}
	g.SetThreshold(threshold)
	return g
}

// IsSignal reports whether the block's peak amplitude reaches the threshold.
func (g *SilenceGate) IsSignal(block SampleBlock) bool {
	return MaxAmplitude(block) >= g.threshold
}

// SetThreshold sets the absolute amplitude threshold, clamped to
// [MinAmplitudeThreshold, 32768].
func (g *SilenceGate) SetThreshold(threshold int) {
	if threshold < MinAmplitudeThreshold {
		threshold = MinAmplitudeThreshold
	}
	if threshold > fullScale {
		threshold = fullScale
	}
	g.threshold = int32(threshold)
}

// Threshold returns the absolute amplitude threshold.
func (g *SilenceGate) Threshold() int {
	return int(g.threshold)
}

// SetThresholdRatio sets the threshold as a fraction of full scale, in the
// range 0.0-1.0 where 1 means only a full-scale sample opens the gate. Small
// ratios still leave the threshold at MinAmplitudeThreshold.
func (g *SilenceGate) SetThresholdRatio(ratio float64) {
	ratio = max(0.0, min(ratio, 1.0))
	g.SetThreshold(int(math.Round(ratio * fullScale)))
}

// ThresholdRatio returns the threshold as a fraction of full scale.
func (g *SilenceGate) ThresholdRatio() float64 {
	return float64(g.threshold) / fullScale
}

// MaxAmplitude returns the largest absolute sample value in block. Samples
// are widened to int32 so |-32768| does not overflow; abs and max are
// branchless.
func MaxAmplitude(block SampleBlock) int32 {
	var maxAmplitude int32
	for _, s := range block {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += diff &^ (diff >> 31)
	}
	return maxAmplitude
}

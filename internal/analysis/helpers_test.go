// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"

	"pitchscope/pkg/utils"
)

const (
	testBlockSize  = 1024
	testSampleRate = 44100
	testBinWidth   = float64(testSampleRate) / testBlockSize
)

var (
	quietBlock = SampleBlock(utils.GenerateSineWave(testBlockSize, testSampleRate, 440, 0.01))
	loudBlock  = SampleBlock(utils.GenerateSineWave(testBlockSize, testSampleRate, 440, 0.9))
	zeroBlock  = make(SampleBlock, testBlockSize)
)

func newTestAnalyzer(t testing.TB, blockSize int, opts AnalyzerOptions) *SpectralAnalyzer {
	t.Helper()
	a, err := NewSpectralAnalyzer(blockSize, testSampleRate, opts)
	if err != nil {
		t.Fatalf("NewSpectralAnalyzer(%d) error: %v", blockSize, err)
	}
	return a
}

func newTestPipeline(t testing.TB) *Pipeline {
	t.Helper()
	return NewPipeline(
		NewSilenceGate(DefaultAmplitudeThreshold),
		newTestAnalyzer(t, testBlockSize, AnalyzerOptions{}),
		NewPitchResolver(),
	)
}

// countingAnalyzer records how often the pipeline reaches the spectral stage.
type countingAnalyzer struct {
	*SpectralAnalyzer
	calls int
}

func (c *countingAnalyzer) Analyze(block SampleBlock) (Spectrum, error) {
	c.calls++
	return c.SpectralAnalyzer.Analyze(block)
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

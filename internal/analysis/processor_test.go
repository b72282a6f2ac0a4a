// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"testing"

	"pitchscope/internal/notes"
	"pitchscope/pkg/utils"
)

func TestPipelineA4RoundTrip(t *testing.T) {
	p := newTestPipeline(t)
	block := SampleBlock(utils.GenerateSineWave(testBlockSize, testSampleRate, 440, 1.0))

	result, spectrum, err := p.Process(block)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if !result.Detected {
		t.Fatal("expected a detection, got silence")
	}
	if result.Note.Label != "A4" {
		t.Errorf("note = %q, want A4", result.Note.Label)
	}
	if absFloat(result.Frequency-440) > testBinWidth {
		t.Errorf("frequency = %.2f Hz, want within %.2f Hz of 440", result.Frequency, testBinWidth)
	}
	if spectrum.Magnitudes[spectrum.Peak()] != 1.0 {
		t.Errorf("peak magnitude = %v, want 1.0", spectrum.Magnitudes[spectrum.Peak()])
	}
	if got := result.String(); got != "A4 (440.0 Hz)" {
		t.Errorf("String() = %q, want %q", got, "A4 (440.0 Hz)")
	}
}

func TestResultCents(t *testing.T) {
	a4 := notes.Nearest(440)
	tests := []struct {
		name   string
		result Result
		cents  float64
		detail string
	}{
		{"On the key", Result{Detected: true, Frequency: 440, Note: a4}, 0, "A4 (440.0 Hz) peak 440.0 Hz, +0 cents"},
		{"Flat bin", Result{Detected: true, Frequency: 430.6640625, Note: a4}, -37.1, "A4 (440.0 Hz) peak 430.7 Hz, -37 cents"},
		{"Sharp", Result{Detected: true, Frequency: 452.89, Note: a4}, 50, "A4 (440.0 Hz) peak 452.9 Hz, +50 cents"},
		{"Silence", Silence, 0, "silence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Cents(); absFloat(got-tt.cents) > 0.1 {
				t.Errorf("Cents() = %.2f, want %.1f", got, tt.cents)
			}
			if got := tt.result.Detail(); got != tt.detail {
				t.Errorf("Detail() = %q, want %q", got, tt.detail)
			}
		})
	}
}

func TestPipelineDominantBinWinsOverHarmonic(t *testing.T) {
	// 440 Hz at full weight, 880 Hz at 0.3 of it.
	p := newTestPipeline(t)
	block := SampleBlock(utils.GenerateTones(testBlockSize, testSampleRate,
		utils.Tone{Frequency: 440, Amplitude: 0.75},
		utils.Tone{Frequency: 880, Amplitude: 0.225},
	))

	result, _, err := p.Process(block)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if result.Note.Label != "A4" {
		t.Errorf("note = %q, want A4", result.Note.Label)
	}
}

func TestPipelineStrongHarmonicIsReported(t *testing.T) {
	// Known limitation: a harmonic louder than its fundamental wins.
	p := newTestPipeline(t)
	block := SampleBlock(utils.GenerateTones(testBlockSize, testSampleRate,
		utils.Tone{Frequency: 440, Amplitude: 0.2},
		utils.Tone{Frequency: 880, Amplitude: 0.7},
	))

	result, _, err := p.Process(block)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if result.Note.Label != "A5" {
		t.Errorf("note = %q, want A5", result.Note.Label)
	}
}

func TestPipelineSilenceSkipsAnalyzer(t *testing.T) {
	counter := &countingAnalyzer{SpectralAnalyzer: newTestAnalyzer(t, testBlockSize, AnalyzerOptions{})}
	p := NewPipeline(NewSilenceGate(DefaultAmplitudeThreshold), counter, NewPitchResolver())

	blocks := map[string]SampleBlock{
		"Zero":  zeroBlock,
		"Quiet": quietBlock,
		"Just below": func() SampleBlock {
			b := make(SampleBlock, testBlockSize)
			b[0], b[1] = 999, -999
			return b
		}(),
	}
	for seed := int64(1); seed <= 3; seed++ {
		blocks[fmt.Sprintf("Noise %d", seed)] = utils.GenerateNoise(testBlockSize, 0.02, seed)
	}

	for name, block := range blocks {
		t.Run(name, func(t *testing.T) {
			result, spectrum, err := p.Process(block)
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			if result != Silence {
				t.Errorf("result = %+v, want Silence", result)
			}
			if spectrum.Len() != testBlockSize/2+1 {
				t.Errorf("silent spectrum has %d bins", spectrum.Len())
			}
			for i, m := range spectrum.Magnitudes {
				if m != 0 {
					t.Fatalf("silent spectrum bin %d = %v, want 0", i, m)
				}
			}
		})
	}

	if counter.calls != 0 {
		t.Errorf("analyzer invoked %d times on silent blocks", counter.calls)
	}

	if _, _, err := p.Process(loudBlock); err != nil {
		t.Fatal(err)
	}
	if counter.calls != 1 {
		t.Errorf("analyzer invoked %d times after one loud block, want 1", counter.calls)
	}
}

func TestPipelineZeroBlockWithLowestThreshold(t *testing.T) {
	for _, threshold := range []int{-1, 0, MinAmplitudeThreshold} {
		t.Run(fmt.Sprint(threshold), func(t *testing.T) {
			p := NewPipeline(NewSilenceGate(threshold), newTestAnalyzer(t, testBlockSize, AnalyzerOptions{}), NewPitchResolver())
			result, _, err := p.Process(zeroBlock)
			if err != nil {
				t.Fatalf("Process(zero block) error: %v", err)
			}
			if result != Silence {
				t.Errorf("result = %+v, want Silence", result)
			}
		})
	}
}

func TestPipelineMalformedBlock(t *testing.T) {
	p := newTestPipeline(t)
	for _, n := range []int{512, 1023, 1025, 2048} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			result, _, err := p.Process(make(SampleBlock, n))
			if !errors.Is(err, ErrMalformedBlock) {
				t.Fatalf("Process(%d samples) error = %v, want ErrMalformedBlock", n, err)
			}
			if result.Detected {
				t.Error("malformed block produced a detection")
			}
			if IsRecoverable(err) {
				t.Error("malformed block must not be recoverable")
			}
		})
	}
}

func TestResolvePureTonesToNearestKey(t *testing.T) {
	// A long block gives ~2.7 Hz bins, finer than half the key spacing from
	// C2 upward, so the peak bin always resolves to the tone's own key.
	const blockSize = 16384
	a := newTestAnalyzer(t, blockSize, AnalyzerOptions{})
	r := NewPitchResolver()

	for _, note := range notes.Notes() {
		if note.Frequency < 65 {
			continue
		}
		t.Run(note.Label, func(t *testing.T) {
			block := SampleBlock(utils.GenerateSineWave(blockSize, testSampleRate, note.Frequency, 0.8))
			spectrum, err := a.Analyze(block)
			if err != nil {
				t.Fatal(err)
			}
			result := r.Resolve(spectrum)
			if result.Note != notes.Nearest(note.Frequency) {
				t.Errorf("tone %.2f Hz resolved to %s (peak %.2f Hz)", note.Frequency, result.Note.Label, result.Frequency)
			}
		})
	}
}

func TestResolveTieTakesLowestBin(t *testing.T) {
	spectrum := Spectrum{Magnitudes: []float64{0.2, 1.0, 0.5, 1.0}, BinWidth: 440}
	result := NewPitchResolver().Resolve(spectrum)
	if result.Frequency != 440 || result.Note.Label != "A4" {
		t.Errorf("Resolve() = %+v, want first peak at 440 Hz", result)
	}
}

func TestResolveEmptySpectrum(t *testing.T) {
	if got := NewPitchResolver().Resolve(Spectrum{}); got != Silence {
		t.Errorf("Resolve(empty) = %+v, want Silence", got)
	}
}

func TestSilenceString(t *testing.T) {
	if Silence.String() != "silence" {
		t.Errorf("Silence.String() = %q", Silence.String())
	}
}

func BenchmarkPipeline(b *testing.B) {
	p := newTestPipeline(b)
	b.ReportAllocs()
	for b.Loop() {
		_, _, _ = p.Process(loudBlock)
	}
}

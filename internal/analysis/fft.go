// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"

	applog "pitchscope/internal/log"
	"pitchscope/pkg/bitint"

	vecmath "github.com/cwbudde/algo-vecmath"
	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

var analyzerLog = applog.For("SpectralAnalyzer")

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions. Rectangular applies no weighting and
// is the default: leakage is accepted in exchange for the simplest transform.
const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	Rectangular:     "Rectangular",
	BartlettHann:    "BartlettHann",
	Blackman:        "Blackman",
	BlackmanNuttall: "BlackmanNuttall",
	Hann:            "Hann",
	Hamming:         "Hamming",
	Lanczos:         "Lanczos",
	Nuttall:         "Nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Unknown names return Rectangular and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rectangular", "none", "boxcar":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// windowCoefficients returns the coefficients for windowType, or nil for
// Rectangular so the hot path can skip the multiply.
func windowCoefficients(size int, windowType WindowFunc) []float64 {
	if windowType == Rectangular {
		return nil
	}
	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		analyzerLog.Warnf("Unknown window function type %d, using rectangular", windowType)
		return nil
	}
	return coeffs
}

// Backend selects the real FFT implementation.
type Backend int

const (
	BackendGonum Backend = iota // gonum.org/v1/gonum/dsp/fourier, allocation free.
	BackendGoDSP                // github.com/mjibson/go-dsp/fft, allocates per call.
)

func (b Backend) String() string {
	if b == BackendGoDSP {
		return "godsp"
	}
	return "gonum"
}

// ParseBackend converts a backend name to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum":
		return BackendGonum, nil
	case "godsp", "go-dsp":
		return BackendGoDSP, nil
	default:
		return BackendGonum, fmt.Errorf("unknown FFT backend: '%s'", name)
	}
}

// transform computes the first len(dst) DFT coefficients of a real sequence.
type transform interface {
	Coefficients(dst []complex128, seq []float64) []complex128
}

type goDSPTransform struct{}

func (goDSPTransform) Coefficients(dst []complex128, seq []float64) []complex128 {
	full := dspfft.FFTReal(seq)
	copy(dst, full[:len(dst)])
	return dst
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Block samples as float64, windowed if a window is set.
	fftOutput []complex128 // N/2+1 complex coefficients.
	re, im    []float64    // Split coefficients for the magnitude kernel.
	magnitude []float64    // Normalized magnitudes, aliased by the returned Spectrum.
	window    []float64    // nil for Rectangular.
}

// SpectralAnalyzer turns a SampleBlock into a normalized magnitude Spectrum.
// It owns its workspace and is not safe for concurrent use; the analysis
// loop runs one cycle at a time.
type SpectralAnalyzer struct {
	transform  transform
	blockSize  int
	sampleRate float64
	binWidth   float64
	windowType WindowFunc
	workspace  fftWorkspace
}

// AnalyzerOptions configures optional analyzer behaviour.
type AnalyzerOptions struct {
	Window  WindowFunc
	Backend Backend
}

// NewSpectralAnalyzer pre-allocates every buffer needed to analyze blocks of
// blockSize samples. blockSize must be a power of two.
func NewSpectralAnalyzer(blockSize int, sampleRate float64, opts AnalyzerOptions) (*SpectralAnalyzer, error) {
	if !bitint.IsPowerOfTwo(blockSize) {
		return nil, fmt.Errorf("block size must be a power of 2, got %d (nearest: %d)",
			blockSize, bitint.NextPowerOfTwo(blockSize))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	var t transform
	switch opts.Backend {
	case BackendGoDSP:
		t = goDSPTransform{}
	default:
		t = fourier.NewFFT(blockSize)
	}

	// FFT output size for real input is N/2 + 1 complex values.
	bins := blockSize/2 + 1

	analyzerLog.Debugf("Initializing (Block: %d, SampleRate: %.1f Hz, Window: %v, Backend: %v)",
		blockSize, sampleRate, opts.Window, opts.Backend)

	return &SpectralAnalyzer{
		transform:  t,
		blockSize:  blockSize,
		sampleRate: sampleRate,
		binWidth:   sampleRate / float64(blockSize),
		windowType: opts.Window,
		workspace: fftWorkspace{
			input:     make([]float64, blockSize),
			fftOutput: make([]complex128, bins),
			re:        make([]float64, bins),
			im:        make([]float64, bins),
			magnitude: make([]float64, bins),
			window:    windowCoefficients(blockSize, opts.Window),
		},
	}, nil
}

// Analyze computes |DFT(block)| / N and rescales it so the loudest bin is
// exactly 1.0. The returned Spectrum aliases the analyzer's workspace and is
// only valid until the next call; use Clone to keep it.
//
// A block of the wrong length yields a MalformedBlock fault. An all-zero
// block yields a DegenerateSpectrum fault; callers gate silence first.
func (a *SpectralAnalyzer) Analyze(block SampleBlock) (Spectrum, error) {
	if err := CheckBlock("SpectralAnalyzer", block, a.blockSize); err != nil {
		return Spectrum{}, err
	}

	ws := &a.workspace

	// --- 1. Prepare Input ---
	if ws.window == nil {
		for i, s := range block {
			ws.input[i] = float64(s)
		}
	} else {
		for i, s := range block {
			ws.input[i] = float64(s) * ws.window[i]
		}
	}

	// --- 2. Perform FFT ---
	a.transform.Coefficients(ws.fftOutput, ws.input)

	// --- 3. Magnitudes, scaled by 1/N ---
	for i, c := range ws.fftOutput {
		ws.re[i] = real(c)
		ws.im[i] = imag(c)
	}
	vecmath.Magnitude(ws.magnitude, ws.re, ws.im)
	vecmath.ScaleBlockInPlace(ws.magnitude, 1/float64(a.blockSize))

	// --- 4. Per-block normalization ---
	peak := vecmath.MaxAbs(ws.magnitude)
	if !(peak > 0) || math.IsInf(peak, 0) {
		return Spectrum{}, NewFault("SpectralAnalyzer", ErrDegenerateSpectrum, nil,
			fmt.Sprintf("maximum magnitude %v", peak))
	}
	// Divide rather than multiply by 1/peak so the peak bin is exactly 1.0.
	for i := range ws.magnitude {
		ws.magnitude[i] /= peak
	}

	return Spectrum{Magnitudes: ws.magnitude, BinWidth: a.binWidth}, nil
}

// BlockSize returns the configured block size N.
func (a *SpectralAnalyzer) BlockSize() int { return a.blockSize }

// SampleRate returns the configured sample rate in Hz.
func (a *SpectralAnalyzer) SampleRate() float64 { return a.sampleRate }

// BinWidth returns the spacing between bins in Hz.
func (a *SpectralAnalyzer) BinWidth() float64 { return a.binWidth }

// Bins returns the number of spectrum bins, N/2+1.
func (a *SpectralAnalyzer) Bins() int { return len(a.workspace.magnitude) }

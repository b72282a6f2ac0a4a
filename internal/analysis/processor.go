// SPDX-License-Identifier: MIT
package analysis

// Analyzer is the spectral stage of the pipeline. *SpectralAnalyzer is the
// production implementation.
type Analyzer interface {
	Analyze(block SampleBlock) (Spectrum, error)
	BlockSize() int
	BinWidth() float64
	Bins() int
}

// Compile-time check for interface implementation.
var _ Analyzer = (*SpectralAnalyzer)(nil)

// Pipeline runs one block through gate, analyzer and resolver:
//
//	block -> SilenceGate --silence--> Silence + flat spectrum
//	               \--signal--> SpectralAnalyzer -> PitchResolver -> Detected
//
// The gate always runs before the analyzer, which is what keeps an all-zero
// block away from normalization.
type Pipeline struct {
	gate     *SilenceGate
	analyzer Analyzer
	resolver *PitchResolver
	silent   Spectrum // Shared flat spectrum, never written.
}

// NewPipeline wires the three stages together.
func NewPipeline(gate *SilenceGate, analyzer Analyzer, resolver *PitchResolver) *Pipeline {
	return &Pipeline{
		gate:     gate,
		analyzer: analyzer,
		resolver: resolver,
		silent:   silentSpectrum(analyzer.Bins(), analyzer.BinWidth()),
	}
}

// Process analyzes one block. The returned Spectrum is only valid until the
// next call. On error no Result is produced; every error here is fatal.
func (p *Pipeline) Process(block SampleBlock) (Result, Spectrum, error) {
	signal, err := p.Admit(block)
	if err != nil {
		return Result{}, Spectrum{}, err
	}
	if !signal {
		return Silence, p.silent, nil
	}
	return p.Resolve(block)
}

// Admit checks the block length and runs the silence gate. It reports
// whether the block carries signal.
func (p *Pipeline) Admit(block SampleBlock) (bool, error) {
	if err := CheckBlock("Pipeline", block, p.analyzer.BlockSize()); err != nil {
		return false, err
	}
	return p.gate.IsSignal(block), nil
}

// Resolve runs the spectral and pitch stages on a block that Admit let
// through.
func (p *Pipeline) Resolve(block SampleBlock) (Result, Spectrum, error) {
	spectrum, err := p.analyzer.Analyze(block)
	if err != nil {
		return Result{}, Spectrum{}, err
	}
	return p.resolver.Resolve(spectrum), spectrum, nil
}

// SilentSpectrum returns the flat spectrum reported for silent blocks.
// Callers must not modify it.
func (p *Pipeline) SilentSpectrum() Spectrum { return p.silent }

// BlockSize returns the block length the pipeline accepts.
func (p *Pipeline) BlockSize() int { return p.analyzer.BlockSize() }

// Gate returns the pipeline's silence gate.
func (p *Pipeline) Gate() *SilenceGate { return p.gate }

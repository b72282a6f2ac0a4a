// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"os"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavComponent = "WAVSource"

var wavLog = applog.For(wavComponent)

// WAVInfo describes a WAV file's PCM stream.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// ProbeWAV reads the header of the WAV file at path.
func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("invalid WAV file: %s", path)
	}
	return WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// WAVSource replays a PCM WAV file as a frame source. Multi-channel files
// are reduced to their first channel and every bit depth is scaled to 16
// bits. The last partial block is zero padded; after it Read returns io.EOF
// unless the source loops.
type WAVSource struct {
	path string
	loop bool

	file     *os.File
	decoder  *wav.Decoder
	channels int
	bitDepth int

	pcm        audio.IntBuffer // Interleaved decode buffer.
	channelPos int             // Interleave position of the next decoded sample.
	block      analysis.SampleBlock
	done       bool
}

// NewWAVSource returns an unopened source for the file at path.
func NewWAVSource(path string, loop bool) *WAVSource {
	return &WAVSource{path: path, loop: loop}
}

// Open validates the file against the requested format. The file's sample
// rate must match sampleRate.
func (w *WAVSource) Open(sampleRate float64, channels, blockSize int) error {
	if err := checkOpenArgs(wavComponent, sampleRate, channels, blockSize); err != nil {
		return err
	}

	f, err := os.Open(w.path)
	if err != nil {
		return analysis.NewFault(wavComponent, analysis.ErrDeviceFault, err, "open")
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return analysis.NewFault(wavComponent, analysis.ErrDeviceFault, d.Err(),
			fmt.Sprintf("%s is not a valid WAV file", w.path))
	}
	if d.WavAudioFormat != 1 {
		f.Close()
		return analysis.NewFault(wavComponent, analysis.ErrDeviceFault, nil,
			fmt.Sprintf("%s: only integer PCM is supported (format %d)", w.path, d.WavAudioFormat))
	}
	if float64(d.SampleRate) != sampleRate {
		f.Close()
		return analysis.NewFault(wavComponent, analysis.ErrDeviceFault, nil,
			fmt.Sprintf("%s is %d Hz, loop runs at %.0f Hz", w.path, d.SampleRate, sampleRate))
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return analysis.NewFault(wavComponent, analysis.ErrDeviceFault, err, "seek to PCM data")
	}

	w.file = f
	w.decoder = d
	w.channels = int(d.NumChans)
	w.bitDepth = int(d.BitDepth)
	w.pcm = audio.IntBuffer{
		Format: d.Format(),
		Data:   make([]int, blockSize*w.channels),
	}
	w.channelPos = 0
	w.block = make(analysis.SampleBlock, blockSize)
	w.done = false

	duration, _ := d.Duration()
	wavLog.Infof("Replaying %s: %d Hz, %d-bit, %d channel(s), %v", w.path, d.SampleRate, w.bitDepth, w.channels, duration)
	return nil
}

// Read returns the next block of the file.
func (w *WAVSource) Read() (analysis.SampleBlock, error) {
	if w.decoder == nil {
		return nil, analysis.NewFault(wavComponent, analysis.ErrDeviceFault, nil, "read from a closed source")
	}
	if w.done {
		return nil, io.EOF
	}

	filled, rewound := 0, false
	for filled < len(w.block) {
		want := (len(w.block) - filled) * w.channels
		w.pcm.Data = w.pcm.Data[:want]
		n, err := w.decoder.PCMBuffer(&w.pcm)
		if err != nil {
			return nil, analysis.NewFault(wavComponent, analysis.ErrDeviceFault, err, "decode")
		}

		if n == 0 {
			// A rewind that yields nothing means an empty data chunk.
			if !w.loop || rewound {
				break
			}
			if err := w.decoder.Rewind(); err != nil {
				return nil, analysis.NewFault(wavComponent, analysis.ErrDeviceFault, err, "rewind")
			}
			w.channelPos = 0
			rewound = true
			continue
		}
		rewound = false

		for _, v := range w.pcm.Data[:n] {
			if w.channelPos == 0 && filled < len(w.block) {
				w.block[filled] = scaleTo16(v, w.bitDepth)
				filled++
			}
			w.channelPos = (w.channelPos + 1) % w.channels
		}
	}

	if filled == 0 {
		w.done = true
		return nil, io.EOF
	}
	if filled < len(w.block) {
		clear(w.block[filled:])
		w.done = true
	}
	return w.block, nil
}

// Close closes the file.
func (w *WAVSource) Close() error {
	w.decoder = nil
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return analysis.NewFault(wavComponent, analysis.ErrDeviceFault, err, "close")
	}
	return nil
}

// scaleTo16 converts a decoded sample of the given bit depth to 16 bits.
// 8-bit WAV samples are unsigned.
func scaleTo16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth <= 16:
		return int16(v)
	default:
		return int16(v >> (bitDepth - 16))
	}
}

// Name identifies the source in diagnostics.
func (w *WAVSource) Name() string { return wavComponent }

// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"pitchscope/internal/analysis"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV writes interleaved samples to a PCM WAV file in a temp dir.
func writeTestWAV(t *testing.T, sampleRate, bitDepth, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func ramp(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i - n/2
	}
	return s
}

func TestWAVSourceBlocksAndPadding(t *testing.T) {
	const blockSize = 64
	samples := ramp(blockSize*2 + 10)
	path := writeTestWAV(t, testSampleRate, 16, 1, samples)

	src := NewWAVSource(path, false)
	if err := src.Open(testSampleRate, 1, blockSize); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	for b := 0; b < 2; b++ {
		block, err := src.Read()
		if err != nil {
			t.Fatalf("block %d: %v", b, err)
		}
		for i, s := range block {
			if int(s) != samples[b*blockSize+i] {
				t.Fatalf("block %d sample %d = %d, want %d", b, i, s, samples[b*blockSize+i])
			}
		}
	}

	last, err := src.Read()
	if err != nil {
		t.Fatalf("last block: %v", err)
	}
	if len(last) != blockSize {
		t.Fatalf("last block has %d samples, want %d", len(last), blockSize)
	}
	if int(last[9]) != samples[2*blockSize+9] || last[10] != 0 || last[blockSize-1] != 0 {
		t.Error("last partial block not zero padded")
	}

	if _, err := src.Read(); err != io.EOF {
		t.Errorf("Read() after end = %v, want io.EOF", err)
	}
}

func TestWAVSourceStereoTakesFirstChannel(t *testing.T) {
	const blockSize = 32
	interleaved := make([]int, blockSize*2)
	for i := 0; i < blockSize; i++ {
		interleaved[2*i] = 1000 + i
		interleaved[2*i+1] = -7
	}
	path := writeTestWAV(t, testSampleRate, 16, 2, interleaved)

	src := NewWAVSource(path, false)
	if err := src.Open(testSampleRate, 1, blockSize); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	block, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range block {
		if int(s) != 1000+i {
			t.Fatalf("sample %d = %d, want %d", i, s, 1000+i)
		}
	}
}

func TestWAVSource24BitScaledTo16(t *testing.T) {
	const blockSize = 16
	samples := make([]int, blockSize)
	for i := range samples {
		samples[i] = (i - 8) << 12 // 24-bit values
	}
	path := writeTestWAV(t, testSampleRate, 24, 1, samples)

	src := NewWAVSource(path, false)
	if err := src.Open(testSampleRate, 1, blockSize); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	block, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range block {
		if want := int16((i - 8) << 4); s != want {
			t.Fatalf("sample %d = %d, want %d", i, s, want)
		}
	}
}

func TestWAVSourceLoops(t *testing.T) {
	const blockSize = 48
	samples := ramp(100) // not a multiple of the block size
	path := writeTestWAV(t, testSampleRate, 16, 1, samples)

	src := NewWAVSource(path, true)
	if err := src.Open(testSampleRate, 1, blockSize); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	pos := 0
	for b := 0; b < 10; b++ {
		block, err := src.Read()
		if err != nil {
			t.Fatalf("block %d: %v", b, err)
		}
		for i, s := range block {
			if want := samples[pos%len(samples)]; int(s) != want {
				t.Fatalf("block %d sample %d = %d, want %d", b, i, s, want)
			}
			pos++
		}
	}
}

func TestWAVSourceOpenErrors(t *testing.T) {
	valid := writeTestWAV(t, testSampleRate, 16, 1, ramp(256))
	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not a riff file at all"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		sampleRate float64
		channels   int
	}{
		{"Missing file", filepath.Join(t.TempDir(), "missing.wav"), testSampleRate, 1},
		{"Not a WAV file", garbage, testSampleRate, 1},
		{"Rate mismatch", valid, 48000, 1},
		{"Stereo requested", valid, testSampleRate, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewWAVSource(tt.path, false)
			err := src.Open(tt.sampleRate, tt.channels, 64)
			if !errors.Is(err, analysis.ErrDeviceFault) {
				t.Errorf("Open() error = %v, want device fault", err)
			}
			if analysis.FaultComponent(err) != "WAVSource" {
				t.Errorf("component = %q", analysis.FaultComponent(err))
			}
			if err := src.Close(); err != nil {
				t.Errorf("Close() after failed Open: %v", err)
			}
		})
	}
}

func TestProbeWAV(t *testing.T) {
	path := writeTestWAV(t, 22050, 16, 2, ramp(200))
	info, err := ProbeWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if info != (WAVInfo{SampleRate: 22050, Channels: 2, BitDepth: 16}) {
		t.Errorf("ProbeWAV() = %+v", info)
	}
}

func TestScaleTo16(t *testing.T) {
	tests := []struct {
		v, bitDepth int
		want        int16
	}{
		{128, 8, 0},
		{255, 8, 127 << 8},
		{0, 8, -32768},
		{-1234, 16, -1234},
		{1 << 20, 24, 1 << 12},
		{-(1 << 31), 32, -32768},
	}
	for _, tt := range tests {
		if got := scaleTo16(tt.v, tt.bitDepth); got != tt.want {
			t.Errorf("scaleTo16(%d, %d) = %d, want %d", tt.v, tt.bitDepth, got, tt.want)
		}
	}
}

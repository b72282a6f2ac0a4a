// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordingBitDepth = 16

var recorderLog = applog.For("Recorder")

// Recorder writes every captured block to a 16-bit mono WAV file. Write is
// a no-op while not recording.
type Recorder struct {
	sampleRate int
	blockSize  int

	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	frames      int64
}

// NewRecorder returns an idle Recorder for blocks of blockSize samples.
func NewRecorder(sampleRate float64, blockSize int) *Recorder {
	return &Recorder{sampleRate: int(sampleRate), blockSize: blockSize}
}

// RecordingName returns a timestamped file name inside dir.
func RecordingName(dir string, now time.Time) string {
	return filepath.Join(dir, "pitchscope-"+now.Format("20060102-150405")+".wav")
}

// Start creates filename (and its directory) and begins recording.
func (r *Recorder) Start(filename string) error {
	if atomic.LoadInt32(&r.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file

	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, recordingBitDepth, 1, 1)

	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, r.blockSize),
		SourceBitDepth: recordingBitDepth,
	}
	r.frames = 0

	atomic.StoreInt32(&r.isRecording, 1)
	recorderLog.Infof("Recording to %s", filename)
	return nil
}

// Write appends block to the recording.
func (r *Recorder) Write(block analysis.SampleBlock) error {
	if atomic.LoadInt32(&r.isRecording) == 0 || r.wavEncoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	for i, sample := range block {
		r.sampleBuf.Data[i] = int(sample)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.frames += int64(len(block))
	return nil
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool { return atomic.LoadInt32(&r.isRecording) == 1 }

// Frames returns the number of samples written since Start.
func (r *Recorder) Frames() int64 { return r.frames }

// Stop finalizes the WAV header and closes the file.
func (r *Recorder) Stop() error {
	if atomic.LoadInt32(&r.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&r.isRecording, 0)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}

	recorderLog.Infof("Recording stopped after %d samples", r.frames)
	return nil
}

// Close stops any recording in progress.
func (r *Recorder) Close() error { return r.Stop() }

// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	testSampleRate = 44100
	testBlockSize  = 1024
)

var testDevices = []*portaudio.DeviceInfo{
	{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{
		Name:                    "USB Microphone",
		MaxInputChannels:        1,
		DefaultSampleRate:       44100,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 20 * time.Millisecond,
	},
}

// mockPortAudio replaces every PortAudio entry point for the duration of the
// test and counts Initialize/Terminate pairs.
type mockPortAudio struct {
	initCalls, termCalls int
	initErr              error
	stream               *fakeStream
	openErr              error
	params               portaudio.StreamParameters
}

func installMockPortAudio(t *testing.T) *mockPortAudio {
	t.Helper()
	m := &mockPortAudio{stream: &fakeStream{}}

	origInit, origTerm := paLibInitialize, paLibTerminate
	origDevices, origDefault, origOpen := paLibDevicesFunc, paLibDefaultInputDeviceFunc, paOpenStream
	t.Cleanup(func() {
		paLibInitialize, paLibTerminate = origInit, origTerm
		paLibDevicesFunc, paLibDefaultInputDeviceFunc, paOpenStream = origDevices, origDefault, origOpen
	})

	paLibInitialize = func() error {
		m.initCalls++
		return m.initErr
	}
	paLibTerminate = func() error {
		m.termCalls++
		return nil
	}
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return testDevices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return testDevices[1], nil }
	paOpenStream = func(p portaudio.StreamParameters, buffer []int16) (stream, error) {
		m.params = p
		if m.openErr != nil {
			return nil, m.openErr
		}
		m.stream.buffer = buffer
		return m.stream, nil
	}
	return m
}

// fakeStream fills the buffer with a ramp on every Read and replays queued
// errors first.
type fakeStream struct {
	buffer  []int16
	readErr []error
	reads   int

	startErr, closeErr error
	started, closed    bool
}

func (s *fakeStream) Start() error {
	s.started = true
	return s.startErr
}

func (s *fakeStream) Read() error {
	s.reads++
	for i := range s.buffer {
		s.buffer[i] = int16(s.reads*100 + i%100)
	}
	if len(s.readErr) > 0 {
		err := s.readErr[0]
		s.readErr = s.readErr[1:]
		return err
	}
	return nil
}

func (s *fakeStream) Stop() error {
	s.started = false
	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return s.closeErr
}

var errMock = errors.New("mock error")

// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"

	"github.com/gordonklaus/portaudio"
)

const deviceComponent = "DeviceSource"

var deviceLog = applog.For(deviceComponent)

// stream is the subset of *portaudio.Stream a DeviceSource drives.
type stream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// paOpenStream opens a blocking stream that reads into buffer. Replaced in
// tests.
var paOpenStream = func(p portaudio.StreamParameters, buffer []int16) (stream, error) {
	s, err := portaudio.OpenStream(p, buffer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeviceSource captures mono blocks from a PortAudio input device using a
// blocking stream, so Read paces the loop at the device rate.
type DeviceSource struct {
	deviceID   int
	lowLatency bool

	buffer      []int16
	stream      stream
	initialized bool
	started     bool
	deviceName  string
}

// NewDeviceSource returns an unopened source for deviceID (-1 for the system
// default input).
func NewDeviceSource(deviceID int, lowLatency bool) *DeviceSource {
	return &DeviceSource{deviceID: deviceID, lowLatency: lowLatency}
}

// Open initializes PortAudio, opens and starts the input stream. On failure
// everything acquired so far is released before returning.
func (d *DeviceSource) Open(sampleRate float64, channels, blockSize int) error {
	if err := checkOpenArgs(deviceComponent, sampleRate, channels, blockSize); err != nil {
		return err
	}
	if d.stream != nil {
		return analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, nil, "already open")
	}

	if err := Initialize(); err != nil {
		return analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, err, "initialize")
	}
	d.initialized = true

	if err := d.openStream(sampleRate, blockSize); err != nil {
		d.Close()
		return err
	}
	return nil
}

func (d *DeviceSource) openStream(sampleRate float64, blockSize int) error {
	info, err := InputDevice(d.deviceID)
	if err != nil {
		return analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, err,
			fmt.Sprintf("input device %d", d.deviceID))
	}
	d.deviceName = info.Name

	var params portaudio.StreamParameters
	if d.lowLatency {
		params = portaudio.LowLatencyParameters(info, nil)
	} else {
		params = portaudio.HighLatencyParameters(info, nil)
	}
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = sampleRate
	params.FramesPerBuffer = blockSize

	d.buffer = make([]int16, blockSize)
	s, err := paOpenStream(params, d.buffer)
	if err != nil {
		return analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, err, "open stream")
	}
	d.stream = s

	if err := s.Start(); err != nil {
		return analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, err, "start stream")
	}
	d.started = true

	deviceLog.Infof("Capturing from [%d] %s at %.0f Hz, %d samples per block (latency %v)",
		d.deviceID, info.Name, sampleRate, blockSize, params.Input.Latency)
	return nil
}

// Read blocks until the device has delivered a full block. An input
// overflow still fills the buffer but is reported as analysis.ErrOverflow.
func (d *DeviceSource) Read() (analysis.SampleBlock, error) {
	if d.stream == nil {
		return nil, analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, nil, "read from a closed stream")
	}
	if err := d.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return nil, analysis.NewFault(deviceComponent, analysis.ErrOverflow, err, "")
		}
		return nil, analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, err, "read")
	}
	return d.buffer, nil
}

// Close stops and closes the stream and terminates PortAudio. Every step is
// attempted and all failures are reported together.
func (d *DeviceSource) Close() error {
	var errs []error

	if d.stream != nil {
		if d.started {
			if err := d.stream.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop stream: %w", err))
			}
			d.started = false
		}
		if err := d.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		d.stream = nil
	}

	if d.initialized {
		if err := Terminate(); err != nil {
			errs = append(errs, err)
		}
		d.initialized = false
	}

	if len(errs) > 0 {
		return analysis.NewFault(deviceComponent, analysis.ErrDeviceFault, errors.Join(errs...), "close")
	}
	return nil
}

// DeviceName returns the name of the opened input device.
func (d *DeviceSource) DeviceName() string { return d.deviceName }

// Name identifies the source in diagnostics.
func (d *DeviceSource) Name() string { return deviceComponent }

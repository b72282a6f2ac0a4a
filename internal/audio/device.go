// SPDX-License-Identifier: MIT
package audio

import (
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device describes one host audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
}

// Kind returns "Input", "Output" or "Input/Output".
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	}
	return "Unknown"
}

// CanCapture reports whether the device can feed a mono DeviceSource.
func (d Device) CanCapture() bool { return d.MaxInputChannels > 0 }

// HostDevices returns all host devices. PortAudio must be initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	return toDevices(infos), nil
}

// GetDevices initializes PortAudio, lists the host devices and terminates it
// again. It is meant for one-shot commands.
func GetDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	return HostDevices()
}

func toDevices(infos []*portaudio.DeviceInfo) []Device {
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowInputLatency:   info.DefaultLowInputLatency,
			HighInputLatency:  info.DefaultHighInputLatency,
		}
	}
	return devices
}

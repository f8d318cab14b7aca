package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

var (
	// ErrNoDevice means no input device was chosen.
	ErrNoDevice = errors.New("no input device selected")
	// ErrDeviceNotFound means the chosen index is outside the device list.
	ErrDeviceNotFound = errors.New("input device not found")
)

// Device is a capture-capable portaudio device. Index is the position in the
// list returned by ListInputDevices, not the host API index.
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64

	info *portaudio.DeviceInfo
}

// ListInputDevices enumerates devices with at least one input channel.
// portaudio must be initialized.
func ListInputDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	return inputDevices(infos), nil
}

func inputDevices(infos []*portaudio.DeviceInfo) []Device {
	var devs []Device
	for _, d := range infos {
		if d == nil || d.MaxInputChannels == 0 {
			continue
		}
		devs = append(devs, Device{
			Index:             len(devs),
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			info:              d,
		})
	}
	return devs
}

// SelectDevice picks devs[index].
func SelectDevice(devs []Device, index int) (Device, error) {
	if index < 0 {
		return Device{}, ErrNoDevice
	}
	if index >= len(devs) {
		return Device{}, fmt.Errorf("%w: index %d of %d", ErrDeviceNotFound, index, len(devs))
	}
	return devs[index], nil
}

// FormatDevices writes one "device: <index>, <name>" line per device.
func FormatDevices(w io.Writer, devs []Device) error {
	for _, d := range devs {
		if _, err := fmt.Fprintf(w, "device: %d, %s\n", d.Index, d.Name); err != nil {
			return err
		}
	}
	return nil
}

// WithPortaudio runs fn between portaudio.Initialize and Terminate.
func WithPortaudio(fn func() error) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()
	return fn()
}

package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// PortaudioSource captures mono float32 audio from one input device.
type PortaudioSource struct {
	stream      *portaudio.Stream
	audioBuffer []float32
	config      Config
	device      *Device
	sampleRate  float64
}

var _ Source = (*PortaudioSource)(nil)

// NewPortaudioSource captures from device, or from the host's default input
// when device is nil. A zero config.SampleRate means the device default.
func NewPortaudioSource(config Config, device *Device) *PortaudioSource {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = GetDefaultConfig().FramesPerBuffer
	}
	return &PortaudioSource{
		config:      config,
		device:      device,
		audioBuffer: make([]float32, config.FramesPerBuffer),
	}
}

func (p *PortaudioSource) Initialize() error {
	return portaudio.Initialize()
}

func (p *PortaudioSource) Terminate() {
	portaudio.Terminate()
}

func (p *PortaudioSource) Open() error {
	var info *portaudio.DeviceInfo
	if p.device != nil && p.device.info != nil {
		info = p.device.info
	} else {
		def, err := portaudio.DefaultInputDevice()
		if err != nil {
			return fmt.Errorf("failed to find default input device: %w", err)
		}
		info = def
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.FramesPerBuffer = p.config.FramesPerBuffer
	if p.config.SampleRate > 0 {
		params.SampleRate = p.config.SampleRate
	}

	stream, err := portaudio.OpenStream(params, p.audioBuffer)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", info.Name, err)
	}
	p.stream = stream
	p.sampleRate = params.SampleRate

	logrus.WithFields(logrus.Fields{
		"device":      info.Name,
		"sample_rate": p.sampleRate,
		"frames":      p.config.FramesPerBuffer,
	}).Info("Opened input stream")
	return nil
}

func (p *PortaudioSource) Close() error {
	if p.stream != nil {
		return p.stream.Close()
	}
	return nil
}

func (p *PortaudioSource) SampleRate() float64 {
	return p.sampleRate
}

func (p *PortaudioSource) StartCapture(ctx context.Context, buffers chan<- Buffer) error {
	if p.stream == nil {
		return ErrNotOpened
	}

	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	defer p.stream.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := p.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logrus.WithError(err).Debug("Input overflow")
				continue
			}
			return fmt.Errorf("failed to read audio: %w", err)
		}

		samples := make([]float32, len(p.audioBuffer))
		copy(samples, p.audioBuffer)

		if !send(ctx, buffers, Buffer{Samples: samples, SampleRate: p.sampleRate}) {
			return ctx.Err()
		}
	}
}

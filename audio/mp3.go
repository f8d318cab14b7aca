package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/sirupsen/logrus"
)

// MP3Source replays a file as if it were a live input. go-mp3 always
// decodes to 16-bit little-endian stereo, which is downmixed to mono.
type MP3Source struct {
	path   string
	config Config
	// Realtime paces buffers at the decoded sample rate.
	Realtime bool

	file       *os.File
	pcm        io.Reader
	sampleRate float64
}

var _ Source = (*MP3Source)(nil)

func NewMP3Source(path string, config Config) *MP3Source {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = GetDefaultConfig().FramesPerBuffer
	}
	return &MP3Source{path: path, config: config, Realtime: true}
}

func (m *MP3Source) Initialize() error { return nil }

func (m *MP3Source) Terminate() {}

func (m *MP3Source) Open() error {
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", m.path, err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode %s: %w", m.path, err)
	}
	m.file = f
	m.pcm = dec
	m.sampleRate = float64(dec.SampleRate())

	logrus.WithFields(logrus.Fields{
		"file":        m.path,
		"sample_rate": m.sampleRate,
		"bytes":       dec.Length(),
	}).Info("Opened mp3 source")
	return nil
}

func (m *MP3Source) Close() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *MP3Source) SampleRate() float64 { return m.sampleRate }

// StartCapture returns nil once the whole file has been delivered.
func (m *MP3Source) StartCapture(ctx context.Context, buffers chan<- Buffer) error {
	if m.pcm == nil {
		return ErrNotOpened
	}
	return streamPCM16Stereo(ctx, m.pcm, m.sampleRate, m.config.FramesPerBuffer, m.Realtime, buffers)
}

func streamPCM16Stereo(ctx context.Context, r io.Reader, sampleRate float64, frames int, realtime bool, buffers chan<- Buffer) error {
	const frameBytes = 4
	raw := make([]byte, frames*frameBytes)

	var tick <-chan time.Time
	if realtime {
		period := time.Duration(float64(time.Second) * float64(frames) / sampleRate)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		n, err := io.ReadFull(r, raw)
		if n >= frameBytes {
			buf := Buffer{Samples: stereo16ToMono(raw[:n-n%frameBytes]), SampleRate: sampleRate}
			if tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if !send(ctx, buffers, buf) {
				return ctx.Err()
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read pcm: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// stereo16ToMono averages interleaved little-endian int16 pairs into
// float32 samples in [-1, 1).
func stereo16ToMono(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		l := int16(binary.LittleEndian.Uint16(b[i*4:]))
		r := int16(binary.LittleEndian.Uint16(b[i*4+2:]))
		out[i] = (float32(l) + float32(r)) / 2 / 32768
	}
	return out
}

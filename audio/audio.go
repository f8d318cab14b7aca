package audio

import (
	"context"
	"errors"
)

// ErrNotOpened is returned by StartCapture before Open succeeded.
var ErrNotOpened = errors.New("stream not opened")

// Buffer is one block of mono samples as delivered by a source.
type Buffer struct {
	Samples    []float32
	SampleRate float64
}

// Source defines the interface for audio capture implementations
type Source interface {
	// Initialize initializes the audio system
	Initialize() error

	// Terminate terminates the audio system
	Terminate()

	// Open opens the stream with configured parameters
	Open() error

	// Close closes the stream
	Close() error

	// SampleRate reports the rate of the opened stream
	SampleRate() float64

	// StartCapture sends buffers to the provided channel until the context
	// is cancelled or the source runs dry. Buffers are dropped when the
	// channel is full. Each Buffer owns its Samples slice.
	StartCapture(ctx context.Context, buffers chan<- Buffer) error
}

// Config holds stream parameters shared by all sources.
type Config struct {
	SampleRate      float64
	FramesPerBuffer int
}

func GetDefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		FramesPerBuffer: 1024,
	}
}

// send delivers buf without blocking; it reports false when ctx is done.
func send(ctx context.Context, buffers chan<- Buffer, buf Buffer) bool {
	select {
	case buffers <- buf:
	case <-ctx.Done():
		return false
	default:
		// Drop audio if channel is full
	}
	return true
}

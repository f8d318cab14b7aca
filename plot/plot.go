// Package plot hands smoothed spectra from the processing loop to the
// renderers that draw them.
package plot

import (
	"context"
	"sync"
	"time"

	"github.com/d1nch8g/voicefem/spectrum"
)

// Renderer defines the interface for live spectrum displays
type Renderer interface {
	// Run draws frames taken from the mailbox until the context is cancelled
	Run(ctx context.Context, frames *Mailbox) error
}

// Frame is one snapshot ready to draw.
type Frame struct {
	Seq  uint64         `json:"seq"`
	At   time.Time      `json:"at"`
	Bins []spectrum.Bin `json:"bins"`
}

// Mailbox is a single-slot hand-off where the newest frame always wins.
// Put never blocks, so the audio path is never held up by a slow renderer.
type Mailbox struct {
	mu     sync.RWMutex
	frame  Frame
	notify chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Put stores bins as the latest frame. The caller must not modify bins
// afterwards.
func (m *Mailbox) Put(bins []spectrum.Bin) {
	m.mu.Lock()
	m.frame = Frame{Seq: m.frame.Seq + 1, At: time.Now(), Bins: bins}
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Latest returns the newest frame, and false if nothing was put yet.
func (m *Mailbox) Latest() (Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame, m.frame.Seq > 0
}

// Notify is signalled after Put. Several puts may collapse into one signal.
func (m *Mailbox) Notify() <-chan struct{} {
	return m.notify
}

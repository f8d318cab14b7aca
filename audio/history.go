package audio

// History keeps the most recent samples of a stream so a fixed-size
// analysis window can be taken after every buffer, however small the
// buffers are.
type History struct {
	size    int
	samples []float32
}

func NewHistory(size int) *History {
	if size < 0 {
		size = 0
	}
	return &History{size: size, samples: make([]float32, 0, 2*size)}
}

// Push appends samples, discarding the oldest beyond the history size.
func (h *History) Push(samples []float32) {
	if len(samples) >= h.size {
		h.samples = append(h.samples[:0], samples[len(samples)-h.size:]...)
		return
	}
	if over := len(h.samples) + len(samples) - h.size; over > 0 {
		h.samples = append(h.samples[:0], h.samples[over:]...)
	}
	h.samples = append(h.samples, samples...)
}

// Ready reports whether a full window is available.
func (h *History) Ready() bool { return len(h.samples) == h.size }

// Len returns the number of samples held.
func (h *History) Len() int { return len(h.samples) }

// Samples returns the held samples, oldest first. The slice is only valid
// until the next Push.
func (h *History) Samples() []float32 { return h.samples }

// Reset drops all samples.
func (h *History) Reset() { h.samples = h.samples[:0] }

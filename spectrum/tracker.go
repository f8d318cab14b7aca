package spectrum

const (
	// DefaultGain scales fresh FFT amplitudes up to plot range.
	DefaultGain = 5000.0
	// DefaultDecay is the share of the previous peak retained per update.
	DefaultDecay = 0.84
)

// Bin is one (frequency, amplitude) point of a spectrum.
type Bin struct {
	Frequency float64 `json:"f"`
	Amplitude float64 `json:"a"`
}

// TrackerOption mutates a Tracker's gain and decay.
type TrackerOption func(*Tracker)

// WithGain sets the factor applied to incoming amplitudes.
func WithGain(gain float64) TrackerOption {
	return func(t *Tracker) {
		if gain >= 0 {
			t.gain = gain
		}
	}
}

// WithDecay sets the factor applied to the held amplitude on every update.
// Values outside [0, 1] are ignored.
func WithDecay(decay float64) TrackerOption {
	return func(t *Tracker) {
		if decay >= 0 && decay <= 1 {
			t.decay = decay
		}
	}
}

// Tracker is a peak-hold filter with exponential decay. Each bin keeps the
// larger of its boosted input and its decayed previous value, which turns a
// flickering per-frame spectrum into falling peaks.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	state []Bin
	gain  float64
	decay float64
}

// NewTracker returns a tracker holding length bins at (0, 0).
func NewTracker(length int, opts ...TrackerOption) *Tracker {
	if length < 0 {
		length = 0
	}
	t := &Tracker{
		state: make([]Bin, length),
		gain:  DefaultGain,
		decay: DefaultDecay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Len returns the fixed number of bins.
func (t *Tracker) Len() int { return len(t.state) }

// Gain returns the configured gain factor.
func (t *Tracker) Gain() float64 { return t.gain }

// Decay returns the configured decay factor.
func (t *Tracker) Decay() float64 { return t.decay }

// Update folds input into the held state and returns a copy of it.
//
// Input and state are walked pairwise: when input is shorter only the
// overlapping prefix changes, and when it is longer the excess is ignored.
// Frequencies are always taken from input.
func (t *Tracker) Update(input []Bin) []Bin {
	n := min(len(input), len(t.state))
	for i := 0; i < n; i++ {
		s := &t.state[i]
		s.Frequency = input[i].Frequency

		decayed := s.Amplitude * t.decay
		boosted := input[i].Amplitude * t.gain
		// NaN fails the comparison and keeps the decayed value.
		if boosted > decayed {
			s.Amplitude = boosted
		} else {
			s.Amplitude = decayed
		}
	}
	return t.Snapshot()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() []Bin {
	out := make([]Bin, len(t.state))
	copy(out, t.state)
	return out
}

// Reset zeroes every bin.
func (t *Tracker) Reset() {
	for i := range t.state {
		t.state[i] = Bin{}
	}
}

package spectrum

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func amplitudes(bins []Bin) []float64 {
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = b.Amplitude
	}
	return out
}

func TestNewTrackerZeroed(t *testing.T) {
	tr := NewTracker(5)
	require.Equal(t, 5, tr.Len())
	assert.Equal(t, DefaultGain, tr.Gain())
	assert.Equal(t, DefaultDecay, tr.Decay())
	for _, b := range tr.Snapshot() {
		assert.Equal(t, Bin{}, b)
	}
}

func TestNewTrackerNegativeLength(t *testing.T) {
	tr := NewTracker(-3)
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Update([]Bin{{Frequency: 1, Amplitude: 1}}))
}

func TestTrackerOptions(t *testing.T) {
	tr := NewTracker(1, WithGain(10), WithDecay(0.5), nil)
	assert.Equal(t, 10.0, tr.Gain())
	assert.Equal(t, 0.5, tr.Decay())

	// Out-of-range values leave the defaults in place.
	tr = NewTracker(1, WithGain(-1), WithDecay(1.5))
	assert.Equal(t, DefaultGain, tr.Gain())
	assert.Equal(t, DefaultDecay, tr.Decay())
}

func TestTrackerZeroInputStaysZero(t *testing.T) {
	tr := NewTracker(8)
	in := make([]Bin, 8)
	for i := range in {
		in[i].Frequency = float64(i) * 10
	}
	out := tr.Update(in)
	require.Len(t, out, 8)
	for i, b := range out {
		assert.Equal(t, 0.0, b.Amplitude, "bin %d", i)
	}
}

func TestTrackerScenario(t *testing.T) {
	tr := NewTracker(3, WithGain(5000), WithDecay(0.84))

	out := tr.Update([]Bin{{100, 0.001}, {200, 0.002}, {300, 0}})
	want := []Bin{{100, 5}, {200, 10}, {300, 0}}
	require.Len(t, out, 3)
	for i := range want {
		assert.Equal(t, want[i].Frequency, out[i].Frequency)
		assert.InDelta(t, want[i].Amplitude, out[i].Amplitude, eps)
	}

	out = tr.Update([]Bin{{100, 0}, {200, 0}, {300, 0}})
	want = []Bin{{100, 4.2}, {200, 8.4}, {300, 0}}
	for i := range want {
		assert.Equal(t, want[i].Frequency, out[i].Frequency)
		assert.InDelta(t, want[i].Amplitude, out[i].Amplitude, eps)
	}
}

func TestTrackerPeakHoldDecayLaw(t *testing.T) {
	const a = 0.003
	tr := NewTracker(1)
	peak := a * DefaultGain

	seq := []float64{a, 0, 0, 0}
	for step, amp := range seq {
		out := tr.Update([]Bin{{Frequency: 440, Amplitude: amp}})
		want := peak * math.Pow(DefaultDecay, float64(step))
		assert.InDelta(t, want, out[0].Amplitude, eps, "step %d", step+1)
	}
}

func TestTrackerDecayIsMonotonic(t *testing.T) {
	tr := NewTracker(4)
	tr.Update([]Bin{{1, 0.01}, {2, 0.02}, {3, 0.03}, {4, 0.04}})
	prev := amplitudes(tr.Snapshot())
	start := append([]float64(nil), prev...)

	zero := []Bin{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	for n := 1; n <= 50; n++ {
		cur := amplitudes(tr.Update(zero))
		for i := range cur {
			require.LessOrEqual(t, cur[i], prev[i])
			require.InDelta(t, start[i]*math.Pow(DefaultDecay, float64(n)), cur[i], eps)
		}
		prev = cur
	}
}

func TestTrackerNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := NewTracker(32)
	in := make([]Bin, 32)
	for round := 0; round < 100; round++ {
		for i := range in {
			in[i] = Bin{Frequency: float64(i), Amplitude: rng.Float64() * 0.01}
		}
		for i, b := range tr.Update(in) {
			require.GreaterOrEqual(t, b.Amplitude, 0.0, "round %d bin %d", round, i)
		}
	}
}

func TestTrackerNaNKeepsHeldValue(t *testing.T) {
	tr := NewTracker(1)
	tr.Update([]Bin{{100, 0.001}})
	out := tr.Update([]Bin{{100, math.NaN()}})
	assert.InDelta(t, 5*DefaultDecay, out[0].Amplitude, eps)
}

func TestTrackerShortInputTruncates(t *testing.T) {
	tr := NewTracker(4)
	tr.Update([]Bin{{10, 0.001}, {20, 0.001}, {30, 0.001}, {40, 0.001}})
	before := tr.Snapshot()

	out := tr.Update([]Bin{{11, 0.01}, {21, 0}})
	require.Len(t, out, 4)

	assert.Equal(t, 11.0, out[0].Frequency)
	assert.InDelta(t, 50.0, out[0].Amplitude, eps)
	assert.Equal(t, 21.0, out[1].Frequency)
	assert.InDelta(t, before[1].Amplitude*DefaultDecay, out[1].Amplitude, eps)

	assert.Equal(t, before[2], out[2])
	assert.Equal(t, before[3], out[3])
}

func TestTrackerLongInputIgnoresExcess(t *testing.T) {
	tr := NewTracker(2)
	out := tr.Update([]Bin{{1, 0.001}, {2, 0.001}, {3, 1}, {4, 1}})
	require.Len(t, out, 2)
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 2.0, out[1].Frequency)
}

func TestTrackerFrequencyPassthrough(t *testing.T) {
	tr := NewTracker(3)
	tr.Update([]Bin{{100, 0.5}, {200, 0.5}, {300, 0.5}})
	out := tr.Update([]Bin{{101, 0}, {202, 0}, {303, 0}})
	assert.Equal(t, []float64{101, 202, 303}, []float64{out[0].Frequency, out[1].Frequency, out[2].Frequency})
}

func TestTrackerSnapshotIsIndependent(t *testing.T) {
	tr := NewTracker(2)
	first := tr.Update([]Bin{{1, 0.001}, {2, 0.002}})
	held := append([]Bin(nil), first...)

	tr.Update([]Bin{{1, 0.1}, {2, 0.1}})
	assert.Equal(t, held, first)

	first[0].Amplitude = -1
	assert.NotEqual(t, -1.0, tr.Snapshot()[0].Amplitude)
}

func TestTrackerDeterministic(t *testing.T) {
	in := [][]Bin{
		{{1, 0.002}, {2, 0.0001}},
		{{1, 0}, {2, 0.004}},
		{{1, 0.001}, {2, 0}},
	}
	a, b := NewTracker(2), NewTracker(2)
	for _, frame := range in {
		assert.Equal(t, a.Update(frame), b.Update(frame))
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(2)
	tr.Update([]Bin{{1, 1}, {2, 1}})
	tr.Reset()
	assert.Equal(t, []Bin{{}, {}}, tr.Snapshot())
}

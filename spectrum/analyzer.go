package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrShortBuffer is returned by Analyze when fewer than Size samples are given.
var ErrShortBuffer = errors.New("spectrum: buffer shorter than analysis size")

// Scaling selects the divisor applied to FFT magnitudes.
type Scaling int

const (
	ScaleNone Scaling = iota
	ScaleN
	ScaleSqrtN
)

func (s Scaling) String() string {
	switch s {
	case ScaleNone:
		return "none"
	case ScaleN:
		return "n"
	case ScaleSqrtN:
		return "sqrt-n"
	default:
		return fmt.Sprintf("Scaling(%d)", int(s))
	}
}

// ParseScaling maps a config string to a Scaling.
func ParseScaling(s string) (Scaling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return ScaleNone, nil
	case "n":
		return ScaleN, nil
	case "sqrt-n", "sqrtn":
		return ScaleSqrtN, nil
	default:
		return ScaleNone, fmt.Errorf("unknown scaling %q", s)
	}
}

func (s Scaling) divisor(n int) float64 {
	switch s {
	case ScaleN:
		return float64(n)
	case ScaleSqrtN:
		return math.Sqrt(float64(n))
	default:
		return 1
	}
}

// AnalyzerConfig describes one analysis window.
type AnalyzerConfig struct {
	Size         int
	SampleRate   float64
	MinFrequency float64
	MaxFrequency float64
	Scaling      Scaling
}

// DefaultAnalyzerConfig returns a 2048-point window over 165..255 Hz.
// SampleRate is left to the caller.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Size:         2048,
		MinFrequency: 165,
		MaxFrequency: 255,
		Scaling:      ScaleSqrtN,
	}
}

// Analyzer computes a Hann-windowed magnitude spectrum restricted to a
// frequency range. Buffers are reused between calls, so an Analyzer must not
// be shared between goroutines.
type Analyzer struct {
	cfg     AnalyzerConfig
	fft     *fourier.FFT
	window  []float64
	in      []float64
	coeffs  []complex128
	first   int
	last    int
	divisor float64
}

// NewAnalyzer validates cfg and precomputes the window and the bin range.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.Size < 2 {
		return nil, fmt.Errorf("analysis size must be >= 2: %d", cfg.Size)
	}
	if !(cfg.SampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be > 0: %f", cfg.SampleRate)
	}
	if cfg.MinFrequency < 0 || cfg.MaxFrequency < 0 {
		return nil, fmt.Errorf("frequency range must be non-negative: %f..%f", cfg.MinFrequency, cfg.MaxFrequency)
	}
	if cfg.MinFrequency > cfg.MaxFrequency {
		return nil, fmt.Errorf("min frequency %f above max frequency %f", cfg.MinFrequency, cfg.MaxFrequency)
	}

	a := &Analyzer{
		cfg:     cfg,
		fft:     fourier.NewFFT(cfg.Size),
		in:      make([]float64, cfg.Size),
		coeffs:  make([]complex128, cfg.Size/2+1),
		first:   -1,
		divisor: cfg.Scaling.divisor(cfg.Size),
	}

	// Periodic Hann: the first Size points of a symmetric window one longer.
	hann := make([]float64, cfg.Size+1)
	for i := range hann {
		hann[i] = 1
	}
	a.window = window.Hann(hann)[:cfg.Size]

	for k := range a.coeffs {
		f := a.frequency(k)
		if f < cfg.MinFrequency || f > cfg.MaxFrequency {
			continue
		}
		if a.first < 0 {
			a.first = k
		}
		a.last = k
	}
	if a.first < 0 {
		return nil, fmt.Errorf("no FFT bin between %.1f Hz and %.1f Hz at %d points and %.0f Hz",
			cfg.MinFrequency, cfg.MaxFrequency, cfg.Size, cfg.SampleRate)
	}

	return a, nil
}

func (a *Analyzer) frequency(k int) float64 {
	return a.fft.Freq(k) * a.cfg.SampleRate
}

// Size returns the number of samples consumed per analysis.
func (a *Analyzer) Size() int { return a.cfg.Size }

// SampleRate returns the sample rate the bin frequencies are computed for.
func (a *Analyzer) SampleRate() float64 { return a.cfg.SampleRate }

// BinCount returns the number of bins Analyze emits.
func (a *Analyzer) BinCount() int { return a.last - a.first + 1 }

// Analyze windows the most recent Size samples, runs the FFT, and returns the
// bins inside the configured range in ascending frequency order.
func (a *Analyzer) Analyze(samples []float32) ([]Bin, error) {
	if len(samples) < a.cfg.Size {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrShortBuffer, len(samples), a.cfg.Size)
	}

	recent := samples[len(samples)-a.cfg.Size:]
	for i, s := range recent {
		a.in[i] = float64(s) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.in)

	out := make([]Bin, 0, a.BinCount())
	for k := a.first; k <= a.last; k++ {
		out = append(out, Bin{
			Frequency: a.frequency(k),
			Amplitude: cmplx.Abs(a.coeffs[k]) / a.divisor,
		})
	}
	return out, nil
}

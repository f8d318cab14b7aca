// Package spectrum turns sample windows into frequency/amplitude bins and
// smooths them for display.
//
// The FFT and the Hann window come from gonum. This package only picks the
// bins of interest, scales them, and holds peaks across frames.
package spectrum

// SPDX-License-Identifier: MIT
/*
Package dsp holds the offline band-pass filter used for recorder playback.

The filter is a windowed-sinc FIR: two Blackman-windowed low-pass kernels are
designed and subtracted, leaving the band between the two cutoffs. Designing
and applying the filter both run off the audio thread.
*/
package dsp

import "math"

// DesignLowPass returns taps+1 Blackman-windowed sinc coefficients for a
// low-pass filter at cutoffHz. The kernel is symmetric about taps/2.
// A non-positive taps value yields the single centre coefficient 2fc.
func DesignLowPass(cutoffHz, sampleRate float64, taps int) []float64 {
	fc := cutoffHz / sampleRate
	if taps <= 0 {
		return []float64{2 * fc}
	}

	wc := 2 * math.Pi * fc
	order := float64(taps)
	h := make([]float64, taps+1)

	for n := range h {
		n1 := float64(n) - order/2
		sinc := 1.0
		if n1 != 0 {
			sinc = math.Sin(wc*n1) / (wc * n1)
		}
		blackman := 0.42 +
			0.5*math.Cos(2*math.Pi*n1/order) +
			0.08*math.Cos(4*math.Pi*n1/order)
		h[n] = 2 * fc * sinc * blackman
	}

	return h
}

// DesignBandPass returns taps+1 coefficients passing lowHz..highHz, built as
// lowPass(highHz) - lowPass(lowHz). Callers are expected to pass lowHz < highHz.
func DesignBandPass(lowHz, highHz, sampleRate float64, taps int) []float64 {
	h := DesignLowPass(highHz, sampleRate, taps)
	low := DesignLowPass(lowHz, sampleRate, taps)
	for i := range h {
		h[i] -= low[i]
	}
	return h
}

// SPDX-License-Identifier: MIT
package dsp

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"seedscope/pkg/utils"
)

func TestDesignBandPassSymmetry(t *testing.T) {
	tests := []struct {
		name      string
		low, high float64
		rate      float64
		taps      int
	}{
		{"Full Band", 20, 20000, 48000, 100},
		{"Voice", 300, 3400, 44100, 64},
		{"Odd Taps", 100, 5000, 48000, 33},
		{"Long", 40, 12000, 96000, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := DesignBandPass(tt.low, tt.high, tt.rate, tt.taps)
			require.Len(t, h, tt.taps+1)
			for n := range h {
				assert.InDelta(t, h[n], h[tt.taps-n], 1e-12, "h[%d] != h[%d]", n, tt.taps-n)
			}
		})
	}
}

func TestDesignLowPassUnityDCGain(t *testing.T) {
	h := DesignLowPass(4800, 48000, 100)
	assert.InDelta(t, 1.0, floats.Sum(h), 1e-3)
}

func TestDesignDegenerateTaps(t *testing.T) {
	for _, taps := range []int{0, -5} {
		h := DesignLowPass(12000, 48000, taps)
		require.Len(t, h, 1)
		assert.InDelta(t, 0.5, h[0], 1e-12)

		bp := DesignBandPass(6000, 12000, 48000, taps)
		require.Len(t, bp, 1)
		assert.InDelta(t, 0.25, bp[0], 1e-12)
	}
}

func TestBandPassPassesInBandSine(t *testing.T) {
	const rate = 48000
	h := DesignBandPass(20, 20000, rate, 100)

	// One second of a 1 kHz tone, measured over its full length.
	sine := utils.GenerateSineWave(rate, rate, 1000, 0.5)
	l, r, err := Apply(context.Background(), h, sine, sine)
	require.NoError(t, err)
	require.Len(t, l, rate)

	in := utils.RMS(sine, 0, len(sine))
	assert.InEpsilon(t, in, utils.RMS(l, 0, len(l)), 0.01)
	assert.InEpsilon(t, in, utils.RMS(r, 0, len(r)), 0.01)
}

func TestBandPassRejectsOutOfBandSine(t *testing.T) {
	const rate = 48000
	h := DesignBandPass(2000, 8000, rate, 100)

	low := utils.GenerateSineWave(rate/10, rate, 100, 0.5)
	mid := utils.GenerateSineWave(rate/10, rate, 4000, 0.5)
	lowOut, midOut, err := Apply(context.Background(), h, low, mid)
	require.NoError(t, err)

	assert.Less(t, utils.RMS(lowOut, 200, len(lowOut))/utils.RMS(low, 200, len(low)), 0.01)
	assert.InEpsilon(t, 1.0, utils.RMS(midOut, 200, len(midOut))/utils.RMS(mid, 200, len(mid)), 0.01)
}

func BenchmarkDesignBandPass(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		DesignBandPass(20, 20000, 48000, 100)
	}
}

func TestDesignBandPassIsFinite(t *testing.T) {
	h := DesignBandPass(20, 20000, 48000, 1000)
	for i, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("h[%d] = %v", i, v)
		}
	}
}

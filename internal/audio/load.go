// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// LoadMeter tracks how much of the real-time budget the callback uses.
// Push is called from the audio thread only; Ratio may be read from anywhere.
type LoadMeter struct {
	sampleRate   float64
	totalSamples int
	totalSeconds float64
	ratio        atomic.Uint64 // float64 bits
}

// Push accounts one block. Once more than a second of audio has been
// accounted, the ratio of processing time to audio time is published and
// the totals restart. A sample-rate change discards the partial totals.
func (m *LoadMeter) Push(sampleRate float64, numSamples int, elapsed time.Duration) {
	if sampleRate <= 0 {
		return
	}
	if m.sampleRate != sampleRate {
		m.totalSamples = 0
		m.totalSeconds = 0
	}
	m.sampleRate = sampleRate
	m.totalSamples += numSamples
	m.totalSeconds += elapsed.Seconds()

	if float64(m.totalSamples) > sampleRate {
		ratio := m.totalSeconds / (float64(m.totalSamples) / sampleRate)
		m.ratio.Store(math.Float64bits(ratio))
		m.totalSamples = 0
		m.totalSeconds = 0
	}
}

// Ratio returns the last published load; 1.0 means the callback used its
// whole time budget.
func (m *LoadMeter) Ratio() float64 {
	return math.Float64frombits(m.ratio.Load())
}

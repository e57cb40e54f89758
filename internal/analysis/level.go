// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// Level is a peak and RMS reading for one channel.
type Level struct {
	PeakDB     float64 // 20*log10(max|x|), floored at DefaultMinDB
	RMS        float64
	Normalized float64 // PeakDB mapped from [-100, 0] dB to [0, 1]
}

// Overload reports whether the peak exceeded full scale.
func (l Level) Overload() bool {
	return l.PeakDB > 0
}

// PeakDB returns the peak level of samples in dB, floored at DefaultMinDB.
func PeakDB(samples []float32) float64 {
	var peak float32
	for _, s := range samples {
		peak = max(peak, abs32(s))
	}
	return gainToDB(float64(peak))
}

// calculateRMS returns the root mean square of samples.
func calculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	var sumSquare float64
	for _, s := range samples {
		v := float64(s)
		sumSquare += v * v
	}

	return math.Sqrt(sumSquare / float64(len(samples)))
}

// Measure returns the level of one channel.
func Measure(samples []float32) Level {
	db := PeakDB(samples)
	return Level{
		PeakDB:     db,
		RMS:        calculateRMS(samples),
		Normalized: min(max((db-DefaultMinDB)/(DefaultMaxDB-DefaultMinDB), 0), 1),
	}
}

// MeasureStereo returns the levels of both channels.
func MeasureStereo(left, right []float32) (Level, Level) {
	return Measure(left), Measure(right)
}

// FormatDB renders a peak level the way the status readout shows it.
func FormatDB(db float64) string {
	if db <= DefaultMinDB {
		return "-Inf dB"
	}
	return fmt.Sprintf("%.1f dB", db)
}

func gainToDB(gain float64) float64 {
	if gain <= 0 {
		return DefaultMinDB
	}
	return max(20*math.Log10(gain), DefaultMinDB)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

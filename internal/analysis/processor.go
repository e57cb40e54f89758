// SPDX-License-Identifier: MIT
package analysis

import "time"

const (
	KindSpectrum = "spectrum"
	KindLevel    = "level"
)

// Frame is one analysis result as published by a Monitor.
type Frame struct {
	Kind       string    `json:"kind"`
	Seq        uint32    `json:"seq"`
	Time       time.Time `json:"time"`
	SampleRate float64   `json:"sample_rate"`
	Levels     []float64 `json:"levels"`
	PeakL      float64   `json:"peak_l"` // dB
	PeakR      float64   `json:"peak_r"` // dB
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	f.Levels = append([]float64(nil), f.Levels...)
	return f
}

// Overload reports whether either channel peaked above full scale.
func (f Frame) Overload() bool {
	return f.PeakL > 0 || f.PeakR > 0
}

// FrameSource produces frames from a broadcaster consumer. Implementations
// are polled from a single goroutine.
type FrameSource interface {
	// Kind names the frames this source produces.
	Kind() string
	// Filled signals that a new snapshot may be available.
	Filled() <-chan struct{}
	// Next fills f from the latest snapshot and reports whether it did.
	// f.Levels is reused when its capacity allows.
	Next(f *Frame) bool
	// Close releases the underlying registration.
	Close() error
}

// Sender is the outbound side of a Monitor; transport.Transport satisfies it.
type Sender interface {
	Send(data any) error
}

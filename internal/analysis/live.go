// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"seedscope/internal/broadcast"
)

// LiveAnalyser computes spectrum frames from the live stream.
type LiveAnalyser struct {
	reg   *broadcast.Registration
	est   *Estimator
	left  []float32
	right []float32
	peakL float64
	peakR float64
}

var _ FrameSource = (*LiveAnalyser)(nil)

// NewLiveAnalyser registers a consumer of windowSize samples on b.
func NewLiveAnalyser(b *broadcast.Broadcaster, windowSize int, opts Options) (*LiveAnalyser, error) {
	est, err := NewEstimator(windowSize, opts)
	if err != nil {
		return nil, err
	}
	reg, err := b.Register(windowSize)
	if err != nil {
		return nil, fmt.Errorf("register spectrum consumer: %w", err)
	}
	return &LiveAnalyser{
		reg:   reg,
		est:   est,
		left:  make([]float32, windowSize),
		right: make([]float32, windowSize),
	}, nil
}

func (a *LiveAnalyser) Kind() string { return KindSpectrum }

func (a *LiveAnalyser) Filled() <-chan struct{} { return a.reg.Filled() }

// Estimator exposes the underlying estimator, mainly for its frequency axis.
func (a *LiveAnalyser) Estimator() *Estimator { return a.est }

// Spectrum takes the pending snapshot and returns the estimator's scope
// buffer, valid until the next call. ok is false when no snapshot was
// ready. A silent snapshot yields an all-zero scope without running the
// transform.
func (a *LiveAnalyser) Spectrum() (levels []float64, sampleRate float64, ok bool) {
	if !a.reg.Take(a.left, a.right) {
		return nil, 0, false
	}
	// Peaks are read before AverageInto folds the channels together.
	a.peakL = PeakDB(a.left)
	a.peakR = PeakDB(a.right)
	sampleRate = a.reg.SampleRate()

	if !AverageInto(a.left, a.right) {
		clear(a.est.scope)
		return a.est.scope, sampleRate, true
	}
	return a.est.Estimate(a.left, sampleRate), sampleRate, true
}

func (a *LiveAnalyser) Next(f *Frame) bool {
	levels, rate, ok := a.Spectrum()
	if !ok {
		return false
	}
	f.Kind = KindSpectrum
	f.SampleRate = rate
	f.PeakL = a.peakL
	f.PeakR = a.peakR
	f.Levels = append(f.Levels[:0], levels...)
	return true
}

func (a *LiveAnalyser) Close() error {
	return a.reg.Close()
}

// LevelMeter computes per-channel peak levels from the live stream.
type LevelMeter struct {
	reg   *broadcast.Registration
	left  []float32
	right []float32
}

var _ FrameSource = (*LevelMeter)(nil)

// NewLevelMeter registers a consumer of windowSize samples on b.
func NewLevelMeter(b *broadcast.Broadcaster, windowSize int) (*LevelMeter, error) {
	reg, err := b.Register(windowSize)
	if err != nil {
		return nil, fmt.Errorf("register level consumer: %w", err)
	}
	return &LevelMeter{
		reg:   reg,
		left:  make([]float32, windowSize),
		right: make([]float32, windowSize),
	}, nil
}

func (m *LevelMeter) Kind() string { return KindLevel }

func (m *LevelMeter) Filled() <-chan struct{} { return m.reg.Filled() }

// Next sets f.Levels to the normalized left and right peaks.
func (m *LevelMeter) Next(f *Frame) bool {
	if !m.reg.Take(m.left, m.right) {
		return false
	}
	l, r := MeasureStereo(m.left, m.right)
	f.Kind = KindLevel
	f.SampleRate = m.reg.SampleRate()
	f.PeakL = l.PeakDB
	f.PeakR = r.PeakDB
	f.Levels = append(f.Levels[:0], l.Normalized, r.Normalized)
	return true
}

func (m *LevelMeter) Close() error {
	return m.reg.Close()
}

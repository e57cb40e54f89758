// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"testing"

	"seedscope/internal/broadcast"
	"seedscope/internal/config"
	"seedscope/internal/recorder"
	"seedscope/pkg/utils"
)

func newTestEngine(t testing.TB) (*Engine, *recorder.Recorder, *broadcast.Broadcaster) {
	t.Helper()
	cfg := config.Default()
	rec := recorder.New(recorder.NumEntries, 4096)
	b := broadcast.New(broadcast.DefaultCapacity)
	return newEngine(cfg, rec, b), rec, b
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func TestGateEnable(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.DisableGate()

	if engine.GateEnabled() {
		t.Error("Gate should be disabled initially")
	}

	engine.EnableGate()
	if !engine.GateEnabled() {
		t.Error("Gate should be enabled after EnableGate()")
	}

	engine.DisableGate()
	if engine.GateEnabled() {
		t.Error("Gate should be disabled after DisableGate()")
	}

	engine.EnableGate()
	engine.EnableGate() // Multiple calls should be idempotent
	if !engine.GateEnabled() {
		t.Error("Gate should remain enabled after multiple EnableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	engine, _, _ := newTestEngine(t)

	for _, tt := range tests {
		t.Run(formatFloat(tt.input), func(t *testing.T) {
			engine.SetGateThreshold(tt.input)
			got := engine.GetGateThreshold()

			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("Gate threshold: got %.4f, want %.4f", got, tt.expected)
			}
		})
	}
}

func TestGateDetection(t *testing.T) {
	quiet := utils.GenerateSineWave(256, 48000, 440, 0.0005)
	loud := utils.GenerateSineWave(256, 48000, 440, 0.8)

	tests := []struct {
		desc        string
		buffer      []float32
		gateEnabled bool
		threshold   float64
		passes      bool
	}{
		{"Gate disabled/Quiet signal", quiet, false, 0.1, true},
		{"Gate disabled/Loud signal", loud, false, 0.1, true},
		{"Gate enabled/Quiet signal/Low threshold", quiet, true, 0.0001, true},
		{"Gate enabled/Quiet signal/Mid threshold", quiet, true, 0.1, false},
		{"Gate enabled/Loud signal/Mid threshold", loud, true, 0.1, true},
		{"Gate enabled/Loud signal/High threshold", loud, true, 0.999, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			engine, _, _ := newTestEngine(t)
			if tt.gateEnabled {
				engine.EnableGate()
			} else {
				engine.DisableGate()
			}
			engine.SetGateThreshold(tt.threshold)

			left := append([]float32(nil), tt.buffer...)
			right := append([]float32(nil), tt.buffer...)
			engine.processBlock(left, right)

			passed := utils.RMS(left, 0, len(left)) > 0
			if passed != tt.passes {
				t.Errorf("gate passed = %v, want %v (peak %.4f, threshold %.4f)",
					passed, tt.passes, blockPeak(tt.buffer, tt.buffer), tt.threshold)
			}
		})
	}
}

func TestBlockPeak(t *testing.T) {
	if got := blockPeak([]float32{0.1, -0.7}, []float32{0.3, 0.5}); got != 0.7 {
		t.Errorf("blockPeak() = %v, want 0.7", got)
	}
	if got := blockPeak(nil, nil); got != 0 {
		t.Errorf("blockPeak(empty) = %v, want 0", got)
	}
}

func BenchmarkGateThresholdConversion(b *testing.B) {
	engine, _, _ := newTestEngine(b)
	values := []float64{0.0, 0.25, 0.5, 0.75, 1.0}

	for _, v := range values {
		b.Run(formatFloat(v), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				engine.SetGateThreshold(v)
				_ = engine.GetGateThreshold()
			}
		})
	}
}

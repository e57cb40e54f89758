// SPDX-License-Identifier: MIT
package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedscope/internal/recorder"
	"seedscope/pkg/utils"
)

func TestProcessStreamCopiesInput(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.DisableGate()

	in := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	out := [][]float32{make([]float32, 2), make([]float32, 2)}
	engine.processStream(in, out)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])

	mono := [][]float32{{0.5, -0.5}}
	engine.processStream(mono, out)
	assert.Equal(t, mono[0], out[0])
	assert.Equal(t, mono[0], out[1], "mono input should be duplicated")

	out[0][0], out[1][0] = 1, 1
	engine.processStream(nil, out)
	assert.Equal(t, []float32{0, 0}, out[0])
	assert.Equal(t, []float32{0, 0}, out[1])
}

func TestProcessBlockFeedsRecorderAndBroadcaster(t *testing.T) {
	engine, rec, b := newTestEngine(t)
	engine.DisableGate()

	reg, err := b.Register(512)
	require.NoError(t, err)
	defer reg.Close()

	rec.Record()
	require.Equal(t, recorder.Recording, rec.Mode())

	block := utils.GenerateSineWave(256, 48000, 440, 0.5)
	for range 2 {
		left := append([]float32(nil), block...)
		right := append([]float32(nil), block...)
		engine.processBlock(left, right)
	}

	// The sine starts at zero; that first frame is leading silence.
	assert.Equal(t, 511, rec.Cursor())
	assert.True(t, reg.Ready())
	assert.Equal(t, 48000.0, reg.SampleRate())
}

func TestProcessBlockGateSkipsSilence(t *testing.T) {
	engine, rec, _ := newTestEngine(t)
	engine.EnableGate()
	engine.SetGateThreshold(0.01)

	rec.Record()
	noise := utils.GenerateSineWave(256, 48000, 440, 0.001)
	engine.processBlock(noise, append([]float32(nil), noise...))
	assert.Equal(t, 0, rec.Cursor(), "gated block should not start the recording")

	loud := utils.GenerateSineWave(256, 48000, 440, 0.5)
	engine.processBlock(loud, append([]float32(nil), loud...))
	assert.Positive(t, rec.Cursor())
}

func TestLoadMeter(t *testing.T) {
	var m LoadMeter
	assert.Zero(t, m.Ratio())

	// 46 blocks of 1024 frames stay under one second at 48 kHz.
	for range 46 {
		m.Push(48000, 1024, time.Millisecond)
	}
	assert.Zero(t, m.Ratio())

	m.Push(48000, 1024, time.Millisecond)
	// 47 ms of work for 48128/48000 s of audio.
	assert.InDelta(t, 0.047/(48128.0/48000.0), m.Ratio(), 1e-9)

	// A rate change drops the partial totals.
	for range 20 {
		m.Push(48000, 1024, 10*time.Millisecond)
	}
	for range 44 {
		m.Push(44100, 1024, time.Millisecond)
	}
	assert.InDelta(t, 0.044/(45056.0/44100.0), m.Ratio(), 1e-9)

	m.Push(0, 1024, time.Second)
	assert.InDelta(t, 0.044/(45056.0/44100.0), m.Ratio(), 1e-9)
}

// TestProcessBlockHotPath verifies the audio callback does not allocate.
func TestProcessBlockHotPath(t *testing.T) {
	engine, rec, b := newTestEngine(t)
	engine.EnableGate()

	reg, err := b.Register(1024)
	require.NoError(t, err)
	defer reg.Close()

	left := utils.GenerateSineWave(512, 48000, 440, 0.5)
	right := utils.GenerateSineWave(512, 48000, 880, 0.5)
	rec.Play(false, 0, 0, 0)

	allocs := testing.AllocsPerRun(100, func() {
		engine.processBlock(left, right)
		reg.Reset()
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in processBlock, got %.1f", allocs)
	}
}

func BenchmarkProcessBlock(b *testing.B) {
	engine, _, _ := newTestEngine(b)
	left := utils.GenerateSineWave(512, 48000, 440, 0.5)
	right := utils.GenerateSineWave(512, 48000, 880, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		engine.processBlock(left, right)
	}
}

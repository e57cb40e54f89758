// SPDX-License-Identifier: MIT
/*
Package audio runs the real-time duplex stream that feeds the recorder and
the snapshot broadcaster.

Each callback copies the input block to the stereo output (mono input is
duplicated), applies the noise gate, lets the recorder capture or mix in
playback, and pushes the result to the broadcaster.

Thread Safety:
  - Gate settings and the DSP-load ratio are atomics.
  - Pre-allocates nothing per block; the callback never allocates or logs.
  - Recorder and broadcaster take one short lock each per block.
*/
package audio

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"seedscope/internal/broadcast"
	"seedscope/internal/config"
	applog "seedscope/internal/log"
	"seedscope/internal/recorder"
)

const component = applog.Component("Engine")

type Engine struct {
	config      *config.Config
	recorder    *recorder.Recorder
	broadcaster *broadcast.Broadcaster

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream
	sampleRate    float64

	// Noise gate for signal conditioning.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint32 // float32 bits, linear peak in [0, 1]

	load LoadMeter
}

// NewEngine resolves the configured devices. PortAudio must be initialized.
func NewEngine(cfg *config.Config, rec *recorder.Recorder, b *broadcast.Broadcaster) (*Engine, error) {
	if rec == nil || b == nil {
		return nil, fmt.Errorf("engine needs a recorder and a broadcaster")
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	e := newEngine(cfg, rec, b)
	e.inputDevice = inputDevice
	e.outputDevice = outputDevice

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
		e.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
		e.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return e, nil
}

func newEngine(cfg *config.Config, rec *recorder.Recorder, b *broadcast.Broadcaster) *Engine {
	e := &Engine{
		config:      cfg,
		recorder:    rec,
		broadcaster: b,
		sampleRate:  cfg.Audio.SampleRate,
	}
	e.gateEnabled.Store(cfg.Audio.GateEnabled)
	e.SetGateThreshold(cfg.Audio.GateThreshold)
	return e
}

// Start opens and starts the duplex stream.
func (e *Engine) Start() error {
	if e.stream != nil {
		return nil
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: e.config.Audio.InputChannels,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   e.outputDevice,
			Channels: e.config.Audio.OutputChannels,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processStream)
	if err != nil {
		return fmt.Errorf("open duplex stream: %w", err)
	}
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		e.sampleRate = info.SampleRate
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return fmt.Errorf("start duplex stream: %w", err)
	}

	component.Infof("stream started: %s -> %s, %.0f Hz, %d frames",
		e.inputDevice.Name, e.outputDevice.Name, e.sampleRate, e.config.Audio.FramesPerBuffer)
	return nil
}

// Stop stops and closes the stream. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return fmt.Errorf("stop duplex stream: %w", err)
	}
	if err := e.stream.Close(); err != nil {
		return fmt.Errorf("close duplex stream: %w", err)
	}
	e.stream = nil
	component.Infof("stream stopped")
	return nil
}

// Close implements io.Closer.
func (e *Engine) Close() error {
	return e.Stop()
}

// SampleRate returns the stream's actual sample rate.
func (e *Engine) SampleRate() float64 {
	return e.sampleRate
}

// Load returns the DSP-load ratio of the most recent second of audio.
func (e *Engine) Load() float64 {
	return e.load.Ratio()
}

// processStream is the PortAudio callback for non-interleaved float32.
// Performance Critical: no allocations.
func (e *Engine) processStream(in, out [][]float32) {
	if len(out) < 2 {
		return
	}
	left, right := out[0], out[1]

	switch len(in) {
	case 0:
		clear(left)
		clear(right)
	case 1:
		copy(left, in[0])
		copy(right, in[0])
	default:
		copy(left, in[0])
		copy(right, in[1])
	}

	e.processBlock(left, right)
}

// processBlock performs all DSP operations on the stereo block in-place.
// Performance Critical (Hot Path):
// - No allocations
// - Gate zeroes quiet blocks so the recorder's silence skip engages
func (e *Engine) processBlock(left, right []float32) {
	start := time.Now()

	if e.gateEnabled.Load() {
		threshold := math.Float32frombits(e.gateThreshold.Load())
		if blockPeak(left, right) < threshold {
			clear(left)
			clear(right)
		}
	}

	e.recorder.Push(left, right, e.sampleRate)
	e.broadcaster.Push(left, right, e.sampleRate)

	e.load.Push(e.sampleRate, len(left), time.Since(start))
}

// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the engine, recorder and analysers.
const (
	// Audio defaults
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 512
	DefaultLowLatency      = false
	DefaultInputChannels   = 2
	DefaultOutputChannels  = 2
	DefaultGateEnabled     = true
	DefaultGateThreshold   = 0.001 // ~-60 dBFS

	// Recorder defaults
	DefaultEntries    = 4
	DefaultMaxSeconds = 4.0
	DefaultFilterTaps = 100
	DefaultBitDepth   = 16

	// Analysis defaults
	DefaultBroadcastCapacity = 2048
	DefaultFFTWindow         = "Hann"
	DefaultWindowSize        = 2048
	DefaultScopeSize         = 512
	DefaultMinHz             = 40.0
	DefaultMaxHz             = 20000.0
	DefaultLevelWindow       = 1024
	DefaultMonitorInterval   = 33 * time.Millisecond // ~30Hz

	// Transport defaults
	DefaultWSAddr           = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MaxFilterTaps   = 4096
	MaxEntries      = 16
	MaxSeconds      = 60.0
)

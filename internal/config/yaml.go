// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	applog "seedscope/internal/log"
	"seedscope/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig     `yaml:"audio"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds settings for the duplex stream.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`  // PortAudio device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"` // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`
	InputChannels   int     `yaml:"input_channels"` // 1 is duplicated to both channels.
	OutputChannels  int     `yaml:"output_channels"`
	GateEnabled     bool    `yaml:"gate_enabled"`
	GateThreshold   float64 `yaml:"gate_threshold"` // Linear peak in [0, 1].
}

// RecorderConfig holds the slot layout and persistence settings.
type RecorderConfig struct {
	Entries    int     `yaml:"entries"`
	MaxSeconds float64 `yaml:"max_seconds"`
	FilterTaps int     `yaml:"filter_taps"`
	StateFile  string  `yaml:"state_file,omitempty"` // Loaded on start, saved on exit.
	BitDepth   int     `yaml:"bit_depth"`            // WAV export depth.
}

// AnalysisConfig holds the live analyser settings.
type AnalysisConfig struct {
	BroadcastCapacity int           `yaml:"broadcast_capacity"`
	FFTWindow         string        `yaml:"fft_window"`
	WindowSize        int           `yaml:"window_size"`
	ScopeSize         int           `yaml:"scope_size"`
	MinHz             float64       `yaml:"min_hz"`
	MaxHz             float64       `yaml:"max_hz"`
	LevelWindow       int           `yaml:"level_window"`
	Interval          time.Duration `yaml:"interval"`
}

// TransportConfig holds settings for publishing analysis frames.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddr           string        `yaml:"ws_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	LogFrames        bool          `yaml:"log_frames"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
			OutputChannels:  DefaultOutputChannels,
			GateEnabled:     DefaultGateEnabled,
			GateThreshold:   DefaultGateThreshold,
		},
		Recorder: RecorderConfig{
			Entries:    DefaultEntries,
			MaxSeconds: DefaultMaxSeconds,
			FilterTaps: DefaultFilterTaps,
			BitDepth:   DefaultBitDepth,
		},
		Analysis: AnalysisConfig{
			BroadcastCapacity: DefaultBroadcastCapacity,
			FFTWindow:         DefaultFFTWindow,
			WindowSize:        DefaultWindowSize,
			ScopeSize:         DefaultScopeSize,
			MinHz:             DefaultMinHz,
			MaxHz:             DefaultMaxHz,
			LevelWindow:       DefaultLevelWindow,
			Interval:          DefaultMonitorInterval,
		},
		Transport: TransportConfig{
			WSAddr:           DefaultWSAddr,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. Variables from a ".env" file in the working directory are loaded first
// (existing environment wins), then ENV_* overrides are applied and the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "seedscope.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a dotenv file without overriding
// variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	applog.Debugf("Config: loaded environment from %s", path)
	return nil
}

// Validate checks every section against the engine's limits.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio device ids must be >= %d", MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 || a.InputChannels > 2 {
		return fmt.Errorf("audio.input_channels must be 1 or 2, got %d", a.InputChannels)
	}
	if a.OutputChannels != 2 {
		return fmt.Errorf("audio.output_channels must be 2, got %d", a.OutputChannels)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return fmt.Errorf("audio.gate_threshold %f outside [0, 1]", a.GateThreshold)
	}

	r := c.Recorder
	if r.Entries < 1 || r.Entries > MaxEntries {
		return fmt.Errorf("recorder.entries %d outside [1, %d]", r.Entries, MaxEntries)
	}
	if r.MaxSeconds <= 0 || r.MaxSeconds > MaxSeconds {
		return fmt.Errorf("recorder.max_seconds %.1f outside (0, %.0f]", r.MaxSeconds, MaxSeconds)
	}
	if r.FilterTaps < 1 || r.FilterTaps > MaxFilterTaps {
		return fmt.Errorf("recorder.filter_taps %d outside [1, %d]", r.FilterTaps, MaxFilterTaps)
	}
	switch r.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("recorder.bit_depth must be 16, 24 or 32, got %d", r.BitDepth)
	}

	an := c.Analysis
	if an.BroadcastCapacity <= 0 {
		return fmt.Errorf("analysis.broadcast_capacity must be positive")
	}
	if !bitint.IsPowerOfTwo(an.WindowSize) || an.WindowSize > an.BroadcastCapacity {
		return fmt.Errorf("analysis.window_size %d must be a power of two <= %d", an.WindowSize, an.BroadcastCapacity)
	}
	if an.LevelWindow <= 0 || an.LevelWindow > an.BroadcastCapacity {
		return fmt.Errorf("analysis.level_window %d outside [1, %d]", an.LevelWindow, an.BroadcastCapacity)
	}
	if an.ScopeSize <= 0 {
		return fmt.Errorf("analysis.scope_size must be positive")
	}
	if an.MinHz <= 0 || an.MaxHz <= an.MinHz {
		return fmt.Errorf("analysis frequency range %.0f-%.0f Hz is invalid", an.MinHz, an.MaxHz)
	}
	if an.Interval <= 0 {
		return fmt.Errorf("analysis.interval must be positive")
	}

	t := c.Transport
	if t.WSEnabled && t.WSAddr == "" {
		return fmt.Errorf("transport.ws_addr must be set when websocket is enabled")
	}
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("Config: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Debugf("Config: overriding log_level from env: %s", val)
	}
	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = fVal
			applog.Debugf("Config: overriding audio.sample_rate from env: %.0f", fVal)
		}
	}

	// ENV_WS_{...}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WSEnabled = bVal
			applog.Debugf("Config: overriding transport.ws_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Transport.WSAddr = val
		applog.Debugf("Config: overriding transport.ws_addr from env: %s", val)
	}

	// ENV_UDP_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Debugf("Config: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Debugf("Config: overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Debugf("Config: overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}

// Capacity returns the per-entry recorder capacity in samples.
func (c *Config) Capacity() int {
	return int(c.Audio.SampleRate*c.Recorder.MaxSeconds + 0.5)
}

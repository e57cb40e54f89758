// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %v, want %v", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.Recorder.Entries != DefaultEntries {
		t.Errorf("Entries = %d, want %d", cfg.Recorder.Entries, DefaultEntries)
	}
	if got := cfg.Capacity(); got != 192000 {
		t.Errorf("Capacity() = %d, want 192000", got)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
audio:
  sample_rate: 44100
  input_channels: 1
recorder:
  max_seconds: 2
  filter_taps: 64
analysis:
  window_size: 1024
  interval: 50ms
transport:
  ws_enabled: true
  ws_addr: ":9000"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.InputChannels != 1 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("unset field lost its default: %d", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Recorder.FilterTaps != 64 || cfg.Capacity() != 88200 {
		t.Errorf("recorder = %+v, capacity %d", cfg.Recorder, cfg.Capacity())
	}
	if cfg.Analysis.Interval != 50*time.Millisecond {
		t.Errorf("Interval = %s, want 50ms", cfg.Analysis.Interval)
	}
	if !cfg.Transport.WSEnabled || cfg.Transport.WSAddr != ":9000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_SAMPLE_RATE", "96000")
	t.Setenv("ENV_WS_ENABLED", "true")
	t.Setenv("ENV_WS_ADDR", "127.0.0.1:7000")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:9999")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "10ms")

	cfg, err := LoadConfig(writeTempConfig(t, "debug: false\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !cfg.Debug || cfg.LogLevel != "warn" || cfg.Audio.SampleRate != 96000 {
		t.Errorf("general overrides not applied: %+v", cfg)
	}
	want := TransportConfig{
		WSEnabled:        true,
		WSAddr:           "127.0.0.1:7000",
		UDPEnabled:       true,
		UDPTargetAddress: "10.0.0.2:9999",
		UDPSendInterval:  10 * time.Millisecond,
	}
	if cfg.Transport != want {
		t.Errorf("transport = %+v, want %+v", cfg.Transport, want)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ENV_UDP_TARGET_ADDRESS=192.168.1.5:4000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ENV_UDP_TARGET_ADDRESS") })

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Transport.UDPTargetAddress != "192.168.1.5:4000" {
		t.Errorf("UDPTargetAddress = %q, want value from .env", cfg.Transport.UDPTargetAddress)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Log Level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"Device", func(c *Config) { c.Audio.InputDevice = -2 }, "device"},
		{"Sample Rate Low", func(c *Config) { c.Audio.SampleRate = 4000 }, "sample_rate"},
		{"Sample Rate High", func(c *Config) { c.Audio.SampleRate = 384000 }, "sample_rate"},
		{"Frames", func(c *Config) { c.Audio.FramesPerBuffer = MaxBufferFrames + 1 }, "frames_per_buffer"},
		{"Input Channels", func(c *Config) { c.Audio.InputChannels = 3 }, "input_channels"},
		{"Output Channels", func(c *Config) { c.Audio.OutputChannels = 1 }, "output_channels"},
		{"Gate", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "gate_threshold"},
		{"Entries", func(c *Config) { c.Recorder.Entries = 0 }, "entries"},
		{"Seconds", func(c *Config) { c.Recorder.MaxSeconds = 0 }, "max_seconds"},
		{"Taps", func(c *Config) { c.Recorder.FilterTaps = 0 }, "filter_taps"},
		{"Bit Depth", func(c *Config) { c.Recorder.BitDepth = 8 }, "bit_depth"},
		{"Window Not Pow2", func(c *Config) { c.Analysis.WindowSize = 1000 }, "window_size"},
		{"Window Too Large", func(c *Config) { c.Analysis.WindowSize = 4096 }, "window_size"},
		{"Level Window", func(c *Config) { c.Analysis.LevelWindow = 0 }, "level_window"},
		{"Frequency Range", func(c *Config) { c.Analysis.MinHz = 30000 }, "frequency range"},
		{"Interval", func(c *Config) { c.Analysis.Interval = 0 }, "interval"},
		{"WS Addr", func(c *Config) { c.Transport.WSEnabled = true; c.Transport.WSAddr = "" }, "ws_addr"},
		{"UDP Addr", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }, "udp_target_address"},
		{"UDP Interval", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPSendInterval = 0 }, "udp_send_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errSub)
			}
		})
	}
}

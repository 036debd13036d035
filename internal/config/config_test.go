package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tevaactl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	// A nonexistent explicit file is an error; an empty search is not.
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "tevaactl.yaml"))
	if err == nil {
		t.Error("Load should fail for an explicit missing file")
	}

	cfg, err = Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("default baud rate = %d, want 9600", cfg.Serial.BaudRate)
	}
	if cfg.Serial.DeviceAddr != 1 {
		t.Errorf("default device address = %d, want 1", cfg.Serial.DeviceAddr)
	}
	if cfg.Serial.Timeout != time.Second {
		t.Errorf("default timeout = %v, want 1s", cfg.Serial.Timeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Poll.Interval != time.Second {
		t.Errorf("default poll interval = %v, want 1s", cfg.Poll.Interval)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
  baud_rate: 115200
  device_addr: 5
  timeout: 500ms
log:
  level: debug
poll:
  interval: 2s
  waveform_every: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Errorf("port = %q", cfg.Serial.Port)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("baud rate = %d, want 115200", cfg.Serial.BaudRate)
	}
	if cfg.Serial.DeviceAddr != 5 {
		t.Errorf("device address = %d, want 5", cfg.Serial.DeviceAddr)
	}
	if cfg.Serial.Timeout != 500*time.Millisecond {
		t.Errorf("timeout = %v, want 500ms", cfg.Serial.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("poll interval = %v, want 2s", cfg.Poll.Interval)
	}
	if cfg.Poll.WaveformEvery != 10 {
		t.Errorf("waveform_every = %d, want 10", cfg.Poll.WaveformEvery)
	}
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"baud rate outside the enumerated set", "serial:\n  baud_rate: 9601\n"},
		{"device address 0", "serial:\n  device_addr: 0\n"},
		{"device address 248", "serial:\n  device_addr: 248\n"},
		{"unknown log level", "log:\n  level: chatty\n"},
		{"malformed yaml", "serial: [\n"},
	}
	for _, tc := range testCases {
		if _, err := Load(writeConfig(t, tc.content)); err == nil {
			t.Errorf("%s: Load should fail", tc.name)
		}
	}
}

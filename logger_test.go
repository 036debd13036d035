package tevaa

import (
	"bytes"
	"strings"
	"testing"
)

func TestSimpleLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLogger(&buf, LevelWarning, "test")

	logger.Write([]byte("DEBUG: noise"))
	logger.Write([]byte("plain info message"))
	logger.Write([]byte("WARNING: something odd"))
	logger.Write([]byte("[ERROR] something broke"))

	out := buf.String()
	if strings.Contains(out, "noise") || strings.Contains(out, "plain info") {
		t.Errorf("messages below WARNING were not filtered:\n%s", out)
	}
	if !strings.Contains(out, "something odd") || !strings.Contains(out, "something broke") {
		t.Errorf("WARNING/ERROR messages missing:\n%s", out)
	}
	if !strings.Contains(out, "<test>") {
		t.Errorf("prefix missing:\n%s", out)
	}
}

func TestSimpleLoggerLevelNone(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLogger(&buf, LevelNone, "test")
	logger.Write([]byte("ERROR: should be swallowed"))
	if buf.Len() != 0 {
		t.Errorf("LevelNone still wrote: %s", buf.String())
	}
}

func TestSimpleLoggerSetLevelFromString(t *testing.T) {
	logger := NewSimpleLogger(&bytes.Buffer{}, LevelInfo, "test")
	if err := logger.SetLevelFromString("debug"); err != nil {
		t.Errorf("SetLevelFromString(debug) failed: %v", err)
	}
	if err := logger.SetLevelFromString("verbose"); err == nil {
		t.Error("SetLevelFromString(verbose) should fail")
	}
}

func TestDetermineLevel(t *testing.T) {
	testCases := []struct {
		message  string
		expected LogLevel
	}{
		{"DEBUG: x", LevelDebug},
		{"[DEBUG] x", LevelDebug},
		{"warning: x", LevelWarning},
		{"ERROR: x", LevelError},
		{"anything else", LevelInfo},
	}
	for _, tc := range testCases {
		if level := determineLevel(tc.message); level != tc.expected {
			t.Errorf("determineLevel(%q) = %v, want %v", tc.message, level, tc.expected)
		}
	}
}

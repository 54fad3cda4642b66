package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range testCases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_DebugFlag(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Options{Level: LevelInfo, Writer: &buf})
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled without the debug flag")
	}

	logger = New(Options{Level: LevelInfo, Debug: true, Writer: &buf})
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug flag should enable debug level")
	}

	logger.Debug("Initialize: 1")
	if !strings.Contains(buf.String(), "Initialize: 1") {
		t.Errorf("debug message not written: %q", buf.String())
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: FormatJSON, Writer: &buf})
	logger.Info("stream opened", "device", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "stream opened" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
}

package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"loud", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.log")

	log, err := NewFileLogger(path, "info")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	log.Debug("Filtered out")
	log.Info("Scan complete")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "Scan complete") {
		t.Errorf("Expected log line in file, got %q", data)
	}
	if strings.Contains(string(data), "Filtered out") {
		t.Errorf("Debug line should be filtered at info level")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARNING", WarnLevel},
		{"ERROR", ErrorLevel},
		{"garbage", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestZapLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("token refreshed", Field{Key: "user_id", Value: "u1"}, Field{Key: "attempts", Value: 2})

	out := buf.String()
	if !strings.Contains(out, "token refreshed") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "u1") {
		t.Errorf("expected field value in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug("should be dropped")
	logger.Info("should be dropped too")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("expected warn to be written, got %q", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})

	scoped := logger.WithFields(Field{Key: "provider", Value: "canvas"})
	scoped.Info("courses fetched")

	if !strings.Contains(buf.String(), "canvas") {
		t.Errorf("expected scoped field in output, got %q", buf.String())
	}
}

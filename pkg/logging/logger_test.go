package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		enabled zapcore.Level
	}{
		{"info", "json", zapcore.InfoLevel},
		{"debug", "console", zapcore.DebugLevel},
		{" warn ", "JSON", zapcore.WarnLevel},
	}

	for _, tt := range tests {
		logger, err := NewLogger(tt.level, tt.format)
		if err != nil {
			t.Fatalf("NewLogger(%q, %q) failed: %v", tt.level, tt.format, err)
		}
		if !logger.Core().Enabled(tt.enabled) {
			t.Errorf("expected %s to be enabled for level %q", tt.enabled, tt.level)
		}
		if tt.enabled > zapcore.DebugLevel && logger.Core().Enabled(tt.enabled-1) {
			t.Errorf("expected %s to be disabled for level %q", tt.enabled-1, tt.level)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}

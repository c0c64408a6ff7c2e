package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want *zapcore.Level
	}{
		{"debug", levelPtr(zapcore.DebugLevel)},
		{"info", levelPtr(zapcore.InfoLevel)},
		{"warn", levelPtr(zapcore.WarnLevel)},
		{"error", levelPtr(zapcore.ErrorLevel)},
		{"chatty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseLevel(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.in, *got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, *tt.want)
			}
		})
	}
}

func TestWithKeepsInterface(t *testing.T) {
	l := New("error", false).With(String("component", "test"))
	if l == nil {
		t.Fatal("With() returned nil")
	}
	l.Debug("dropped below error level")
	Nop().With(Int("n", 1)).Info("discarded")
}

func levelPtr(l zapcore.Level) *zapcore.Level { return &l }

package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, c := range cases {
		got, err := parseLevel(c.in)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseLevelRejectsGarbage(t *testing.T) {
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewBuildsBothEncodings(t *testing.T) {
	for _, cfg := range []Config{{Level: "info"}, {Level: "debug", JSON: true}} {
		log, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%+v): %v", cfg, err)
		}
		if log.Logger == nil {
			t.Fatalf("New(%+v) returned nil inner logger", cfg)
		}
		log.Info("probe")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "nope"}); err == nil {
		t.Error("expected error for bad level")
	}
}

func TestNewDefaultNeverNil(t *testing.T) {
	if log := NewDefault(); log == nil || log.Logger == nil {
		t.Fatal("NewDefault returned nil")
	}
	if log := NewNop(); log == nil || log.Logger == nil {
		t.Fatal("NewNop returned nil")
	}
}

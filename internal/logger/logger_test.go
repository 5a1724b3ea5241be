package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   defaultZapLevel,
		"":        defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNilLoggerHelpers(t *testing.T) {
	var l *Logger
	if l.OrNop() == nil {
		t.Fatal("OrNop on nil returned nil")
	}
	if l.Named("collector") == nil {
		t.Fatal("Named on nil returned nil")
	}
	l.OrNop().Infow("discarded", "k", "v")
}

func TestGetReturnsSingleton(t *testing.T) {
	a := Get(DebugLevel)
	b := Get(ErrorLevel)
	if a != b {
		t.Fatal("Get should return the same instance")
	}
}

package logger_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/k1networth/hello-pipeline/internal/shared/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logger.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestNewWithWriterAddsAppAndEnv(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "consumer", "test", "info")

	log.Debug("hidden")
	log.Info("consumer_start")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug line to be filtered, got %s", out)
	}
	if !strings.Contains(out, `"app":"consumer"`) || !strings.Contains(out, `"env":"test"`) {
		t.Fatalf("expected app and env attributes, got %s", out)
	}
}

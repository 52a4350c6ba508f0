// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("table", "film_work").Msg("drain started")

	out := buf.String()
	if !strings.Contains(out, `"table":"film_work"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"drain started"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestWithChildLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	child := With().Str("component", "etl").Logger()
	child.Info().Msg("cycle complete")

	if !strings.Contains(buf.String(), `"component":"etl"`) {
		t.Errorf("child logger missing default field: %q", buf.String())
	}
}

func TestSlogHandlerForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	slogger := slog.New(NewSlogHandler())
	slogger.Info("supervisor event", "service", "pipeline", "attempts", int64(3))

	out := buf.String()
	if !strings.Contains(out, `"service":"pipeline"`) {
		t.Errorf("expected slog attr in zerolog output, got %q", out)
	}
	if !strings.Contains(out, `"attempts":3`) {
		t.Errorf("expected int attr in zerolog output, got %q", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	slogger := slog.New(NewSlogHandler()).WithGroup("suture")
	slogger.Warn("restarting", "service", "pipeline")

	if !strings.Contains(buf.String(), `"suture.service":"pipeline"`) {
		t.Errorf("expected group-prefixed key, got %q", buf.String())
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	Init(Config{Level: "warn", Output: &bytes.Buffer{}})
	defer Init(DefaultConfig())

	h := NewSlogHandler()
	if h.Enabled(nil, slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(nil, slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("test-source")

	if cfg.Level != LevelInfo {
		t.Errorf("expected level INFO, got %v", cfg.Level)
	}
	if cfg.Format != "text" {
		t.Errorf("expected format text, got %s", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected output stderr")
	}
	if cfg.Source != "test-source" {
		t.Errorf("expected source test-source, got %s", cfg.Source)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{" warn ", LevelWarn, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		levelEnv      string
		formatEnv     string
		expectedLevel slog.Level
		expectedFmt   string
	}{
		{"defaults", "", "", LevelInfo, "text"},
		{"debug level", "debug", "", LevelDebug, "text"},
		{"warning level alias", "warning", "", LevelWarn, "text"},
		{"error level uppercase", "ERROR", "", LevelError, "text"},
		{"unknown level keeps default", "chatty", "", LevelInfo, "text"},
		{"JSON format uppercase", "", "JSON", LevelInfo, "json"},
		{"debug + json", "debug", "json", LevelDebug, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envLevel, tt.levelEnv)
			t.Setenv(envFormat, tt.formatEnv)

			cfg := LoadConfigFromEnv("test")

			if cfg.Level != tt.expectedLevel {
				t.Errorf("level: expected %v, got %v", tt.expectedLevel, cfg.Level)
			}
			if cfg.Format != tt.expectedFmt {
				t.Errorf("format: expected %s, got %s", tt.expectedFmt, cfg.Format)
			}
		})
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Config{Level: LevelInfo, Format: "text", Output: &buf, Source: "tags"})
	logger.Info("generating tags", "base", "/ws")

	output := buf.String()
	for _, want := range []string{"generating tags", "source=tags", "base=/ws"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q: %s", want, output)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Config{Level: LevelInfo, Format: "json", Output: &buf, Source: "query"})
	logger.Info("json test")

	output := buf.String()
	if !strings.Contains(output, `"msg":"json test"`) {
		t.Errorf("JSON output should contain msg field: %s", output)
	}
	if !strings.Contains(output, `"source":"query"`) {
		t.Errorf("JSON output should contain source field: %s", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Config{Level: LevelWarn, Format: "text", Output: &buf, Source: "filter-test"})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	if strings.Contains(buf.String(), "debug message") || strings.Contains(buf.String(), "info message") {
		t.Errorf("messages below warn should be filtered: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "warn message") {
		t.Error("warn message should appear")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) should return a logger")
	}
	l := Default("x")
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
	// Should not panic
	Nop().With("key", "value").Error("nowhere")
}

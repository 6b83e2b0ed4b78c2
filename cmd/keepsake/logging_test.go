package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"-4":      slog.LevelDebug,
		"8":       slog.Level(8),
	}
	for raw, want := range cases {
		got, err := parseLogLevel(raw)
		if err != nil {
			t.Fatalf("parseLogLevel(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := parseLogLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFirstSettingPrecedence(t *testing.T) {
	flag := logSetting{"", "--log-level"}
	env := logSetting{"  ", logLevelEnvKey}
	cfg := logSetting{"error", "log_level"}

	got, ok := firstSetting(flag, env, cfg)
	if !ok || got.origin != "log_level" {
		t.Fatalf("expected config to win over blank values, got %+v", got)
	}

	flag.value = "debug"
	if got, _ := firstSetting(flag, env, cfg); got.origin != "--log-level" {
		t.Fatalf("expected flag to win, got %+v", got)
	}

	if _, ok := firstSetting(logSetting{}, logSetting{value: " "}); ok {
		t.Fatal("expected no setting")
	}
}

func TestParseLogFormat(t *testing.T) {
	for raw, want := range map[string]bool{"": false, "text": false, "JSON": true} {
		got, err := parseLogFormat(raw)
		if err != nil || got != want {
			t.Fatalf("parseLogFormat(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := parseLogFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, slog.LevelInfo, true).Debug("hidden")
	newLogger(&buf, slog.LevelInfo, true).Info("stored", "id", "abc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a single json record, got %q: %v", buf.String(), err)
	}
	if rec["app"] != "keepsake" || rec["id"] != "abc" || rec["msg"] != "stored" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestConfigureLoggerForCLI(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Run("flag overrides invalid env", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "invalid")
		t.Setenv(logFormatEnvKey, "")
		warnings, err := configureLoggerForCLI("debug", "info")
		if err != nil || len(warnings) != 0 {
			t.Fatalf("unexpected result %v, %v", warnings, err)
		}
	})

	t.Run("invalid flag is an error", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("verbose", "info"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid env warns", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "verbose")
		t.Setenv(logFormatEnvKey, "")
		warnings, err := configureLoggerForCLI("", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if len(warnings) != 1 || !strings.Contains(warnings[0], logLevelEnvKey) || !strings.Contains(warnings[0], "defaulting to info") {
			t.Fatalf("unexpected warnings %v", warnings)
		}
	})

	t.Run("invalid config and format both warn", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		t.Setenv(logFormatEnvKey, "xml")
		warnings, err := configureLoggerForCLI("", "verbose")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if len(warnings) != 2 || !strings.Contains(warnings[0], "invalid log_level") || !strings.Contains(warnings[1], "using text logs") {
			t.Fatalf("unexpected warnings %v", warnings)
		}
	})
}

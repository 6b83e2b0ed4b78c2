package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"keepsake/internal/config"
)

const (
	logLevelEnvKey  = "KEEPSAKE_LOG_LEVEL"
	logFormatEnvKey = "KEEPSAKE_LOG_FORMAT"
)

// logSetting is one candidate value for a logging knob and where it came from.
type logSetting struct {
	value  string
	origin string
}

func (s logSetting) set() bool { return strings.TrimSpace(s.value) != "" }

// firstSetting returns the highest-precedence candidate that carries a value.
func firstSetting(candidates ...logSetting) (logSetting, bool) {
	for _, c := range candidates {
		if c.set() {
			return c, true
		}
	}
	return logSetting{}, false
}

// configureLoggerForCLI installs the process-wide slog default. A bad
// --log-level is a usage error; bad env or config values only warn.
func configureLoggerForCLI(flagLevel, configLevel string) ([]string, error) {
	var warnings []string

	level := slog.LevelInfo
	if chosen, ok := firstSetting(
		logSetting{flagLevel, "--log-level"},
		logSetting{os.Getenv(logLevelEnvKey), logLevelEnvKey},
		logSetting{configLevel, "log_level"},
	); ok {
		parsed, err := parseLogLevel(chosen.value)
		switch {
		case err == nil:
			level = parsed
		case chosen.origin == "--log-level":
			return nil, fmt.Errorf("invalid --log-level %q", chosen.value)
		default:
			warnings = append(warnings, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", chosen.origin, chosen.value, config.DefaultLogLevel))
		}
	}

	jsonLogs, err := parseLogFormat(os.Getenv(logFormatEnvKey))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("warning: %v; using text logs", err))
	}

	slog.SetDefault(newLogger(os.Stderr, level, jsonLogs))
	return warnings, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		value = "warn"
	}
	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// parseLogFormat reports whether JSON records were requested.
func parseLogFormat(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text", "logfmt":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("invalid %s=%q", logFormatEnvKey, raw)
	}
}

func newLogger(w io.Writer, level slog.Level, jsonLogs bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if jsonLogs {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("app", "keepsake")
}

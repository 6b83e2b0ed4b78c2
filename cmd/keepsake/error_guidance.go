package main

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/fatih/color"

	"keepsake/internal/api"
	"keepsake/internal/blobstore"
	"keepsake/internal/server"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	hintColor  = color.New(color.FgYellow)
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode {
		case server.ErrCodeRequestTooLarge:
			lines = append(lines, "hint: raise the server limit with: keepsake config set media.max_upload_bytes <bytes>")
		case server.ErrCodeUnsupportedMediaType:
			lines = append(lines, "hint: only video files are accepted; pass --content-type to override detection.")
		case server.ErrCodeStoreUnavailable:
			lines = append(lines, "hint: the server lost its object store; restart it with: keepsake srv")
		}
		if apiErr.Retryable() {
			lines = append(lines, "hint: the server is busy or degraded; retry shortly.")
		}
		if apiErr.Code == "" && !apiErr.Retryable() {
			lines = append(lines, "hint: verify KEEPSAKE_API_URL points to a keepsake server.")
		}
		if apiErr.Status >= 500 && !apiErr.Retryable() {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, blobstore.ErrStoreUnavailable) {
		lines = append(lines, "hint: check the db path with: keepsake config get db_path")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase KEEPSAKE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a keepsake server is running at KEEPSAKE_API_URL.",
			"hint: start local server manually with: keepsake srv",
			"hint: you can increase KEEPSAKE_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func printCLIError(w io.Writer, lines []string) {
	for i, line := range lines {
		if i == 0 {
			errorColor.Fprintln(w, line)
			continue
		}
		hintColor.Fprintln(w, line)
	}
}

func printWarning(w io.Writer, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	hintColor.Fprintln(w, line)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

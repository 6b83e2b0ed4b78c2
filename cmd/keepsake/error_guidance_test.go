package main

import (
	"bytes"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/fatih/color"

	"keepsake/internal/api"
	"keepsake/internal/blobstore"
	"keepsake/internal/server"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a keepsake server is running at KEEPSAKE_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start local server manually with: keepsake srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify KEEPSAKE_API_URL points to a keepsake server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_UploadGuidance(t *testing.T) {
	tooLarge := &api.APIError{Status: 400, Code: "invalid_argument", ErrorCode: server.ErrCodeRequestTooLarge, Message: "upload exceeds 10 bytes"}
	if lines := formatCLIError(tooLarge); !containsPrefix(lines, "hint: raise the server limit") {
		t.Fatalf("expected upload limit guidance, got %v", lines)
	}

	busy := &api.APIError{Status: 429, Code: "resource_exhausted", ErrorCode: server.ErrCodeResourceExhausted, Message: "busy"}
	if lines := formatCLIError(busy); !containsLine(lines, "hint: the server is busy or degraded; retry shortly.") {
		t.Fatalf("expected retry guidance, got %v", lines)
	}
}

func TestFormatCLIError_DegradedHealth(t *testing.T) {
	err := &api.APIError{Status: 503, Message: "degraded: videos: blob store unavailable"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: the server is busy or degraded; retry shortly.") {
		t.Fatalf("expected retry guidance, got %v", lines)
	}
	if containsLine(lines, "hint: verify KEEPSAKE_API_URL points to a keepsake server.") {
		t.Fatalf("unexpected api-url guidance for a degraded server: %v", lines)
	}
}

func TestFormatCLIError_APIInternalGuidance(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "internal error"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: server returned an internal error; check server logs for details.") {
		t.Fatalf("expected internal-error guidance, got %v", lines)
	}
}

func TestFormatCLIError_StoreUnavailable(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("open bucket: %w", blobstore.ErrStoreUnavailable))
	if !containsLine(lines, "hint: check the db path with: keepsake config get db_path") {
		t.Fatalf("expected db path guidance, got %v", lines)
	}
}

func TestPrintCLIErrorWritesEveryLine(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printCLIError(&buf, []string{"boom", "hint: one", "hint: two"})
	if got := buf.String(); got != "boom\nhint: one\nhint: two\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUniqueLines(t *testing.T) {
	got := uniqueLines([]string{"a", "", "b", "a"})
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("unexpected lines %v", got)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}

func containsPrefix(lines []string, prefix string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

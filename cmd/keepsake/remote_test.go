package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keepsake/internal/api"
	"keepsake/internal/blobstore"
	"keepsake/internal/config"
	"keepsake/internal/server"
	"keepsake/internal/store"
)

func startTestServer(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	registry := blobstore.NewRegistry(st.DB(), blobstore.RegistryOptions{ChunkSize: 64})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New("127.0.0.1:0", server.StoresFrom(st), registry, logger, server.Options{})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	cfg.APIURL = ts.URL
	return cfg
}

func TestVideoCommandsAgainstServer(t *testing.T) {
	cfg := startTestServer(t)

	path := filepath.Join(t.TempDir(), "holiday.webm")
	if err := os.WriteFile(path, bytes.Repeat([]byte("v"), 500), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	out, err := runCLI(t, cfg, "--json", "videos", "upload", path, "--content-type", "video/webm")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var uploaded api.VideoResponse
	if err := json.Unmarshal([]byte(out), &uploaded); err != nil {
		t.Fatalf("decode upload output %q: %v", out, err)
	}
	if uploaded.File.Filename != "holiday.webm" || uploaded.File.Length != 500 {
		t.Fatalf("unexpected upload %+v", uploaded.File)
	}

	out, err = runCLI(t, cfg, "videos", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, uploaded.File.ID) || !strings.Contains(out, "page 1, 1 of 1 videos") {
		t.Fatalf("unexpected list output %q", out)
	}

	out, err = runCLI(t, cfg, "counts")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if !strings.Contains(out, "videos: 1") {
		t.Fatalf("unexpected counts output %q", out)
	}

	out, err = runCLI(t, cfg, "videos", "delete", uploaded.File.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "deleted "+uploaded.File.ID) {
		t.Fatalf("unexpected delete output %q", out)
	}

	_, err = runCLI(t, cfg, "videos", "delete", uploaded.File.ID)
	var apiErr *api.APIError
	if err == nil || !errors.As(err, &apiErr) || !apiErr.NotFound() {
		t.Fatalf("expected 404 api error, got %v", err)
	}

	out, err = runCLI(t, cfg, "videos", "delete", "--ignore-missing", uploaded.File.ID)
	if err != nil {
		t.Fatalf("delete --ignore-missing: %v", err)
	}
	if !strings.Contains(out, "missing "+uploaded.File.ID) {
		t.Fatalf("unexpected delete output %q", out)
	}
}

func TestPingCommand(t *testing.T) {
	cfg := startTestServer(t)
	out, err := runCLI(t, cfg, "ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !strings.HasPrefix(out, "ok ") {
		t.Fatalf("unexpected ping output %q", out)
	}
}

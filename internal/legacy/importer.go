package legacy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"keepsake/internal/models"
	"keepsake/internal/store"
)

// importNamespace derives stable legacy ids from file names so re-imports are no-ops.
var importNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("keepsake:legacy-videos"))

// ImportResult summarizes a directory import.
type ImportResult struct {
	Imported int      `json:"imported" yaml:"imported"`
	Skipped  int      `json:"skipped" yaml:"skipped"`
	IDs      []string `json:"ids" yaml:"ids"`
	DryRun   bool     `json:"dry_run" yaml:"dry_run"`
}

// Importer seeds the legacy table from plain files.
type Importer struct {
	sink   store.LegacyVideoSink
	logger *slog.Logger
	now    func() time.Time
}

// NewImporter constructs an Importer.
func NewImporter(sink store.LegacyVideoSink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{sink: sink, logger: logger, now: time.Now}
}

// LegacyID returns the id a file named name is imported under.
func LegacyID(name string) string {
	return strings.ReplaceAll(uuid.NewSHA1(importNamespace, []byte(name)).String(), "-", "")
}

// ImportDir inserts every regular, non-hidden file directly inside dir. Files whose
// id already exists are skipped.
func (i *Importer) ImportDir(ctx context.Context, dir string, dryRun bool) (ImportResult, error) {
	result := ImportResult{IDs: []string{}, DryRun: dryRun}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		imported, err := i.importFile(ctx, filepath.Join(dir, entry.Name()), entry, dryRun)
		if err != nil {
			return result, err
		}
		if !imported {
			result.Skipped++
			continue
		}
		result.Imported++
		result.IDs = append(result.IDs, LegacyID(entry.Name()))
	}
	return result, nil
}

func (i *Importer) importFile(ctx context.Context, path string, entry fs.DirEntry, dryRun bool) (bool, error) {
	id := LegacyID(entry.Name())
	exists, err := i.sink.LegacyVideoExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", entry.Name(), err)
	}
	if exists {
		i.logger.Debug("legacy video already imported", "file", entry.Name(), "legacy_id", id)
		return false, nil
	}
	if dryRun {
		return true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	created := i.now().UTC()
	if info, err := entry.Info(); err == nil {
		created = info.ModTime().UTC()
	}
	video := models.LegacyVideo{
		ID:        id,
		Filename:  entry.Name(),
		Data:      data,
		CreatedAt: &created,
		UpdatedAt: &created,
	}
	if err := i.sink.InsertLegacyVideo(ctx, video); err != nil {
		return false, fmt.Errorf("insert %s: %w", entry.Name(), err)
	}
	i.logger.Info("legacy video imported", "file", entry.Name(), "legacy_id", id, "bytes", len(data))
	return true, nil
}

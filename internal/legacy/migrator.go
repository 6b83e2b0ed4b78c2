// Package legacy moves videos stored inline in the legacy_videos table into the
// chunked object store.
package legacy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"keepsake/internal/blobstore"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

const (
	// MarkerKey is the metadata key that links a migrated object to its legacy record.
	MarkerKey = "old_id"

	defaultContentType = "video/mp4"
	defaultLogEvery    = 25
	defaultPageSize    = 16
)

// Options controls a migration run.
type Options struct {
	// DryRun counts what would happen without writing.
	DryRun bool
	// SkipExisting skips records whose marker already points at a complete object.
	SkipExisting bool
	// FixContentTypesOnly only repairs objects stored without a content type.
	FixContentTypesOnly bool
	// LogEvery controls progress logging frequency.
	LogEvery int
	// PageSize is how many legacy records are loaded per query.
	PageSize int
	// RatePerSecond caps record uploads per second. Zero means unthrottled.
	RatePerSecond float64
}

// DefaultOptions returns the options the CLI starts from.
func DefaultOptions() Options {
	return Options{SkipExisting: true, LogEvery: defaultLogEvery, PageSize: defaultPageSize}
}

// Result summarizes a run. Scanned and Fixed are only set by content type repair.
type Result struct {
	Total     int  `json:"total" yaml:"total"`
	Processed int  `json:"processed" yaml:"processed"`
	Migrated  int  `json:"migrated" yaml:"migrated"`
	Skipped   int  `json:"skipped" yaml:"skipped"`
	Failed    int  `json:"failed" yaml:"failed"`
	Scanned   int  `json:"scanned,omitempty" yaml:"scanned,omitempty"`
	Fixed     int  `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	DryRun    bool `json:"dry_run" yaml:"dry_run"`
}

// Migrator copies legacy records into a bucket, one record at a time.
type Migrator struct {
	source store.LegacyVideoSource
	bucket blobstore.Bucket
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

// New constructs a Migrator.
func New(source store.LegacyVideoSource, bucket blobstore.Bucket, logger *slog.Logger, opts Options) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = defaultLogEvery
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Migrator{source: source, bucket: bucket, logger: logger, opts: opts, now: time.Now}
}

// Run executes the migration, or the content type repair when FixContentTypesOnly is set.
// Per-record failures are counted in Result.Failed and never stop the batch.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	if m.opts.FixContentTypesOnly {
		return m.fixContentTypes(ctx)
	}

	result := Result{DryRun: m.opts.DryRun}
	total, err := m.source.CountLegacyVideos(ctx)
	if err != nil {
		return result, fmt.Errorf("count legacy videos: %w", err)
	}
	result.Total = total
	m.logger.Info("legacy migration starting", "total", total, "bucket", m.bucket.Name(), "dry_run", m.opts.DryRun)
	if total == 0 {
		m.logger.Info("nothing to migrate")
		return result, nil
	}

	if !m.opts.DryRun {
		if err := m.smokeTest(ctx); err != nil {
			return result, err
		}
	}

	var limiter *rate.Limiter
	if m.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.opts.RatePerSecond), 1)
	}

	after := ""
	for {
		page, err := m.source.LegacyVideosAfter(ctx, after, m.opts.PageSize)
		if err != nil {
			return result, fmt.Errorf("load legacy videos after %q: %w", after, err)
		}
		if len(page) == 0 {
			break
		}
		for _, record := range page {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return result, err
				}
			}
			m.migrateRecord(ctx, record, &result)
			after = record.ID
		}
	}

	m.logger.Info("legacy migration done",
		"migrated", result.Migrated, "skipped", result.Skipped, "failed", result.Failed, "processed", result.Processed)
	return result, nil
}

func (m *Migrator) migrateRecord(ctx context.Context, record models.LegacyVideo, result *Result) {
	result.Processed++
	defer m.progress(result)

	if len(record.Data) == 0 {
		m.logger.Warn("skipping legacy video without data", "legacy_id", record.ID)
		result.Skipped++
		return
	}

	filename := record.Filename
	if filename == "" {
		filename = fmt.Sprintf("video-%s.mp4", record.ID)
	}
	contentType := models.GuessContentType(record.ContentType, filename, defaultContentType)

	if m.opts.SkipExisting && !m.opts.DryRun {
		done, err := m.alreadyMigrated(ctx, record.ID, contentType)
		if err != nil {
			m.logger.Error("legacy video lookup failed", "legacy_id", record.ID, "err", err)
			result.Failed++
			return
		}
		if done {
			result.Skipped++
			return
		}
	}

	if m.opts.DryRun {
		result.Migrated++
		return
	}

	if err := m.upload(ctx, record, filename, contentType); err != nil {
		m.logger.Error("legacy video migration failed", "legacy_id", record.ID, "err", err)
		result.Failed++
		return
	}
	result.Migrated++
}

// alreadyMigrated reports whether record has a complete migrated object. A marker
// object without chunks is dropped so the record is migrated again.
func (m *Migrator) alreadyMigrated(ctx context.Context, legacyID, contentType string) (bool, error) {
	existing, err := m.bucket.FindByMetadata(ctx, MarkerKey, legacyID)
	if err != nil || existing == nil {
		return false, err
	}

	if existing.ContentType == "" {
		if _, err := m.bucket.UpdateInfo(ctx, existing.ID, blobstore.InfoUpdate{ContentType: &contentType}); err != nil {
			return false, fmt.Errorf("set content type on %s: %w", existing.ID, err)
		}
	}

	chunks, err := m.bucket.CountChunks(ctx, existing.ID)
	if err != nil {
		return false, err
	}
	if chunks > 0 {
		return true, nil
	}

	m.logger.Warn("migrated object has no chunks, migrating again", "legacy_id", legacyID, "object_id", existing.ID)
	if err := m.bucket.Delete(ctx, existing.ID); err != nil {
		return false, fmt.Errorf("drop empty object %s: %w", existing.ID, err)
	}
	return false, nil
}

func (m *Migrator) upload(ctx context.Context, record models.LegacyVideo, filename, contentType string) error {
	info, err := m.bucket.Upload(ctx, bytes.NewReader(record.Data), blobstore.UploadOptions{
		Filename:    filename,
		ContentType: contentType,
		Metadata: map[string]any{
			"migrated_from":     "video",
			MarkerKey:           record.ID,
			"old_filename":      nullableString(record.Filename),
			"legacy_created_at": nullableTime(record.CreatedAt),
			"legacy_updated_at": nullableTime(record.UpdatedAt),
		},
	})
	if err != nil {
		return err
	}

	chunks, err := m.bucket.CountChunks(ctx, info.ID)
	if err != nil {
		return fmt.Errorf("verify chunks of %s: %w", info.ID, err)
	}
	if chunks == 0 {
		_ = m.bucket.Delete(context.WithoutCancel(ctx), info.ID)
		return fmt.Errorf("object %s was stored without chunks", info.ID)
	}
	return nil
}

// smokeTest proves the bucket accepts writes before touching any record.
func (m *Migrator) smokeTest(ctx context.Context) error {
	info, err := m.bucket.Upload(ctx, bytes.NewReader([]byte("ok")), blobstore.UploadOptions{
		Filename:    fmt.Sprintf("__smoke__%d.txt", m.now().UnixMilli()),
		ContentType: "text/plain",
		Metadata:    map[string]any{"smoke": true},
	})
	if err != nil {
		return fmt.Errorf("smoke test upload: %w", err)
	}
	if err := m.bucket.Delete(ctx, info.ID); err != nil {
		m.logger.Warn("smoke test object not removed", "object_id", info.ID, "err", err)
	}
	m.logger.Debug("smoke test passed", "bucket", m.bucket.Name())
	return nil
}

func (m *Migrator) fixContentTypes(ctx context.Context) (Result, error) {
	result := Result{DryRun: m.opts.DryRun}
	objects, err := m.bucket.ListMissingContentType(ctx)
	if err != nil {
		return result, fmt.Errorf("list objects without content type: %w", err)
	}

	for _, object := range objects {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		declared, _ := object.Metadata["contentType"].(string)
		guess := models.GuessContentType(declared, object.Filename, defaultContentType)
		if !m.opts.DryRun {
			if _, err := m.bucket.UpdateInfo(ctx, object.ID, blobstore.InfoUpdate{ContentType: &guess}); err != nil {
				m.logger.Error("content type repair failed", "object_id", object.ID, "err", err)
				result.Failed++
				continue
			}
		}
		result.Fixed++
		if result.Fixed%m.opts.LogEvery == 0 {
			m.logger.Info("content types fixed so far", "fixed", result.Fixed)
		}
	}

	m.logger.Info("content type repair done", "scanned", result.Scanned, "fixed", result.Fixed)
	return result, nil
}

func (m *Migrator) progress(result *Result) {
	if result.Processed%m.opts.LogEvery == 0 || result.Processed == result.Total {
		m.logger.Info("legacy migration progress",
			"processed", result.Processed, "total", result.Total,
			"migrated", result.Migrated, "skipped", result.Skipped, "failed", result.Failed)
	}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339)
}

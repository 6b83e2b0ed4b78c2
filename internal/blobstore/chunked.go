package blobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const objectColumns = "id, bucket, filename, content_type, length, chunk_size, upload_ms, digest, metadata_json"

var (
	objectIDRegex    = regexp.MustCompile(`^[0-9a-f]{32}$`)
	metadataKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)
)

// ChunkedBucket stores objects as fixed-size chunks in SQLite. An object becomes
// visible only once its row in blob_objects is inserted, which happens after every
// chunk is durable.
type ChunkedBucket struct {
	db        *sql.DB
	name      string
	chunkSize int64
	prefetch  int
}

var _ Bucket = (*ChunkedBucket)(nil)

// Name returns the bucket name.
func (b *ChunkedBucket) Name() string {
	return b.name
}

// ChunkSize returns the chunk size used for new uploads.
func (b *ChunkedBucket) ChunkSize() int64 {
	return b.chunkSize
}

// OpenUpload starts a streaming upload. The caller must Close (commit) or Abort it.
func (b *ChunkedBucket) OpenUpload(ctx context.Context, opts UploadOptions) (*UploadStream, error) {
	if b == nil || b.db == nil {
		return nil, ErrStoreUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newUploadStream(ctx, b, NewObjectID(), opts)
}

// Upload copies r into a new object and commits it.
func (b *ChunkedBucket) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (ObjectInfo, error) {
	var zero ObjectInfo
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	up, err := b.OpenUpload(ctx, opts)
	if err != nil {
		return zero, err
	}
	if _, err := io.Copy(up, r); err != nil {
		up.Abort()
		return zero, err
	}
	return up.Close()
}

// FindMetadata returns the object row, or nil when the object does not exist.
func (b *ChunkedBucket) FindMetadata(ctx context.Context, id string) (*ObjectInfo, error) {
	if b == nil || b.db == nil {
		return nil, ErrStoreUnavailable
	}
	if !ValidObjectID(id) {
		return nil, nil
	}
	row := b.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM blob_objects WHERE bucket = ? AND id = ?`, b.name, id)
	return scanObject(row)
}

// OpenRangeRead streams bytes [start, end) of an object.
func (b *ChunkedBucket) OpenRangeRead(ctx context.Context, id string, start, end int64) (io.ReadCloser, error) {
	info, err := b.FindMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrObjectNotFound
	}
	if start < 0 || end < start || end > info.Length {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrInvalidRange, start, end, info.Length)
	}
	return newRangeReader(ctx, b, *info, start, end), nil
}

// Delete removes the object row and all of its chunks in one transaction.
func (b *ChunkedBucket) Delete(ctx context.Context, id string) (err error) {
	if b == nil || b.db == nil {
		return ErrStoreUnavailable
	}
	if !ValidObjectID(id) {
		return ErrObjectNotFound
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM blob_objects WHERE bucket = ? AND id = ?", b.name, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrObjectNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM blob_chunks WHERE object_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListMetadata returns one page of object rows ordered by upload date plus the bucket total.
func (b *ChunkedBucket) ListMetadata(ctx context.Context, opts ListOptions) ([]ObjectInfo, int, error) {
	if b == nil || b.db == nil {
		return nil, 0, ErrStoreUnavailable
	}

	var total int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blob_objects WHERE bucket = ?", b.name).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if opts.Ascending {
		order = "ASC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	skip := opts.Skip
	if skip < 0 {
		skip = 0
	}

	rows, err := b.db.QueryContext(ctx, `SELECT `+objectColumns+` FROM blob_objects WHERE bucket = ? ORDER BY upload_ms `+order+`, id `+order+` LIMIT ? OFFSET ?`, b.name, limit, skip)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	objects, err := scanObjects(rows)
	if err != nil {
		return nil, 0, err
	}
	return objects, total, nil
}

// UpdateInfo patches filename, content type, and merges metadata keys.
func (b *ChunkedBucket) UpdateInfo(ctx context.Context, id string, update InfoUpdate) (*ObjectInfo, error) {
	info, err := b.FindMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrObjectNotFound
	}

	if update.Filename != nil {
		info.Filename = strings.TrimSpace(*update.Filename)
	}
	if update.ContentType != nil {
		info.ContentType = strings.TrimSpace(*update.ContentType)
	}
	if len(update.Metadata) > 0 {
		merged := make(map[string]any, len(info.Metadata)+len(update.Metadata))
		for k, v := range info.Metadata {
			merged[k] = v
		}
		for k, v := range update.Metadata {
			merged[k] = v
		}
		info.Metadata = merged
	}

	metaJSON, err := metadataToJSON(info.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = b.db.ExecContext(ctx, `UPDATE blob_objects SET filename = ?, content_type = ?, metadata_json = ? WHERE bucket = ? AND id = ?`,
		info.Filename, nullIfEmpty(info.ContentType), metaJSON, b.name, id)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// FindByMetadata returns the first object whose metadata key equals value.
func (b *ChunkedBucket) FindByMetadata(ctx context.Context, key, value string) (*ObjectInfo, error) {
	if b == nil || b.db == nil {
		return nil, ErrStoreUnavailable
	}
	if !metadataKeyRegex.MatchString(key) {
		return nil, fmt.Errorf("invalid metadata key %q", key)
	}
	row := b.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM blob_objects WHERE bucket = ? AND json_extract(metadata_json, ?) = ? ORDER BY upload_ms ASC LIMIT 1`,
		b.name, "$."+key, value)
	return scanObject(row)
}

// CountChunks returns how many chunks are stored for an object id.
func (b *ChunkedBucket) CountChunks(ctx context.Context, id string) (int, error) {
	if b == nil || b.db == nil {
		return 0, ErrStoreUnavailable
	}
	var count int
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blob_chunks WHERE object_id = ?", id).Scan(&count)
	return count, err
}

// ListMissingContentType returns objects stored without a content type.
func (b *ChunkedBucket) ListMissingContentType(ctx context.Context) ([]ObjectInfo, error) {
	if b == nil || b.db == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := b.db.QueryContext(ctx, `SELECT `+objectColumns+` FROM blob_objects WHERE bucket = ? AND (content_type IS NULL OR content_type = '') ORDER BY upload_ms ASC`, b.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObjects(rows)
}

func (b *ChunkedBucket) readChunk(ctx context.Context, id string, n int64) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT data FROM blob_chunks WHERE object_id = ? AND n = ?", id, n).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %d of %s is missing", ErrReadFailed, n, id)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: chunk %d of %s: %v", ErrReadFailed, n, id, err)
	}
	return data, nil
}

// NewObjectID returns a fresh 32-character hex object id.
func NewObjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidObjectID reports whether id has the object id shape.
func ValidObjectID(id string) bool {
	return objectIDRegex.MatchString(id)
}

func scanObject(scanner interface {
	Scan(dest ...any) error
}) (*ObjectInfo, error) {
	info := ObjectInfo{}
	var contentType, digest, metaJSON sql.NullString
	var uploadMS int64

	err := scanner.Scan(&info.ID, &info.Bucket, &info.Filename, &contentType, &info.Length, &info.ChunkSize, &uploadMS, &digest, &metaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	info.ContentType = contentType.String
	info.Digest = digest.String
	info.UploadDate = time.UnixMilli(uploadMS).UTC()
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &info.Metadata); err != nil {
			return nil, fmt.Errorf("parse object metadata_json: %w", err)
		}
	}
	return &info, nil
}

func scanObjects(rows *sql.Rows) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	for rows.Next() {
		info, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		if info != nil {
			objects = append(objects, *info)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return objects, nil
}

func metadataToJSON(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal object metadata_json: %w", err)
	}
	return string(data), nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

package blobstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"
)

const (
	// DefaultChunkSize matches the conventional 255 KiB chunk used by chunked object stores.
	DefaultChunkSize int64 = 255 * 1024
	// DefaultPrefetchChunks bounds how many chunks a range stream buffers ahead of its consumer.
	DefaultPrefetchChunks = 2
)

var bucketNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// RegistryOptions tunes the buckets handed out by a Registry.
type RegistryOptions struct {
	ChunkSize      int64
	PrefetchChunks int
}

// Registry owns the bucket handles for one database connection. It is created by the
// process composition root and passed to every component that needs blob storage.
type Registry struct {
	db       *sql.DB
	opts     RegistryOptions
	mu       sync.Mutex
	buckets  map[string]*ChunkedBucket
	detached bool
}

var _ Provider = (*Registry)(nil)

// NewRegistry creates a registry over db. A nil db yields a registry whose buckets
// all fail with ErrStoreUnavailable.
func NewRegistry(db *sql.DB, opts RegistryOptions) *Registry {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.PrefetchChunks <= 0 {
		opts.PrefetchChunks = DefaultPrefetchChunks
	}
	return &Registry{db: db, opts: opts, buckets: map[string]*ChunkedBucket{}}
}

// Bucket returns the cached handle for name, creating it on first use.
func (r *Registry) Bucket(name string) (Bucket, error) {
	return r.ChunkedBucket(name)
}

// ChunkedBucket is Bucket with the concrete return type.
func (r *Registry) ChunkedBucket(name string) (*ChunkedBucket, error) {
	if r == nil {
		return nil, ErrStoreUnavailable
	}
	if !ValidBucketName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBucket, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil || r.detached {
		return nil, ErrStoreUnavailable
	}
	if b, ok := r.buckets[name]; ok {
		return b, nil
	}
	b := &ChunkedBucket{
		db:        r.db,
		name:      name,
		chunkSize: r.opts.ChunkSize,
		prefetch:  r.opts.PrefetchChunks,
	}
	r.buckets[name] = b
	return b, nil
}

// Detach drops every cached handle and makes later lookups fail. It is called when
// the owning database connection is closed.
func (r *Registry) Detach() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = map[string]*ChunkedBucket{}
	r.detached = true
}

// PurgeOrphanChunks deletes chunks that have no committed object row and were
// written before cutoff. Such chunks are left behind by uploads interrupted by a
// crash; in-flight uploads are protected by choosing a cutoff well in the past.
func (r *Registry) PurgeOrphanChunks(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrStoreUnavailable
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM blob_chunks
		WHERE created_ms < ?
		  AND object_id NOT IN (SELECT id FROM blob_objects)
	`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ValidBucketName reports whether name can be used as a bucket.
func ValidBucketName(name string) bool {
	return bucketNameRegex.MatchString(name)
}

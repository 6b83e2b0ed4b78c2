package blobstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo is the metadata row of one stored object. It never carries content bytes.
type ObjectInfo struct {
	ID          string         `json:"id" yaml:"id"`
	Bucket      string         `json:"bucket" yaml:"bucket"`
	Filename    string         `json:"filename" yaml:"filename"`
	ContentType string         `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Length      int64          `json:"length" yaml:"length"`
	ChunkSize   int64          `json:"chunk_size" yaml:"chunk_size"`
	UploadDate  time.Time      `json:"upload_date" yaml:"upload_date"`
	Digest      string         `json:"digest,omitempty" yaml:"digest,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// UploadOptions describes a new object. Length and upload date are derived on commit.
type UploadOptions struct {
	Filename    string
	ContentType string
	Metadata    map[string]any
}

// ListOptions controls ListMetadata pagination. Limit <= 0 returns everything after Skip.
type ListOptions struct {
	Skip      int
	Limit     int
	Ascending bool
}

// InfoUpdate patches mutable object metadata. Content bytes are immutable.
type InfoUpdate struct {
	Filename    *string
	ContentType *string
	Metadata    map[string]any
}

// Bucket is one named, append-mostly object collection.
type Bucket interface {
	Name() string
	OpenUpload(ctx context.Context, opts UploadOptions) (*UploadStream, error)
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (ObjectInfo, error)
	FindMetadata(ctx context.Context, id string) (*ObjectInfo, error)
	OpenRangeRead(ctx context.Context, id string, start, end int64) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
	ListMetadata(ctx context.Context, opts ListOptions) ([]ObjectInfo, int, error)
	UpdateInfo(ctx context.Context, id string, update InfoUpdate) (*ObjectInfo, error)
	FindByMetadata(ctx context.Context, key, value string) (*ObjectInfo, error)
	CountChunks(ctx context.Context, id string) (int, error)
	ListMissingContentType(ctx context.Context) ([]ObjectInfo, error)
}

// Provider resolves bucket handles by name.
type Provider interface {
	Bucket(name string) (Bucket, error)
}

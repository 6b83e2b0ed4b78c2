package blobstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

var errUploadClosed = errors.New("upload stream is closed")

// UploadStream accepts object bytes and splits them into sequentially numbered chunks.
// Nothing is visible to readers until Close commits the object row.
type UploadStream struct {
	ctx    context.Context
	bucket *ChunkedBucket
	id     string
	opts   UploadOptions

	buf    []byte
	next   int64
	length int64
	digest hash.Hash
	err    error
	closed bool
}

func newUploadStream(ctx context.Context, b *ChunkedBucket, id string, opts UploadOptions) (*UploadStream, error) {
	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	return &UploadStream{
		ctx:    ctx,
		bucket: b,
		id:     id,
		opts:   opts,
		buf:    make([]byte, 0, b.chunkSize),
		digest: digest,
	}, nil
}

// ID returns the object id that Close will commit.
func (u *UploadStream) ID() string {
	return u.id
}

// Write buffers p and flushes every full chunk.
func (u *UploadStream) Write(p []byte) (int, error) {
	if u.closed {
		return 0, errUploadClosed
	}
	if u.err != nil {
		return 0, u.err
	}
	if err := u.ctx.Err(); err != nil {
		u.err = err
		return 0, err
	}

	written := 0
	for len(p) > 0 {
		room := int(u.bucket.chunkSize) - len(u.buf)
		take := min(room, len(p))
		u.buf = append(u.buf, p[:take]...)
		p = p[take:]
		written += take

		if int64(len(u.buf)) == u.bucket.chunkSize {
			if err := u.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Close flushes the final partial chunk and commits the object row. On any failure
// the chunks written so far are removed and the object is never visible.
func (u *UploadStream) Close() (ObjectInfo, error) {
	var zero ObjectInfo
	if u.closed {
		return zero, errUploadClosed
	}
	if u.err != nil {
		u.Abort()
		return zero, u.err
	}
	if len(u.buf) > 0 {
		if err := u.flush(); err != nil {
			u.Abort()
			return zero, err
		}
	}

	info := ObjectInfo{
		ID:          u.id,
		Bucket:      u.bucket.name,
		Filename:    strings.TrimSpace(u.opts.Filename),
		ContentType: strings.TrimSpace(u.opts.ContentType),
		Length:      u.length,
		ChunkSize:   u.bucket.chunkSize,
		UploadDate:  time.Now().UTC().Truncate(time.Millisecond),
		Digest:      hex.EncodeToString(u.digest.Sum(nil)),
		Metadata:    u.opts.Metadata,
	}
	if info.Filename == "" {
		info.Filename = u.id
	}

	metaJSON, err := metadataToJSON(info.Metadata)
	if err != nil {
		u.Abort()
		return zero, err
	}

	_, err = u.bucket.db.ExecContext(u.ctx, `
		INSERT INTO blob_objects (id, bucket, filename, content_type, length, chunk_size, upload_ms, digest, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, info.ID, info.Bucket, info.Filename, nullIfEmpty(info.ContentType), info.Length, info.ChunkSize, info.UploadDate.UnixMilli(), info.Digest, metaJSON)
	if err != nil {
		u.err = fmt.Errorf("%w: commit %s: %v", ErrStorageWrite, u.id, err)
		u.Abort()
		return zero, u.err
	}

	u.closed = true
	return info, nil
}

// Abort discards every chunk written by this stream. It is safe to call more than once.
func (u *UploadStream) Abort() {
	if u.closed {
		return
	}
	u.closed = true
	// The request context may already be cancelled; cleanup must still run.
	ctx := context.WithoutCancel(u.ctx)
	_, _ = u.bucket.db.ExecContext(ctx, "DELETE FROM blob_chunks WHERE object_id = ?", u.id)
}

func (u *UploadStream) flush() error {
	data := u.buf
	_, err := u.bucket.db.ExecContext(u.ctx,
		"INSERT INTO blob_chunks (object_id, n, data, created_ms) VALUES (?, ?, ?, ?)",
		u.id, u.next, data, time.Now().UTC().UnixMilli())
	if err != nil {
		u.err = fmt.Errorf("%w: chunk %d of %s: %v", ErrStorageWrite, u.next, u.id, err)
		return u.err
	}
	u.digest.Write(data)
	u.length += int64(len(data))
	u.next++
	u.buf = make([]byte, 0, u.bucket.chunkSize)
	return nil
}

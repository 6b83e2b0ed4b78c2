package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeReaderCloseStopsProducer(t *testing.T) {
	b := newTestBucket(t, 4)
	info, err := b.Upload(context.Background(), bytes.NewReader(payload(400)), UploadOptions{})
	require.NoError(t, err)

	rc, err := b.OpenRangeRead(context.Background(), info.ID, 0, 400)
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := rc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Close must return once the producer exits even though most chunks were never consumed.
	require.NoError(t, rc.Close())
	require.NoError(t, rc.Close())
}

func TestRangeReaderCancelledContext(t *testing.T) {
	b := newTestBucket(t, 4)
	info, err := b.Upload(context.Background(), bytes.NewReader(payload(400)), UploadOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rc, err := b.OpenRangeRead(ctx, info.ID, 0, 400)
	require.NoError(t, err)
	defer rc.Close()

	cancel()
	_, err = io.ReadAll(rc)
	require.Error(t, err, "a cancelled stream must not look like a complete one")
	assert.NotErrorIs(t, err, io.EOF)
}

func TestRangeReaderEmptyWindow(t *testing.T) {
	b := newTestBucket(t, 4)
	info, err := b.Upload(context.Background(), bytes.NewReader(payload(8)), UploadOptions{})
	require.NoError(t, err)

	got := readAll(t, b, info.ID, 8, 8)
	assert.Empty(t, got)
}

func TestRangeReaderSurvivesConcurrentDelete(t *testing.T) {
	b := newTestBucket(t, 4)
	content := payload(64)
	info, err := b.Upload(context.Background(), bytes.NewReader(content), UploadOptions{})
	require.NoError(t, err)

	rc, err := b.OpenRangeRead(context.Background(), info.ID, 0, 64)
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, b.Delete(context.Background(), info.ID))

	got, err := io.ReadAll(rc)
	if err != nil {
		assert.ErrorIs(t, err, ErrReadFailed)
	}
	// Whatever was delivered is a prefix of the original content.
	assert.Equal(t, content[:len(got)], got)

	_, err = b.OpenRangeRead(context.Background(), info.ID, 0, 64)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

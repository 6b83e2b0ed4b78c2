package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type chunkResult struct {
	data []byte
	err  error
}

// rangeReader pipes a byte window out of a chunked object. A producer goroutine
// fetches chunks ahead of the consumer into a bounded channel; Close or a cancelled
// context stops it.
type rangeReader struct {
	ctx       context.Context
	cancel    context.CancelFunc
	chunks    <-chan chunkResult
	done      chan struct{}
	cur       []byte
	err       error
	complete  bool
	closeOnce sync.Once
}

func newRangeReader(parent context.Context, b *ChunkedBucket, info ObjectInfo, start, end int64) *rangeReader {
	ctx, cancel := context.WithCancel(parent)
	out := make(chan chunkResult, b.prefetch)
	r := &rangeReader{ctx: ctx, cancel: cancel, chunks: out, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		// complete is published to the consumer by the channel close.
		r.complete = produceChunks(ctx, b, info, start, end, out)
		close(out)
	}()
	return r
}

// produceChunks reports whether every byte of the window was handed to out.
func produceChunks(ctx context.Context, b *ChunkedBucket, info ObjectInfo, start, end int64, out chan<- chunkResult) bool {
	if end <= start {
		return true
	}
	chunkSize := info.ChunkSize
	if chunkSize <= 0 {
		send(ctx, out, chunkResult{err: fmt.Errorf("%w: object %s has no chunk size", ErrReadFailed, info.ID)})
		return false
	}

	first := start / chunkSize
	last := (end - 1) / chunkSize
	for n := first; n <= last; n++ {
		data, err := b.readChunk(ctx, info.ID, n)
		if err != nil {
			send(ctx, out, chunkResult{err: err})
			return false
		}

		chunkStart := n * chunkSize
		want := min(chunkSize, info.Length-chunkStart)
		if int64(len(data)) != want {
			send(ctx, out, chunkResult{err: fmt.Errorf("%w: chunk %d of %s has %d bytes, expected %d", ErrReadFailed, n, info.ID, len(data), want)})
			return false
		}

		lo := max(start-chunkStart, 0)
		hi := min(end-chunkStart, want)
		if !send(ctx, out, chunkResult{data: data[lo:hi]}) {
			return false
		}
	}
	return true
}

func send(ctx context.Context, out chan<- chunkResult, res chunkResult) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *rangeReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		res, ok := <-r.chunks
		switch {
		case !ok && r.complete:
			r.err = io.EOF
		case !ok:
			r.err = r.ctx.Err()
			if r.err == nil {
				r.err = fmt.Errorf("%w: stream stopped early", ErrReadFailed)
			}
		case res.err != nil:
			r.err = res.err
		default:
			r.cur = res.data
		}
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// Close stops the producer and waits for it to exit.
func (r *rangeReader) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done
	})
	return nil
}

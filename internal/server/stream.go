package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"keepsake/internal/blobstore"
)

const (
	defaultContentType = "application/octet-stream"
	immutableCache     = "public, max-age=31536000, immutable"
	streamBufferSize   = 32 << 10
)

var rangeSpecRegex = regexp.MustCompile(`^(\d*)-(\d*)$`)

// byteRange is an inclusive window [start, end] over an object of size length.
type byteRange struct {
	start   int64
	end     int64
	length  int64
	partial bool
}

func (br byteRange) size() int64 {
	return br.end - br.start + 1
}

func (br byteRange) contentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, br.length)
}

// parseRange resolves a Range header against an object length. Anything it cannot
// honour (malformed, inverted, starting past the end) falls back to the full object.
// Only the first range of a multi-range header is considered. A missing start means 0.
func parseRange(header string, length int64) byteRange {
	full := byteRange{start: 0, end: length - 1, length: length}
	header = strings.TrimSpace(header)
	if header == "" || length <= 0 {
		return full
	}
	rangeSet, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return full
	}
	if first, _, multi := strings.Cut(rangeSet, ","); multi {
		rangeSet = first
	}
	match := rangeSpecRegex.FindStringSubmatch(strings.TrimSpace(rangeSet))
	if match == nil || (match[1] == "" && match[2] == "") {
		return full
	}

	start := int64(0)
	if match[1] != "" {
		n, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return full
		}
		start = n
	}
	end := length - 1
	if match[2] != "" {
		n, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			return full
		}
		end = n
	}

	if start > end || start > length-1 {
		return full
	}
	if end > length-1 {
		end = length - 1
	}
	return byteRange{start: start, end: end, length: length, partial: true}
}

func objectETag(info *blobstore.ObjectInfo) string {
	return fmt.Sprintf(`"%s-%d-%d"`, info.ID, info.Length, info.UploadDate.UnixMilli())
}

// notModified evaluates If-None-Match first; If-Modified-Since only applies without it.
func notModified(r *http.Request, etag string, lastModified time.Time) bool {
	if inm := strings.TrimSpace(r.Header.Get("If-None-Match")); inm != "" {
		for _, candidate := range strings.Split(inm, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
				return true
			}
		}
		return false
	}

	ims := strings.TrimSpace(r.Header.Get("If-Modified-Since"))
	if ims == "" {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !lastModified.Truncate(time.Second).After(since)
}

func setValidatorHeaders(h http.Header, etag string, lastModified time.Time) {
	h.Set("ETag", etag)
	h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", immutableCache)
	h.Set("Accept-Ranges", "bytes")
}

// serveObject answers GET and HEAD for one stored object. Failures before the status
// line are bare 404 or 500 responses. Once the status line is out, a read failure
// aborts the connection so the client cannot mistake a truncated body for a full one.
func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, bucketName, id string) {
	ctx := r.Context()
	logger := s.log().With("bucket", bucketName, "object_id", id)

	bucket, err := s.blobs.Bucket(bucketName)
	if err != nil {
		logger.Error("resolve bucket", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	info, err := bucket.FindMetadata(ctx, id)
	if err != nil {
		logger.Error("find object metadata", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if info == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	etag := objectETag(info)
	lastModified := info.UploadDate.UTC()
	if notModified(r, etag, lastModified) {
		setValidatorHeaders(w.Header(), etag, lastModified)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	rng := parseRange(r.Header.Get("Range"), info.Length)
	status := http.StatusOK
	if rng.partial {
		status = http.StatusPartialContent
	}

	var body *bufio.Reader
	if r.Method != http.MethodHead && info.Length > 0 {
		rc, err := bucket.OpenRangeRead(ctx, info.ID, rng.start, rng.end+1)
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("open range read", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		// Pull the first chunk before committing to a status.
		body = bufio.NewReaderSize(rc, streamBufferSize)
		if _, err := body.Peek(1); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("read first chunk", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	h := w.Header()
	setValidatorHeaders(h, etag, lastModified)
	contentType := info.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(max(rng.size(), 0), 10))
	if rng.partial {
		h.Set("Content-Range", rng.contentRange())
	}
	w.WriteHeader(status)

	if body == nil {
		return
	}
	// Commit the status line now so an abort below reads as truncation, not silence.
	_ = http.NewResponseController(w).Flush()
	s.pipeBody(w, r, body, rng.size(), logger)
}

func (s *Server) pipeBody(w http.ResponseWriter, r *http.Request, body io.Reader, want int64, logger *slog.Logger) {
	buf := make([]byte, streamBufferSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				logger.Debug("client went away mid-stream", "written", written, "error", err)
				return
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if r.Context().Err() != nil {
				logger.Debug("stream cancelled", "written", written)
				return
			}
			logger.Error("stream read failed after headers", "written", written, "want", want, "error", readErr)
			panic(http.ErrAbortHandler)
		}
	}
	if written != want {
		logger.Error("stream ended short", "written", written, "want", want)
		panic(http.ErrAbortHandler)
	}
}

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder remembers what the handler sent so it can be logged after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Unwrap lets http.ResponseController reach the underlying writer for Flush.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withRequestLogging tags every response with a request id and logs one line
// per request. Health probes are not logged.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		attrs := func() []any {
			out := []any{
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.code()),
				slog.Int64("bytes", rec.written),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if r.Pattern != "" {
				out = append(out, slog.String("route", r.Pattern))
			}
			if rng := r.Header.Get("Range"); rng != "" {
				out = append(out, slog.String("range", rng))
			}
			return out
		}

		// Streams abort with http.ErrAbortHandler; log it and let net/http drop the connection.
		defer func() {
			if p := recover(); p != nil {
				s.log().Warn("request aborted", append(attrs(), "panic", p)...)
				panic(p)
			}
		}()
		next.ServeHTTP(rec, r)

		switch status := rec.code(); {
		case status >= 500:
			s.log().Error("request failed", attrs()...)
		case status == http.StatusTooManyRequests:
			s.log().Warn("request throttled", attrs()...)
		default:
			s.log().Debug("request complete", attrs()...)
		}
	})
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"keepsake/internal/api"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

// writeErrorReq answers with the uniform error body. 5xx details are logged
// and moved out of the user-facing message.
func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	apiErr := resolveAPIError(status, err)
	resp := api.ErrorResponse{Message: apiErr.Error(), Code: apiErr.code, ErrorCode: apiErr.errCode}

	attrs := []any{"status", status, "code", apiErr.code, "error_code", apiErr.errCode, "error", apiErr.err}
	if r != nil {
		attrs = append(attrs, "method", r.Method, "path", r.URL.Path)
	}
	if reqID := w.Header().Get(requestIDHeader); reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}

	if status >= 500 {
		s.log().Error("request error", attrs...)
		resp.Message = "internal error"
		resp.Error = apiErr.Error()
	} else {
		s.log().Debug("request rejected", attrs...)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(defaultJSONMaxBody))
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

// decodeOptionalJSONReq treats an empty body as an empty request; list endpoints
// are called both with and without a body.
func (s *Server) decodeOptionalJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func (s *Server) decodeIDReq(w http.ResponseWriter, r *http.Request, validate func(string) bool) (string, bool) {
	var req api.IDRequest
	if !s.decodeJSONReq(w, r, &req) {
		return "", false
	}
	id := strings.TrimSpace(req.ID)
	if err := requireID(id, validate); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return id, true
}

func (s *Server) decodeIDsReq(w http.ResponseWriter, r *http.Request, validate func(string) bool) ([]string, bool) {
	var req api.IDsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return nil, false
	}
	if err := requireIDs(req.IDs, validate); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return nil, false
	}
	return req.IDs, true
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func requireID(id string, validate func(string) bool) error {
	if id == "" {
		return badRequestCode(fmt.Errorf("id is required"), ErrCodeMissingRequired)
	}
	if validate != nil && !validate(id) {
		return badRequestCode(fmt.Errorf("invalid id"), ErrCodeInvalidID)
	}
	return nil
}

func requireIDs(ids []string, validate func(string) bool) error {
	if len(ids) == 0 {
		return badRequestCode(fmt.Errorf("ids are required"), ErrCodeMissingRequired)
	}
	for _, id := range ids {
		if err := requireID(strings.TrimSpace(id), validate); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseFlexibleTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD format, got %q", value)
}

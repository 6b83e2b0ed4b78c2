package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from a keepsake server. Code is the short
// string class ("not_found", "unavailable", ...) and ErrorCode the numeric
// detail code; both are empty when the peer is not a keepsake server.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	switch {
	case e.Code != "" && msg != "":
		return e.Code + ": " + msg
	case msg != "":
		return msg
	default:
		return fmt.Sprintf("keepsake api: status %d", e.Status)
	}
}

// NotFound reports whether the server answered 404 for the addressed record or object.
func (e *APIError) NotFound() bool {
	return e != nil && e.Status == http.StatusNotFound
}

// Retryable reports whether the same request may succeed later unchanged.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// healthBody is the shape of a failing /health probe.
type healthBody struct {
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body ErrorResponse
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Code
		apiErr.ErrorCode = body.ErrorCode
		apiErr.Message = firstNonBlank(body.Error, body.Message)
	}
	if apiErr.Message == "" {
		var health healthBody
		if json.Unmarshal(raw, &health) == nil && len(health.Errors) > 0 {
			apiErr.Message = health.Status + ": " + strings.Join(health.Errors, "; ")
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

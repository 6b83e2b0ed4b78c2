package server

import (
	"errors"
	"fmt"
	"net/http"

	"keepsake/internal/blobstore"
)

// apiError carries the HTTP status and both error codes a failure should be
// reported with. The first apiError in a wrap chain wins.
type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

type statusClass struct {
	code    string
	errCode int
}

// statusClasses fills in codes for errors that were never classified.
var statusClasses = map[int]statusClass{
	http.StatusBadRequest:          {"invalid_argument", ErrCodeInvalidArgument},
	http.StatusNotFound:            {"not_found", ErrCodeObjectNotFound},
	http.StatusTooManyRequests:     {"resource_exhausted", ErrCodeResourceExhausted},
	http.StatusInternalServerError: {"internal", ErrCodeInternal},
	http.StatusServiceUnavailable:  {"unavailable", ErrCodeStoreUnavailable},
}

// resolveAPIError returns the apiError wrapped in err, completing any missing
// fields from status.
func resolveAPIError(status int, err error) apiError {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	var out apiError
	if !errors.As(err, &out) {
		out = apiError{err: err}
	}
	if out.status == 0 {
		out.status = status
	}
	class := statusClasses[out.status]
	if out.code == "" {
		out.code = class.code
	}
	if out.errCode == 0 {
		out.errCode = class.errCode
	}
	return out
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	var existing apiError
	if errors.As(err, &existing) && existing.status != 0 {
		return existing
	}
	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func unsupportedMediaType(contentType string) error {
	if contentType == "" {
		contentType = "unknown"
	}
	return makeAPIError(http.StatusBadRequest, "unsupported_media_type", ErrCodeUnsupportedMediaType,
		fmt.Errorf("unsupported content type for media: %s", contentType))
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

// blobFailure maps chunk store sentinels onto API errors.
func blobFailure(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrObjectNotFound):
		return notFoundCode(err, ErrCodeObjectNotFound)
	case errors.Is(err, blobstore.ErrInvalidBucket):
		return badRequestCode(err, ErrCodeInvalidBucket)
	case errors.Is(err, blobstore.ErrStorageWrite):
		return makeAPIError(http.StatusInternalServerError, "storage_write", ErrCodeStorageWrite, err)
	case errors.Is(err, blobstore.ErrReadFailed):
		return makeAPIError(http.StatusInternalServerError, "read_failed", ErrCodeReadFailed, err)
	case errors.Is(err, blobstore.ErrStoreUnavailable):
		return makeAPIError(http.StatusServiceUnavailable, "unavailable", ErrCodeStoreUnavailable, err)
	default:
		return internalError(err)
	}
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.status != 0 {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"keepsake/internal/api"
	"keepsake/internal/models"
)

const momentFileField = "file"

// momentForm is a moment request read from multipart fields or a JSON body.
// Nil fields were not sent.
type momentForm struct {
	ID       *string
	Type     *string
	Title    *string
	Date     *string
	Body     *string
	Filename *string
	Tags     *[]string
	Meta     map[string]any
	File     *MediaUpload
}

// momentJSON is the JSON body of text-only moment requests.
type momentJSON struct {
	ID    *string         `json:"id"`
	Type  *string         `json:"type"`
	Title *string         `json:"title"`
	Date  *string         `json:"date"`
	Body  *string         `json:"body"`
	Tags  json.RawMessage `json:"tags"`
	Meta  map[string]any  `json:"meta"`
}

func (s *Server) handleCreateMoment(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		form, err := s.readMomentForm(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		defer closeUpload(form.File)

		in := CreateMomentInput{
			Type:  deref(form.Type),
			Title: deref(form.Title),
			Date:  deref(form.Date),
			Body:  deref(form.Body),
			Meta:  form.Meta,
			File:  form.File,
		}
		if form.Tags != nil {
			in.Tags = *form.Tags
		}

		result, err := s.moments.Create(r.Context(), in)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.MomentResponse{Success: true, Data: toAPIMoment(*result.Moment, s.baseURL(r))})
	})
}

func (s *Server) handleUpdateMoment(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		form, err := s.readMomentForm(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		defer closeUpload(form.File)

		id := strings.TrimSpace(deref(form.ID))
		if err := requireID(id, validateMomentID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		in := UpdateMomentInput{
			ID:    id,
			Type:  form.Type,
			Title: nonEmpty(form.Title),
			Date:  nonEmpty(form.Date),
			Body:  form.Body,
			Tags:  form.Tags,
			Meta:  form.Meta,
			File:  form.File,
		}
		result, err := s.moments.Update(r.Context(), in)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.MomentResponse{Success: true, Data: toAPIMoment(*result.Moment, s.baseURL(r))})
	})
}

func (s *Server) handleDeleteMoment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIDReq(w, r, validateMomentID)
	if !ok {
		return
	}

	result, err := s.moments.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Success:         true,
		Message:         "Moment deleted",
		CleanupFailures: countFailed(result.Cleanup),
	})
}

func (s *Server) handleDeleteManyMoments(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeIDsReq(w, r, validateMomentID)
	if !ok {
		return
	}

	result, err := s.moments.DeleteMany(r.Context(), ids)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Success:         true,
		Message:         "Moments deleted",
		Count:           &result.Deleted,
		CleanupFailures: countFailed(result.Cleanup),
	})
}

func (s *Server) handleListMoments(w http.ResponseWriter, r *http.Request) {
	var req api.MomentListRequest
	if !s.decodeOptionalJSONReq(w, r, &req) {
		return
	}

	filter, pg, err := parseMomentListRequest(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	moments, total, err := s.moments.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data := toAPIMoments(moments, s.baseURL(r))
	s.writeJSON(w, http.StatusOK, api.MomentListResponse{
		Success:  true,
		Page:     pg.Page,
		PageSize: len(data),
		Total:    total,
		HasNext:  pg.hasNext(total),
		Data:     data,
	})
}

func (s *Server) handleMomentMedia(w http.ResponseWriter, r *http.Request) {
	bucket, err := normalizeBucket(r.PathValue("bucket"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if !validateObjectID(id) {
		s.writeServiceError(w, r, badRequestCode(fmt.Errorf("invalid file id"), ErrCodeInvalidID))
		return
	}
	s.serveObject(w, r, bucket, id)
}

// readMomentForm accepts multipart/form-data (with an optional file part) or JSON.
func (s *Server) readMomentForm(w http.ResponseWriter, r *http.Request) (momentForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body momentJSON
		if err := decodeJSON(w, r, &body); err != nil {
			return momentForm{}, classifyDecodeJSONError(err)
		}
		form := momentForm{ID: body.ID, Type: body.Type, Title: body.Title, Date: body.Date, Body: body.Body, Meta: body.Meta}
		if len(body.Tags) > 0 && string(body.Tags) != "null" {
			tags, err := parseTagsValue(string(body.Tags))
			if err != nil {
				return momentForm{}, err
			}
			form.Tags = &tags
		}
		return form, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MultipartMemory); err != nil {
		return momentForm{}, classifyMultipartError(err)
	}

	mf := r.MultipartForm
	form := momentForm{
		ID:       formValue(mf, "id"),
		Type:     formValue(mf, "type"),
		Title:    formValue(mf, "title"),
		Date:     formValue(mf, "date"),
		Body:     formValue(mf, "body"),
		Filename: formValue(mf, "filename"),
	}

	if values, ok := mf.Value["tags"]; ok {
		tags := make([]string, 0, len(values))
		for _, raw := range values {
			parsed, err := parseTagsValue(raw)
			if err != nil {
				return momentForm{}, err
			}
			tags = append(tags, parsed...)
		}
		form.Tags = &tags
	}
	if raw := formValue(mf, "meta"); raw != nil && strings.TrimSpace(*raw) != "" {
		if err := json.Unmarshal([]byte(*raw), &form.Meta); err != nil {
			return momentForm{}, badRequestCode(fmt.Errorf("meta must be a JSON object: %w", err), ErrCodeInvalidArgument)
		}
	}

	file, err := formFile(mf, momentFileField, deref(form.Filename))
	if err != nil {
		return momentForm{}, err
	}
	form.File = file
	return form, nil
}

// parseTagsValue accepts a JSON array of strings or a comma separated list.
func parseTagsValue(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(trimmed), &tags); err != nil {
			return nil, badRequestCode(fmt.Errorf("tags must be an array of strings"), ErrCodeInvalidArgument)
		}
		return tags, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var single string
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil, badRequestCode(fmt.Errorf("tags must be an array of strings"), ErrCodeInvalidArgument)
		}
		trimmed = single
	}
	return splitCSV(trimmed), nil
}

func formValue(form *multipart.Form, key string) *string {
	if form == nil {
		return nil
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	value := values[0]
	return &value
}

// formFile opens the named file part. A missing part is not an error.
func formFile(form *multipart.Form, field, filename string) (*MediaUpload, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	header := form.File[field][0]
	file, err := header.Open()
	if err != nil {
		return nil, badRequestCode(fmt.Errorf("open %s: %w", field, err), ErrCodeInvalidMultipart)
	}
	name := firstNonEmpty(filename, header.Filename)
	return &MediaUpload{
		Filename:    name,
		ContentType: models.GuessContentType(header.Header.Get("Content-Type"), name, ""),
		Reader:      file,
	}, nil
}

func closeUpload(file *MediaUpload) {
	if file == nil {
		return
	}
	if closer, ok := file.Reader.(io.Closer); ok {
		_ = closer.Close()
	}
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidMultipart)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// nonEmpty drops blank optional fields so they leave the stored value alone.
func nonEmpty(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}

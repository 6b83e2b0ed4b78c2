package server

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"keepsake/internal/api"
	"keepsake/internal/models"
)

const videoFileField = "video"

func (s *Server) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		in, err := s.readVideoForm(w, r, true)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		defer closeUpload(in.File)

		info, err := s.videos.Create(r.Context(), in.File, in.Metadata)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.VideoResponse{
			Success: true,
			Message: "Video uploaded successfully",
			File:    toVideoFile(info),
		})
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	var req api.VideoListRequest
	if !s.decodeOptionalJSONReq(w, r, &req) {
		return
	}

	pg := parsePagination(req.Page, req.Limit, false)
	files, total, err := s.videos.List(r.Context(), pg, isAscending(req.Sort))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{
		Success:  true,
		Page:     pg.Page,
		PageSize: len(files),
		Total:    total,
		HasNext:  pg.offset()+len(files) < total,
		Data:     toVideoFiles(files),
	})
}

func (s *Server) handleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		in, err := s.readVideoForm(w, r, false)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		defer closeUpload(in.File)

		if err := requireID(in.ID, validateObjectID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		result, err := s.videos.Update(r.Context(), in)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		message := "Video updated successfully"
		if in.File != nil {
			message = "Video content replaced successfully"
		}
		s.writeJSON(w, http.StatusOK, api.VideoResponse{Success: true, Message: message, File: toVideoFile(result.File)})
	})
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIDReq(w, r, validateObjectID)
	if !ok {
		return
	}
	if err := s.videos.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Success: true, Message: "Video deleted successfully"})
}

func (s *Server) handleDeleteManyVideos(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeIDsReq(w, r, validateObjectID)
	if !ok {
		return
	}
	result := s.videos.DeleteMany(r.Context(), ids)
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Success:         true,
		Message:         "Videos deleted successfully",
		Count:           &result.Deleted,
		CleanupFailures: countFailed(result.Cleanup),
	})
}

func (s *Server) handleStreamVideo(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !validateObjectID(id) {
		s.writeServiceError(w, r, badRequestCode(fmt.Errorf("invalid id"), ErrCodeInvalidID))
		return
	}
	s.serveObject(w, r, models.BucketVideos, id)
}

// readVideoForm reads {id, filename, metadata} plus the optional video part. Create
// requires multipart; update also takes a plain JSON body.
func (s *Server) readVideoForm(w http.ResponseWriter, r *http.Request, requireMultipart bool) (VideoUpdate, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if requireMultipart {
			return VideoUpdate{}, badRequestCode(fmt.Errorf("no video file uploaded"), ErrCodeMissingRequired)
		}
		var req api.VideoUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return VideoUpdate{}, classifyDecodeJSONError(err)
		}
		return VideoUpdate{ID: strings.TrimSpace(req.ID), Filename: req.Filename, Metadata: req.Metadata}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MultipartMemory); err != nil {
		return VideoUpdate{}, classifyMultipartError(err)
	}
	mf := r.MultipartForm

	in := VideoUpdate{
		ID:       strings.TrimSpace(deref(formValue(mf, "id"))),
		Filename: strings.TrimSpace(deref(formValue(mf, "filename"))),
	}
	if raw := formValue(mf, "metadata"); raw != nil && strings.TrimSpace(*raw) != "" {
		if err := json.Unmarshal([]byte(*raw), &in.Metadata); err != nil {
			return VideoUpdate{}, badRequestCode(fmt.Errorf("metadata must be a JSON object: %w", err), ErrCodeInvalidArgument)
		}
	}
	file, err := formFile(mf, videoFileField, in.Filename)
	if err != nil {
		return VideoUpdate{}, err
	}
	in.File = file
	return in, nil
}

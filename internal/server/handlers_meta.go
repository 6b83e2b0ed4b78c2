package server

import (
	"net/http"

	"keepsake/internal/models"
)

type healthResponse struct {
	Status string   `json:"status"`
	Media  string   `json:"media"`
	Errors []string `json:"errors,omitempty"`
}

// handleHealth probes every bucket the API serves from. A detached or
// closed blob store turns the probe into a 503 so supervisors can restart.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Media: "ok"}
	for _, name := range []string{models.BucketVideos, models.BucketImages, models.BucketMomentVideo, models.BucketFiles} {
		if _, err := s.blobs.Bucket(name); err != nil {
			resp.Errors = append(resp.Errors, name+": "+err.Error())
		}
	}
	if len(resp.Errors) == 0 {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Status, resp.Media = "degraded", "unavailable"
	s.log().Warn("health probe failed", "errors", resp.Errors)
	s.writeJSON(w, http.StatusServiceUnavailable, resp)
}

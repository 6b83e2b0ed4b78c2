package server

import (
	"net/http"
	"net/url"
	"strings"

	"keepsake/internal/api"
	"keepsake/internal/blobstore"
	"keepsake/internal/models"
)

func momentMediaURL(ref *models.MediaRef) string {
	return "/moments/media/" + url.PathEscape(ref.Bucket) + "/" + url.PathEscape(ref.ObjectID)
}

func videoStreamURL(id string) string {
	return "/videos/stream/" + url.PathEscape(id)
}

// baseURL is the scheme and host clients should use for absolute media URLs.
func (s *Server) baseURL(r *http.Request) string {
	if s.opts.PublicBaseURL != "" {
		return s.opts.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ","); strings.TrimSpace(proto) != "" {
		scheme = strings.ToLower(strings.TrimSpace(proto))
	}
	return scheme + "://" + r.Host
}

// toAPIMoment renders a moment for the wire. Media variants never expose a body.
func toAPIMoment(m models.Moment, base string) api.Moment {
	out := api.Moment{
		ID:        m.ID,
		Type:      string(m.Type),
		Title:     m.Title,
		Date:      m.Date,
		Tags:      m.Tags,
		Meta:      m.Meta,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if ref := m.Media(); ref != nil {
		out.Media = ref
		out.MediaURL = momentMediaURL(ref)
		out.MediaURLAbsolute = base + out.MediaURL
	} else if body, ok := m.Body(); ok {
		out.Body = &body
	}
	return out
}

func toAPIMoments(moments []models.Moment, base string) []api.Moment {
	out := make([]api.Moment, 0, len(moments))
	for _, m := range moments {
		out = append(out, toAPIMoment(m, base))
	}
	return out
}

func toVideoFile(info blobstore.ObjectInfo) api.VideoFile {
	metadata := info.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return api.VideoFile{
		ID:          info.ID,
		Filename:    info.Filename,
		Length:      info.Length,
		ContentType: info.ContentType,
		UploadDate:  info.UploadDate,
		Metadata:    metadata,
		StreamURL:   videoStreamURL(info.ID),
	}
}

func toVideoFiles(infos []blobstore.ObjectInfo) []api.VideoFile {
	out := make([]api.VideoFile, 0, len(infos))
	for _, info := range infos {
		out = append(out, toVideoFile(info))
	}
	return out
}

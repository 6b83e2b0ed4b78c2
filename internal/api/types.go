package api

import (
	"time"

	"keepsake/internal/models"
)

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// MessageResponse acknowledges a mutation without returning a record.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
	// CleanupFailures counts blobs that could not be removed after their parent record was deleted.
	CleanupFailures int `json:"cleanupFailures,omitempty"`
}

// IDRequest addresses one record.
type IDRequest struct {
	ID string `json:"id"`
}

// IDsRequest addresses many records.
type IDsRequest struct {
	IDs []string `json:"ids"`
}

// Moment is the wire form of a moment, with derived media URLs.
type Moment struct {
	ID               string           `json:"id"`
	Type             string           `json:"type"`
	Title            string           `json:"title"`
	Date             time.Time        `json:"date"`
	Body             *string          `json:"body,omitempty"`
	Media            *models.MediaRef `json:"media,omitempty"`
	Tags             []string         `json:"tags"`
	Meta             map[string]any   `json:"meta,omitempty"`
	MediaURL         string           `json:"mediaUrl,omitempty"`
	MediaURLAbsolute string           `json:"mediaUrlAbsolute,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// MomentResponse wraps a single moment.
type MomentResponse struct {
	Success bool   `json:"success"`
	Data    Moment `json:"data"`
}

// MomentListRequest is the body of POST /moments/list.
type MomentListRequest struct {
	Page  FlexString `json:"page"`
	Limit FlexString `json:"limit"`
	Type  string     `json:"type,omitempty"`
	From  string     `json:"from,omitempty"`
	To    string     `json:"to,omitempty"`
	Sort  string     `json:"sort,omitempty"`
}

// MomentListResponse is one page of moments.
type MomentListResponse struct {
	Success  bool     `json:"success"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Total    int      `json:"total"`
	HasNext  bool     `json:"hasNext"`
	Data     []Moment `json:"data"`
}

// VideoFile is the light metadata of a stored video.
type VideoFile struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Length      int64          `json:"length"`
	ContentType string         `json:"contentType,omitempty"`
	UploadDate  time.Time      `json:"uploadDate"`
	Metadata    map[string]any `json:"metadata"`
	StreamURL   string         `json:"streamUrl"`
}

// VideoResponse wraps one video after create or update.
type VideoResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	File    VideoFile `json:"file"`
}

// VideoListRequest is the body of POST /videos/list.
type VideoListRequest struct {
	Page  FlexString `json:"page"`
	Limit FlexString `json:"limit"`
	Sort  string     `json:"sort,omitempty"`
}

// VideoListResponse is one page of videos.
type VideoListResponse struct {
	Success  bool        `json:"success"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	Total    int         `json:"total"`
	HasNext  bool        `json:"hasNext"`
	Data     []VideoFile `json:"data"`
}

// VideoUpdateRequest renames a video or merges metadata keys.
type VideoUpdateRequest struct {
	ID       string         `json:"id"`
	Filename string         `json:"filename,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PoemCreateRequest creates a poem.
type PoemCreateRequest struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// PoemUpdateRequest replaces the provided poem fields.
type PoemUpdateRequest struct {
	ID    string    `json:"id"`
	Title *string   `json:"title,omitempty"`
	Lines *[]string `json:"lines,omitempty"`
}

// PoemResponse wraps one poem.
type PoemResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    models.Poem `json:"data"`
}

// PoemListResponse wraps every poem.
type PoemListResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    []models.Poem `json:"data"`
}

// GalleryCreateRequest creates a gallery image.
type GalleryCreateRequest struct {
	Src     string `json:"src"`
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// GalleryUpdateRequest replaces the provided gallery fields.
type GalleryUpdateRequest struct {
	ID      string  `json:"id"`
	Src     *string `json:"src,omitempty"`
	Title   *string `json:"title,omitempty"`
	Caption *string `json:"caption,omitempty"`
}

// GalleryListRequest optionally limits the gallery listing.
type GalleryListRequest struct {
	Limit FlexString `json:"limit"`
}

// GalleryImageResponse wraps one gallery image.
type GalleryImageResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    models.GalleryImage `json:"data"`
}

// GalleryListResponse wraps a gallery listing.
type GalleryListResponse struct {
	Success bool                  `json:"success"`
	Count   int                   `json:"count"`
	Data    []models.GalleryImage `json:"data"`
}

// HomeCardCreateRequest creates a home card.
type HomeCardCreateRequest struct {
	Href  string `json:"href"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Icon  string `json:"icon"`
}

// CountsResponse is the dashboard summary.
type CountsResponse struct {
	Success   bool    `json:"success"`
	Poems     int     `json:"poems"`
	Galleries int     `json:"galleries"`
	Moments   int     `json:"moments"`
	Videos    int     `json:"videos"`
	HeroImg   *string `json:"heroImg"`
}

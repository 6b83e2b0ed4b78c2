package models

import "time"

// Poem is a titled list of lines.
type Poem struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// GalleryImage is a gallery entry whose src is an image URL or data URI.
type GalleryImage struct {
	ID        string    `json:"id"`
	Src       string    `json:"src"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HomeCard is a navigation card shown on the home page.
type HomeCard struct {
	ID        string    `json:"id"`
	Href      string    `json:"href"`
	Title     string    `json:"title"`
	Desc      string    `json:"desc"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LegacyVideo is the deprecated record shape that embedded raw video bytes.
// Current code only reads it during migration.
type LegacyVideo struct {
	ID          string
	Filename    string
	Data        []byte
	ContentType string
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
}

package store

import (
	"context"

	"keepsake/internal/models"
)

// MomentStore abstracts moment record storage.
type MomentStore interface {
	CreateMoment(ctx context.Context, moment *models.Moment) error
	GetMoment(ctx context.Context, id string) (*models.Moment, error)
	SaveMoment(ctx context.Context, moment *models.Moment) (bool, error)
	DeleteMoment(ctx context.Context, id string) (*models.Moment, error)
	DeleteMoments(ctx context.Context, ids []string) ([]models.Moment, error)
	ListMoments(ctx context.Context, filter MomentFilter) ([]models.Moment, error)
	CountMoments(ctx context.Context, filter MomentFilter) (int, error)
}

// PoemStore abstracts poem storage.
type PoemStore interface {
	CreatePoem(ctx context.Context, poem *models.Poem) error
	ListPoems(ctx context.Context) ([]models.Poem, error)
	UpdatePoem(ctx context.Context, id string, update PoemUpdate) (*models.Poem, error)
	DeletePoems(ctx context.Context, ids []string) (int, error)
	CountPoems(ctx context.Context) (int, error)
}

// GalleryStore abstracts gallery image storage.
type GalleryStore interface {
	CreateGalleryImage(ctx context.Context, image *models.GalleryImage) error
	ListGalleryImages(ctx context.Context, limit int) ([]models.GalleryImage, error)
	FindGalleryImageByTitle(ctx context.Context, title string) (*models.GalleryImage, error)
	UpdateGalleryImage(ctx context.Context, id string, update GalleryUpdate) (*models.GalleryImage, error)
	DeleteGalleryImage(ctx context.Context, id string) (*models.GalleryImage, error)
	DeleteGalleryImages(ctx context.Context, ids []string) (int, error)
	CountGalleryImages(ctx context.Context) (int, error)
}

// HomeCardStore abstracts home card storage.
type HomeCardStore interface {
	CreateHomeCard(ctx context.Context, card *models.HomeCard) error
	ListHomeCards(ctx context.Context) ([]models.HomeCard, error)
}

// LegacyVideoSource is the read side of the legacy embedded video table.
type LegacyVideoSource interface {
	CountLegacyVideos(ctx context.Context) (int, error)
	LegacyVideosAfter(ctx context.Context, afterID string, limit int) ([]models.LegacyVideo, error)
}

// LegacyVideoSink writes legacy records. Only the seeding import uses it.
type LegacyVideoSink interface {
	LegacyVideoExists(ctx context.Context, id string) (bool, error)
	InsertLegacyVideo(ctx context.Context, video models.LegacyVideo) error
}

var (
	_ MomentStore       = (*Store)(nil)
	_ PoemStore         = (*Store)(nil)
	_ GalleryStore      = (*Store)(nil)
	_ HomeCardStore     = (*Store)(nil)
	_ LegacyVideoSource = (*Store)(nil)
	_ LegacyVideoSink   = (*Store)(nil)
)

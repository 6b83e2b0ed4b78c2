package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"keepsake/internal/blobstore"
	"keepsake/internal/models"
)

// VideoUpdate renames a video, merges metadata keys, or replaces its content.
type VideoUpdate struct {
	ID       string
	Filename string
	Metadata map[string]any
	File     *MediaUpload
}

// VideoResult is the video a mutation produced plus any blob cleanup it triggered.
type VideoResult struct {
	File    blobstore.ObjectInfo
	Cleanup []CleanupOutcome
}

// VideoService manages standalone video assets. The stored object is the record.
type VideoService struct {
	blobs   blobstore.Provider
	cleaner blobCleaner
	logger  *slog.Logger
}

// NewVideoService constructs a VideoService.
func NewVideoService(blobs blobstore.Provider, logger *slog.Logger, cleanupConcurrency int) *VideoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoService{
		blobs:   blobs,
		cleaner: blobCleaner{blobs: blobs, logger: logger, concurrency: cleanupConcurrency},
		logger:  logger,
	}
}

func (s *VideoService) bucket() (blobstore.Bucket, error) {
	bucket, err := s.blobs.Bucket(models.BucketVideos)
	if err != nil {
		return nil, blobFailure(err)
	}
	return bucket, nil
}

// Create stores a new video.
func (s *VideoService) Create(ctx context.Context, file *MediaUpload, metadata map[string]any) (blobstore.ObjectInfo, error) {
	if file == nil {
		return blobstore.ObjectInfo{}, badRequestCode(fmt.Errorf("no video file uploaded"), ErrCodeMissingRequired)
	}
	if err := s.classify(file); err != nil {
		return blobstore.ObjectInfo{}, err
	}
	stored := make(map[string]any, len(metadata)+1)
	maps.Copy(stored, metadata)
	stored["contentType"] = file.ContentType
	return uploadBlob(ctx, s.blobs, models.BucketVideos, file, stored)
}

// List returns one page of videos ordered by upload date and the bucket total.
func (s *VideoService) List(ctx context.Context, pg pagination, ascending bool) ([]blobstore.ObjectInfo, int, error) {
	bucket, err := s.bucket()
	if err != nil {
		return nil, 0, err
	}
	files, total, err := bucket.ListMetadata(ctx, blobstore.ListOptions{
		Skip:      pg.offset(),
		Limit:     pg.Limit,
		Ascending: ascending,
	})
	if err != nil {
		return nil, 0, blobFailure(err)
	}
	return files, total, nil
}

// Update applies in. Content replacement uploads the new bytes under a new id and
// removes the old object afterwards, best effort.
func (s *VideoService) Update(ctx context.Context, in VideoUpdate) (VideoResult, error) {
	var result VideoResult

	bucket, err := s.bucket()
	if err != nil {
		return result, err
	}
	current, err := bucket.FindMetadata(ctx, in.ID)
	if err != nil {
		return result, blobFailure(err)
	}
	if current == nil {
		return result, notFoundCode(fmt.Errorf("video not found"), ErrCodeVideoNotFound)
	}

	filename := strings.TrimSpace(in.Filename)
	if in.File == nil {
		if filename == "" && len(in.Metadata) == 0 {
			return result, badRequestCode(fmt.Errorf("nothing to update"), ErrCodeNothingToUpdate)
		}
		update := blobstore.InfoUpdate{Metadata: in.Metadata}
		if filename != "" {
			update.Filename = &filename
		}
		updated, err := bucket.UpdateInfo(ctx, in.ID, update)
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return result, notFoundCode(fmt.Errorf("video not found"), ErrCodeVideoNotFound)
		}
		if err != nil {
			return result, blobFailure(err)
		}
		result.File = *updated
		return result, nil
	}

	if err := s.classify(in.File); err != nil {
		return result, err
	}
	if filename != "" {
		in.File.Filename = filename
	}
	metadata := maps.Clone(current.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	maps.Copy(metadata, in.Metadata)
	metadata["replaces"] = current.ID
	metadata["contentType"] = in.File.ContentType

	info, err := uploadBlob(ctx, s.blobs, models.BucketVideos, in.File, metadata)
	if err != nil {
		return result, err
	}
	result.File = info
	result.Cleanup = append(result.Cleanup, s.cleaner.remove(ctx, blobTarget{Bucket: models.BucketVideos, ObjectID: current.ID}))
	return result, nil
}

// Delete removes one video.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	if err := bucket.Delete(ctx, id); err != nil {
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return notFoundCode(fmt.Errorf("video not found"), ErrCodeVideoNotFound)
		}
		return blobFailure(err)
	}
	return nil
}

// DeleteMany removes every listed video. Per-item failures are logged and skipped.
func (s *VideoService) DeleteMany(ctx context.Context, ids []string) DeleteResult {
	ids = uniqueIDs(ids)
	targets := make([]blobTarget, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, blobTarget{Bucket: models.BucketVideos, ObjectID: id})
	}

	result := DeleteResult{Cleanup: s.cleaner.removeAll(ctx, targets)}
	for _, outcome := range result.Cleanup {
		if !outcome.Failed() && !outcome.Missing {
			result.Deleted++
		}
	}
	return result
}

// classify fills in a missing content type from the filename and rejects non-video files.
func (s *VideoService) classify(file *MediaUpload) error {
	file.ContentType = models.GuessContentType(file.ContentType, file.Filename, "")
	bucket, _, ok := models.MediaBucketFor(file.ContentType)
	if !ok || bucket != models.BucketMomentVideo {
		return unsupportedMediaType(file.ContentType)
	}
	return nil
}

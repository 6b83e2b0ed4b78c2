package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"keepsake/internal/blobstore"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

// MediaUpload is a file part accompanying a moment or video request.
type MediaUpload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// CreateMomentInput carries the raw fields of a moment create.
type CreateMomentInput struct {
	// Type may be empty when File is set; it is then derived from the file.
	Type  string
	Title string
	Date  string
	Body  string
	Tags  []string
	Meta  map[string]any
	File  *MediaUpload
}

// UpdateMomentInput carries the fields to change. Nil fields are left alone,
// Meta keys are merged and Tags replace the previous set.
type UpdateMomentInput struct {
	ID    string
	Type  *string
	Title *string
	Date  *string
	Body  *string
	Tags  *[]string
	Meta  map[string]any
	File  *MediaUpload
}

// MomentResult is a persisted moment plus the blob cleanup its mutation triggered.
type MomentResult struct {
	Moment  *models.Moment
	Cleanup []CleanupOutcome
}

// DeleteResult reports a bulk delete. Cleanup failures never reduce Deleted.
type DeleteResult struct {
	Deleted int
	Cleanup []CleanupOutcome
}

// MomentService keeps moment records and their media blobs consistent.
type MomentService struct {
	store   store.MomentStore
	blobs   blobstore.Provider
	cleaner blobCleaner
	logger  *slog.Logger
}

// NewMomentService constructs a MomentService.
func NewMomentService(store store.MomentStore, blobs blobstore.Provider, logger *slog.Logger, cleanupConcurrency int) *MomentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MomentService{
		store:   store,
		blobs:   blobs,
		cleaner: blobCleaner{blobs: blobs, logger: logger, concurrency: cleanupConcurrency},
		logger:  logger,
	}
}

// Create persists a new moment. Media is uploaded first and the record is written
// only once the upload has committed.
func (s *MomentService) Create(ctx context.Context, in CreateMomentInput) (MomentResult, error) {
	var result MomentResult

	momentType, err := s.resolveType(in.Type, in.File)
	if err != nil {
		return result, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return result, badRequestCode(fmt.Errorf("title is required"), ErrCodeMissingRequired)
	}
	if strings.TrimSpace(in.Date) == "" {
		return result, badRequestCode(fmt.Errorf("date is required"), ErrCodeMissingRequired)
	}
	date, err := parseMomentDate(in.Date)
	if err != nil {
		return result, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return result, err
	}

	moment := &models.Moment{
		Type:  momentType,
		Title: title,
		Date:  date,
		Tags:  tags,
		Meta:  in.Meta,
	}

	var uploaded *models.MediaRef
	if momentType.IsMedia() {
		if in.File == nil {
			return result, badRequestCode(fmt.Errorf("a file is required for %s moments", momentType), ErrCodeMissingRequired)
		}
		ref, err := s.uploadMedia(ctx, momentType, in.File)
		if err != nil {
			return result, err
		}
		uploaded = &ref
		moment.Payload = ref
	} else {
		if in.File != nil {
			s.logger.Debug("ignoring file on text moment", "type", momentType, "filename", in.File.Filename)
		}
		moment.Payload = models.TextBody{Text: in.Body}
	}

	if err := s.store.CreateMoment(ctx, moment); err != nil {
		if uploaded != nil {
			result.Cleanup = append(result.Cleanup, s.cleaner.remove(ctx, targetOf(uploaded)))
		}
		return result, storeFailure(err)
	}

	result.Moment = moment
	return result, nil
}

// Update changes a moment. A new file is uploaded before the record is saved and the
// previous blob is removed afterwards; that removal is best effort.
func (s *MomentService) Update(ctx context.Context, in UpdateMomentInput) (MomentResult, error) {
	var result MomentResult

	existing, err := s.store.GetMoment(ctx, in.ID)
	if err != nil {
		return result, storeFailure(err)
	}
	if existing == nil {
		return result, notFoundCode(fmt.Errorf("moment not found"), ErrCodeMomentNotFound)
	}

	updated := *existing
	updated.Tags = slices.Clone(existing.Tags)
	updated.Meta = maps.Clone(existing.Meta)

	if (in.Type != nil && strings.TrimSpace(*in.Type) != "") || in.File != nil {
		raw := ""
		if in.Type != nil {
			raw = *in.Type
		}
		updated.Type, err = s.resolveType(raw, in.File)
		if err != nil {
			return result, err
		}
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return result, badRequestCode(fmt.Errorf("title must not be empty"), ErrCodeMissingRequired)
		}
		updated.Title = title
	}
	if in.Date != nil {
		updated.Date, err = parseMomentDate(*in.Date)
		if err != nil {
			return result, err
		}
	}
	if in.Tags != nil {
		updated.Tags, err = normalizeTags(*in.Tags)
		if err != nil {
			return result, err
		}
	}
	if len(in.Meta) > 0 {
		if updated.Meta == nil {
			updated.Meta = map[string]any{}
		}
		maps.Copy(updated.Meta, in.Meta)
	}

	previous := existing.Media()
	var uploaded *models.MediaRef
	switch {
	case updated.Type.IsMedia() && in.File != nil:
		ref, err := s.uploadMedia(ctx, updated.Type, in.File)
		if err != nil {
			return result, err
		}
		uploaded = &ref
		updated.Payload = ref
	case updated.Type.IsMedia() && previous != nil:
		updated.Payload = *previous
	case updated.Type.IsMedia():
		return result, badRequestCode(fmt.Errorf("a file is required to change a text moment to %s", updated.Type), ErrCodeMissingRequired)
	default:
		body, _ := existing.Body()
		if in.Body != nil {
			body = *in.Body
		}
		updated.Payload = models.TextBody{Text: body}
	}

	found, err := s.store.SaveMoment(ctx, &updated)
	if err != nil || !found {
		if uploaded != nil {
			result.Cleanup = append(result.Cleanup, s.cleaner.remove(ctx, targetOf(uploaded)))
		}
		if err != nil {
			return result, storeFailure(err)
		}
		return result, notFoundCode(fmt.Errorf("moment not found"), ErrCodeMomentNotFound)
	}

	// The old blob is orphaned once the record points elsewhere or carries no media.
	if previous != nil && (uploaded != nil || !updated.Type.IsMedia()) {
		result.Cleanup = append(result.Cleanup, s.cleaner.remove(ctx, targetOf(previous)))
	}

	result.Moment = &updated
	return result, nil
}

// Delete removes the record first, then its blob.
func (s *MomentService) Delete(ctx context.Context, id string) (MomentResult, error) {
	var result MomentResult

	deleted, err := s.store.DeleteMoment(ctx, id)
	if err != nil {
		return result, storeFailure(err)
	}
	if deleted == nil {
		return result, notFoundCode(fmt.Errorf("moment not found"), ErrCodeMomentNotFound)
	}
	if ref := deleted.Media(); ref != nil {
		result.Cleanup = append(result.Cleanup, s.cleaner.remove(ctx, targetOf(ref)))
	}

	result.Moment = deleted
	return result, nil
}

// DeleteMany removes every listed record, then their blobs. Unknown ids are skipped.
func (s *MomentService) DeleteMany(ctx context.Context, ids []string) (DeleteResult, error) {
	var result DeleteResult

	deleted, err := s.store.DeleteMoments(ctx, uniqueIDs(ids))
	if err != nil {
		return result, storeFailure(err)
	}

	targets := make([]blobTarget, 0, len(deleted))
	for _, moment := range deleted {
		if ref := moment.Media(); ref != nil {
			targets = append(targets, targetOf(ref))
		}
	}
	result.Deleted = len(deleted)
	result.Cleanup = s.cleaner.removeAll(ctx, targets)
	return result, nil
}

// List returns one page of moments and the total matching count.
func (s *MomentService) List(ctx context.Context, filter store.MomentFilter) ([]models.Moment, int, error) {
	moments, err := s.store.ListMoments(ctx, filter)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	countFilter := filter
	countFilter.Offset, countFilter.Limit = 0, 0
	total, err := s.store.CountMoments(ctx, countFilter)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	return moments, total, nil
}

// resolveType picks the moment variant. An explicit type wins but must agree with the
// file's classification; without one the file decides.
func (s *MomentService) resolveType(raw string, file *MediaUpload) (models.MomentType, error) {
	if strings.TrimSpace(raw) == "" {
		if file == nil {
			return "", badRequestCode(fmt.Errorf("type is required"), ErrCodeMissingRequired)
		}
		_, kind, ok := models.MediaBucketFor(file.ContentType)
		if !ok {
			return "", unsupportedMediaType(file.ContentType)
		}
		return kind, nil
	}

	momentType, err := normalizeMomentType(raw)
	if err != nil {
		return "", err
	}
	if momentType.IsMedia() && file != nil {
		_, kind, ok := models.MediaBucketFor(file.ContentType)
		if !ok {
			return "", unsupportedMediaType(file.ContentType)
		}
		if kind != momentType {
			return "", badRequestCode(fmt.Errorf("file of type %s does not match moment type %s", file.ContentType, momentType), ErrCodeInvalidType)
		}
	}
	return momentType, nil
}

func (s *MomentService) uploadMedia(ctx context.Context, momentType models.MomentType, file *MediaUpload) (models.MediaRef, error) {
	bucketName, _, ok := models.MediaBucketFor(file.ContentType)
	if !ok {
		return models.MediaRef{}, unsupportedMediaType(file.ContentType)
	}
	info, err := uploadBlob(ctx, s.blobs, bucketName, file, map[string]any{"kind": bucketName, "moment_type": string(momentType)})
	if err != nil {
		return models.MediaRef{}, err
	}
	s.logger.Debug("uploaded moment media", "bucket", bucketName, "object_id", info.ID, "length", info.Length)
	return models.MediaRef{
		Bucket:      bucketName,
		ObjectID:    info.ID,
		Filename:    info.Filename,
		ContentType: info.ContentType,
		Length:      info.Length,
	}, nil
}

// uploadBlob streams file into bucketName. A body over the request limit is a client error.
func uploadBlob(ctx context.Context, blobs blobstore.Provider, bucketName string, file *MediaUpload, metadata map[string]any) (blobstore.ObjectInfo, error) {
	bucket, err := blobs.Bucket(bucketName)
	if err != nil {
		return blobstore.ObjectInfo{}, blobFailure(err)
	}
	info, err := bucket.Upload(ctx, file.Reader, blobstore.UploadOptions{
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Metadata:    metadata,
	})
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return blobstore.ObjectInfo{}, badRequestCode(fmt.Errorf("upload exceeds %d bytes", maxBytesErr.Limit), ErrCodeRequestTooLarge)
		}
		return blobstore.ObjectInfo{}, blobFailure(err)
	}
	return info, nil
}

func parseMomentDate(raw string) (time.Time, error) {
	date, err := parseFlexibleTime(raw)
	if err != nil {
		return time.Time{}, badRequestCode(fmt.Errorf("invalid date: %w", err), ErrCodeInvalidArgument)
	}
	return date, nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

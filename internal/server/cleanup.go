package server

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"keepsake/internal/blobstore"
	"keepsake/internal/models"
)

// CleanupOutcome records one best-effort blob removal. A failed outcome never fails
// the parent operation; it is logged and counted.
type CleanupOutcome struct {
	Bucket   string
	ObjectID string
	// Missing is set when the blob was already gone.
	Missing bool
	Err     error
}

// Failed reports whether the blob may still be present.
func (o CleanupOutcome) Failed() bool {
	return o.Err != nil
}

type blobTarget struct {
	Bucket   string
	ObjectID string
}

func targetOf(ref *models.MediaRef) blobTarget {
	return blobTarget{Bucket: ref.Bucket, ObjectID: ref.ObjectID}
}

func countFailed(outcomes []CleanupOutcome) int {
	failed := 0
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failed++
		}
	}
	return failed
}

type blobCleaner struct {
	blobs       blobstore.Provider
	logger      *slog.Logger
	concurrency int
}

// remove deletes one blob. It detaches from request cancellation so a client that
// hangs up after its record is gone does not strand the blob. A blob that is
// already gone counts as removed.
func (c blobCleaner) remove(ctx context.Context, target blobTarget) CleanupOutcome {
	ctx = context.WithoutCancel(ctx)
	outcome := CleanupOutcome{Bucket: target.Bucket, ObjectID: target.ObjectID}

	bucket, err := c.blobs.Bucket(target.Bucket)
	if err == nil {
		err = bucket.Delete(ctx, target.ObjectID)
	}
	switch {
	case err == nil:
	case errors.Is(err, blobstore.ErrObjectNotFound):
		outcome.Missing = true
		c.logger.Debug("blob already removed", "bucket", target.Bucket, "object_id", target.ObjectID)
	default:
		outcome.Err = err
		c.logger.Warn("blob cleanup failed", "bucket", target.Bucket, "object_id", target.ObjectID, "error", err)
	}
	return outcome
}

// removeAll deletes blobs with bounded fan-out. Outcomes keep the input order.
func (c blobCleaner) removeAll(ctx context.Context, targets []blobTarget) []CleanupOutcome {
	outcomes := make([]CleanupOutcome, len(targets))
	if len(targets) == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(max(c.concurrency, 1))
	for i, target := range targets {
		g.Go(func() error {
			outcomes[i] = c.remove(ctx, target)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

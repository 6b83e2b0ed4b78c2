package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"keepsake/internal/blobstore"
	"keepsake/internal/config"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

const defaultOrphanAge = time.Hour

func newObjectsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect and maintain the chunked object store",
	}

	cmd.AddCommand(
		newObjectsListCmd(cfg, jsonOutput),
		newObjectsGCCmd(cfg, jsonOutput),
	)
	return cmd
}

func newObjectsListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		bucketName string
		limit      int
		skip       int
		ascending  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored objects in a bucket, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !blobstore.ValidBucketName(bucketName) {
				return fmt.Errorf("%w: %q", blobstore.ErrInvalidBucket, bucketName)
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			registry := openRegistry(cfg, st)
			defer registry.Detach()

			bucket, err := registry.Bucket(bucketName)
			if err != nil {
				return err
			}
			objects, total, err := bucket.ListMetadata(cmd.Context(), blobstore.ListOptions{
				Skip:      skip,
				Limit:     limit,
				Ascending: ascending,
			})
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(map[string]any{"bucket": bucketName, "total": total, "objects": objects})
			}
			if err := writeObjectList(objects); err != nil {
				return err
			}
			return writePlain("%d of %d objects in %s\n", len(objects), total, bucketName)
		},
	}

	cmd.Flags().StringVar(&bucketName, "bucket", models.BucketVideos, "bucket name")
	cmd.Flags().IntVar(&limit, "limit", 50, "max objects to list (0 = all)")
	cmd.Flags().IntVar(&skip, "skip", 0, "objects to skip")
	cmd.Flags().BoolVar(&ascending, "asc", false, "oldest first")
	return cmd
}

func newObjectsGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "gc-chunks",
		Short: "Delete chunks left behind by interrupted uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			registry := openRegistry(cfg, st)
			defer registry.Detach()

			cutoff := time.Now().Add(-olderThan)
			removed, err := registry.PurgeOrphanChunks(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			slog.Default().Info("purged orphan chunks", "removed", removed, "cutoff", cutoff.UTC().Format(time.RFC3339))

			if *jsonOutput {
				return writeJSON(map[string]any{"removed": removed, "cutoff": cutoff.UTC()})
			}
			return writePlain("removed %d orphan chunks\n", removed)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", defaultOrphanAge, "only purge chunks written before this age")
	return cmd
}

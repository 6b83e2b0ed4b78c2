package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/legacy"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

func newLegacyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Move videos stored inline in the legacy table into the object store",
	}

	cmd.AddCommand(
		newLegacyMigrateCmd(cfg, jsonOutput),
		newLegacyFixContentTypesCmd(cfg, jsonOutput),
		newLegacyImportCmd(cfg, jsonOutput),
	)
	return cmd
}

func newLegacyMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := legacy.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy videos into the videos bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runMigrator(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			if err := writeMigrationResult(result, *jsonOutput); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d legacy videos failed to migrate", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", opts.DryRun, "count what would be migrated without writing")
	cmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing", opts.SkipExisting, "skip records already migrated")
	cmd.Flags().IntVar(&opts.LogEvery, "log-every", opts.LogEvery, "log progress every N records")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", opts.PageSize, "legacy records loaded per query")
	cmd.Flags().Float64Var(&opts.RatePerSecond, "rate", 0, "max records uploaded per second (0 = unlimited)")
	return cmd
}

func newLegacyFixContentTypesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := legacy.DefaultOptions()
	opts.FixContentTypesOnly = true

	cmd := &cobra.Command{
		Use:   "fix-content-types",
		Short: "Set a content type on stored videos that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runMigrator(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			return writePlain("scanned: %d\nfixed: %d\n", result.Scanned, result.Fixed)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	return cmd
}

func newLegacyImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Load the files in a directory into the legacy table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			importer := legacy.NewImporter(st, slog.Default().With("component", "legacy_import"))
			result, err := importer.ImportDir(ctx, args[0], dryRun)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			return writePlain("imported: %d\nskipped: %d\n", result.Imported, result.Skipped)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be imported without writing")
	return cmd
}

func runMigrator(ctx context.Context, cfg *config.Config, opts legacy.Options) (legacy.Result, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return legacy.Result{}, err
	}
	defer st.Close()

	registry := openRegistry(cfg, st)
	defer registry.Detach()

	bucket, err := registry.Bucket(models.BucketVideos)
	if err != nil {
		return legacy.Result{}, err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := slog.Default().With("component", "legacy_migrate")
	return legacy.New(st, bucket, logger, opts).Run(ctx)
}

func writeMigrationResult(result legacy.Result, structured bool) error {
	if structured {
		return writeJSON(result)
	}
	prefix := ""
	if result.DryRun {
		prefix = "(dry run) "
	}
	return writePlain("%stotal: %d\nprocessed: %d\nmigrated: %d\nskipped: %d\nfailed: %d\n",
		prefix, result.Total, result.Processed, result.Migrated, result.Skipped, result.Failed)
}

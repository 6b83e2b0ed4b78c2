package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"keepsake/internal/blobstore"
	"keepsake/internal/config"
	"keepsake/internal/server"
	"keepsake/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the keepsake API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("%w: %v", blobstore.ErrStoreUnavailable, err)
			}
			defer st.Close()

			registry := openRegistry(cfg, st)
			defer registry.Detach()

			srv := server.New(addr, server.StoresFrom(st), registry, logger, server.Options{
				PublicBaseURL:      cfg.PublicBaseURL,
				CORSOrigins:        cfg.CORSOrigins,
				MaxUploadBytes:     cfg.Media.MaxUploadBytes,
				MultipartMemory:    cfg.Media.MultipartMaxMemory,
				CleanupConcurrency: cfg.Media.CleanupConcurrency,
			})
			return srv.Run(cmd.Context())
		},
	}
}

func openRegistry(cfg *config.Config, st *store.Store) *blobstore.Registry {
	return blobstore.NewRegistry(st.DB(), blobstore.RegistryOptions{
		ChunkSize:      cfg.Media.ChunkSizeBytes,
		PrefetchChunks: cfg.Media.PrefetchChunks,
	})
}

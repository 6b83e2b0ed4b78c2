package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keepsake/internal/api"
	"keepsake/internal/config"
	"keepsake/internal/models"
)

func newPingCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the API server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.NewClient(cfg.APIURL).Ping(cmd.Context()); err != nil {
				return err
			}
			return writePlain("ok %s\n", cfg.APIURL)
		},
	}
}

func newCountsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show record counts and the hero image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				counts, err := client.Counts(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(counts)
				}
				return writeCounts(counts)
			})
		},
	}
}

func newVideosCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Manage standalone videos through the API",
	}

	cmd.AddCommand(
		newVideosListCmd(cfg, jsonOutput),
		newVideosUploadCmd(cfg, jsonOutput),
		newVideosDeleteCmd(cfg, jsonOutput),
	)
	return cmd
}

func newVideosListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		page  string
		limit string
		asc   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.VideoListRequest{Page: api.Flex(page), Limit: api.Flex(limit)}
			if asc {
				req.Sort = "asc"
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListVideos(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writeVideoList(resp.Data); err != nil {
					return err
				}
				return writePlain("page %d, %d of %d videos\n", resp.Page, len(resp.Data), resp.Total)
			})
		},
	}

	cmd.Flags().StringVar(&page, "page", "1", "page number")
	cmd.Flags().StringVar(&limit, "limit", "12", "page size")
	cmd.Flags().BoolVar(&asc, "asc", false, "oldest first")
	return cmd
}

func newVideosUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			filename := filepath.Base(path)
			if contentType == "" {
				contentType = models.GuessContentType("", filename, "video/mp4")
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UploadVideo(cmd.Context(), filename, contentType, f)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("uploaded %s\nstream: %s\n", resp.File.ID, streamLink(client, resp.File))
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "override the detected content type")
	return cmd
}

func newVideosDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var ignoreMissing bool
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete videos by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				return deleteVideos(cmd.Context(), client, args, ignoreMissing, *jsonOutput)
			})
		},
	}
	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "skip ids the server no longer has")
	return cmd
}

func deleteVideos(ctx context.Context, client *api.Client, ids []string, ignoreMissing, structured bool) error {
	results := make([]api.MessageResponse, 0, len(ids))
	for _, id := range ids {
		resp, err := client.DeleteVideo(ctx, id)
		var apiErr *api.APIError
		switch {
		case err == nil:
		case ignoreMissing && errors.As(err, &apiErr) && apiErr.NotFound():
			if !structured {
				if err := writePlain("missing %s\n", id); err != nil {
					return err
				}
			}
			continue
		default:
			return fmt.Errorf("delete %s: %w", id, err)
		}
		results = append(results, resp)
		if !structured {
			if err := writePlain("deleted %s\n", id); err != nil {
				return err
			}
		}
	}
	if structured {
		return writeJSON(results)
	}
	return nil
}

func streamLink(client *api.Client, file api.VideoFile) string {
	if file.StreamURL != "" {
		return file.StreamURL
	}
	return client.StreamURL(file.ID)
}

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"keepsake/internal/api"
	"keepsake/internal/blobstore"
	"keepsake/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeVideoList(videos []api.VideoFile) error {
	for _, video := range videos {
		if err := writePlain("%s\n", formatVideoLine(video.ID, video.Filename, video.ContentType, video.Length, video.UploadDate)); err != nil {
			return err
		}
	}
	return nil
}

func writeObjectList(objects []blobstore.ObjectInfo) error {
	for _, obj := range objects {
		if err := writePlain("%s\n", formatVideoLine(obj.ID, obj.Filename, obj.ContentType, obj.Length, obj.UploadDate)); err != nil {
			return err
		}
	}
	return nil
}

func formatVideoLine(id, filename, contentType string, length int64, uploaded time.Time) string {
	if contentType == "" {
		contentType = "?"
	}
	return fmt.Sprintf("%s  %-10s %10s  %s  %s", id, contentType, humanize.IBytes(uint64(max(length, 0))), formatTime(uploaded), filename)
}

func writeCounts(counts api.CountsResponse) error {
	lines := []string{
		fmt.Sprintf("poems: %d", counts.Poems),
		fmt.Sprintf("gallery: %d", counts.Galleries),
		fmt.Sprintf("moments: %d", counts.Moments),
		fmt.Sprintf("videos: %d", counts.Videos),
	}
	if counts.HeroImg != nil {
		lines = append(lines, fmt.Sprintf("hero: %s", *counts.HeroImg))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

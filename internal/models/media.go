package models

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Moment media buckets.
const (
	BucketImages      = "images"
	BucketMomentVideo = "mVideos"
	BucketFiles       = "files"
	BucketVideos      = "videos"
)

var momentMediaBuckets = map[string]struct{}{
	BucketImages:      {},
	BucketMomentVideo: {},
	BucketFiles:       {},
}

// IsMomentMediaBucket reports whether bucket may be addressed by moment media URLs.
func IsMomentMediaBucket(bucket string) bool {
	_, ok := momentMediaBuckets[bucket]
	return ok
}

// MediaRef points from a parent record to exactly one stored object.
type MediaRef struct {
	Bucket      string `json:"bucket"`
	ObjectID    string `json:"fileId"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Length      int64  `json:"length"`
}

// Validate checks that the reference addresses an object.
func (r MediaRef) Validate() error {
	if strings.TrimSpace(r.Bucket) == "" {
		return fmt.Errorf("media bucket is required")
	}
	if strings.TrimSpace(r.ObjectID) == "" {
		return fmt.Errorf("media object id is required")
	}
	if r.Length < 0 {
		return fmt.Errorf("media length must be >= 0")
	}
	return nil
}

// MediaBucketFor classifies a content type into the moment bucket that stores it.
// The second result is false for content types moments do not accept.
func MediaBucketFor(contentType string) (string, MomentType, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "video/"):
		return BucketMomentVideo, MomentVideo, true
	case strings.HasPrefix(ct, "image/"):
		return BucketImages, MomentImage, true
	default:
		return "", "", false
	}
}

// videoExtensions covers containers missing from Go's builtin table when the
// host has no mime.types file.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// GuessContentType returns declared when it is specific, else the type registered for the
// filename extension, else fallback. "application/octet-stream" counts as unspecific.
func GuessContentType(declared, filename, fallback string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, "application/octet-stream") {
		return declared
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
		if byExt, ok := videoExtensions[ext]; ok {
			return byExt
		}
	}
	if declared != "" && fallback == "" {
		return declared
	}
	return fallback
}

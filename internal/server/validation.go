package server

import (
	"fmt"
	"strings"
	"unicode"

	"keepsake/internal/blobstore"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

func validateMomentID(id string) bool {
	return store.ValidID(store.MomentIDPrefix, id)
}

func validatePoemID(id string) bool {
	return store.ValidID(store.PoemIDPrefix, id)
}

func validateGalleryID(id string) bool {
	return store.ValidID(store.GalleryIDPrefix, id)
}

func validateHomeCardID(id string) bool {
	return store.ValidID(store.HomeCardIDPrefix, id)
}

func validateObjectID(id string) bool {
	return blobstore.ValidObjectID(id)
}

func normalizeMomentType(value string) (models.MomentType, error) {
	momentType, err := models.ParseMomentType(value)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidType)
	}
	return momentType, nil
}

func normalizeTag(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return "", badRequestCode(fmt.Errorf("tag must not contain control characters"), ErrCodeInvalidArgument)
		}
	}
	return value, nil
}

// normalizeTags trims, drops empties and de-duplicates while keeping the caller's order.
func normalizeTags(values []string) ([]string, error) {
	tags := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		tag, err := normalizeTag(value)
		if err != nil {
			return nil, err
		}
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags, nil
}

func normalizeLines(values []string) []string {
	lines := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		lines = append(lines, value)
	}
	return lines
}

func normalizeBucket(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !models.IsMomentMediaBucket(value) {
		return "", badRequestCode(fmt.Errorf("invalid bucket %q", value), ErrCodeInvalidBucket)
	}
	return value, nil
}

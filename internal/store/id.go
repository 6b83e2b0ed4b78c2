package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// Record id prefixes.
const (
	MomentIDPrefix   = "mo"
	PoemIDPrefix     = "po"
	GalleryIDPrefix  = "ga"
	HomeCardIDPrefix = "hc"
)

const (
	idAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLen   = 6
	idMaxAttempts = 20
)

var (
	errEmptyIDPrefix  = errors.New("id prefix is required")
	errIDSpaceCrowded = errors.New("unable to generate unique id")
)

// GenerateID returns "<prefix>-<6 base36 chars>". When exists is non-nil,
// candidates it reports as taken are discarded.
func GenerateID(prefix string, exists func(string) (bool, error)) (string, error) {
	if prefix == "" {
		return "", errEmptyIDPrefix
	}
	for attempt := 0; attempt < idMaxAttempts; attempt++ {
		id, err := newCandidateID(prefix)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return id, nil
		}
		taken, err := exists(id)
		if err != nil {
			return "", fmt.Errorf("check id %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w with prefix %q", errIDSpaceCrowded, prefix)
}

// ValidID reports whether id has the shape GenerateID produces for prefix.
func ValidID(prefix, id string) bool {
	suffix, ok := strings.CutPrefix(id, prefix+"-")
	if prefix == "" || !ok || len(suffix) != idSuffixLen {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		if strings.IndexByte(idAlphabet, suffix[i]) < 0 {
			return false
		}
	}
	return true
}

func newCandidateID(prefix string) (string, error) {
	raw := make([]byte, idSuffixLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	var b strings.Builder
	b.Grow(len(prefix) + 1 + idSuffixLen)
	b.WriteString(prefix)
	b.WriteByte('-')
	for _, v := range raw {
		b.WriteByte(idAlphabet[int(v)%len(idAlphabet)])
	}
	return b.String(), nil
}

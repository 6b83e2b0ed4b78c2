package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MomentType is the closed set of moment variants.
type MomentType string

const (
	MomentImage MomentType = "image"
	MomentVideo MomentType = "video"
	MomentPoem  MomentType = "poem"
	MomentNote  MomentType = "note"
)

var validMomentTypes = map[MomentType]struct{}{
	MomentImage: {},
	MomentVideo: {},
	MomentPoem:  {},
	MomentNote:  {},
}

// ParseMomentType validates a raw type string.
func ParseMomentType(raw string) (MomentType, error) {
	value := MomentType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("moment type is required")
	}
	if _, ok := validMomentTypes[value]; !ok {
		return "", fmt.Errorf("invalid moment type: %s", value)
	}
	return value, nil
}

// IsMedia reports whether the variant carries a Media Reference instead of a body.
func (t MomentType) IsMedia() bool {
	return t == MomentImage || t == MomentVideo
}

// Payload is the variant-specific content of a Moment: either TextBody or MediaRef.
type Payload interface {
	isMomentPayload()
}

// TextBody is the payload of poem and note moments.
type TextBody struct {
	Text string
}

func (TextBody) isMomentPayload() {}
func (MediaRef) isMomentPayload() {}

// Moment is a dated entry on the timeline. Media variants own at most one blob
// through their MediaRef; text variants own none.
type Moment struct {
	ID        string
	Type      MomentType
	Title     string
	Date      time.Time
	Tags      []string
	Meta      map[string]any
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrMediaOnTextMoment = errors.New("text moments cannot carry media")
	ErrBodyOnMediaMoment = errors.New("media moments cannot carry a body")
	ErrMissingPayload    = errors.New("moment payload is required")
)

// Validate enforces the media XOR body invariant and the required fields.
func (m Moment) Validate() error {
	if _, ok := validMomentTypes[m.Type]; !ok {
		return fmt.Errorf("invalid moment type: %s", m.Type)
	}
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if m.Date.IsZero() {
		return fmt.Errorf("date is required")
	}

	switch p := m.Payload.(type) {
	case MediaRef:
		if !m.Type.IsMedia() {
			return ErrMediaOnTextMoment
		}
		return p.Validate()
	case TextBody:
		if m.Type.IsMedia() {
			return ErrBodyOnMediaMoment
		}
		return nil
	default:
		return ErrMissingPayload
	}
}

// Media returns the moment's Media Reference, or nil for text variants.
func (m Moment) Media() *MediaRef {
	if ref, ok := m.Payload.(MediaRef); ok {
		return &ref
	}
	return nil
}

// Body returns the text body and whether the moment is a text variant.
func (m Moment) Body() (string, bool) {
	if body, ok := m.Payload.(TextBody); ok {
		return body.Text, true
	}
	return "", false
}

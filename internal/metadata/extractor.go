package metadata

import (
	"fmt"
	"path/filepath"
	"strings"

	"melisma/internal/models"
)

// FailureReason is the reason code retained on a song whose tags could not be
// read.
type FailureReason string

const (
	ReasonCorruptFile       FailureReason = "CorruptFile"
	ReasonUnsupportedFormat FailureReason = "UnsupportedFormat"
)

// ExtractionError wraps a tag-read failure with its reason code.
type ExtractionError struct {
	Reason FailureReason
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("metadata extraction failed (%s): %v", e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extraction holds the metadata extracted from a single audio file.
type Extraction struct {
	Title        string
	Artists      []string // ordered
	AlbumArtists []string // ordered
	Album        string
	Year         int32
	TrackNumber  int32
	DiscNumber   int32
	Genres       []string
	DurationMs   int64
	TrackGain    *float64 // replay gain in dB
	Lyrics       string   // embedded lyrics, may be empty
	HasPicture   bool
}

// Extractor reads metadata and embedded pictures from audio files.
type Extractor interface {
	// Extract returns the file's metadata or an *ExtractionError carrying a
	// reason code.
	Extract(path string) (*Extraction, error)
	// EmbeddedPicture returns the first embedded picture's raw bytes, or nil
	// when the file carries none.
	EmbeddedPicture(path string) ([]byte, error)
}

// FallbackExtraction builds best-effort metadata from the file path alone,
// used when tag extraction fails. The song still gets a row; the failure
// reason is retained separately for diagnostics.
func FallbackExtraction(path string) *Extraction {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))

	return &Extraction{
		Title:   strings.TrimSpace(title),
		Artists: []string{models.UnknownArtist},
		Album:   models.UnknownAlbum,
	}
}

// SplitNames splits a tag value on the configured separators, preserving
// order and dropping empty segments. Values that contain no separator come
// back as a single name.
func SplitNames(values []string, separators []string) []string {
	var names []string
	seen := make(map[string]struct{})

	for _, value := range values {
		for _, part := range splitAll(value, separators) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, part)
		}
	}

	return names
}

func splitAll(value string, separators []string) []string {
	parts := []string{value}
	for _, sep := range separators {
		if sep == "" {
			continue
		}
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, sep)...)
		}
		parts = next
	}
	return parts
}

package artwork

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"melisma/internal/cache"
)

// coverBasenames is the cover art priority list; index 0 wins. Matching is
// case-insensitive and extension-agnostic.
var coverBasenames = []string{"cover", "folder", "front", "album"}

// Artwork is a resolved, cached cover image.
type Artwork struct {
	Path        string
	LightSwatch string
	DarkSwatch  string
	Created     bool // false when the cache already held identical bytes
}

// EmbeddedPictureFunc returns the first embedded picture of an audio file.
// It is only invoked when no directory art was found.
type EmbeddedPictureFunc func() ([]byte, error)

// Resolver resolves cover art for a song's directory, preferring directory
// images over embedded pictures, and stores the result content-addressed.
type Resolver struct {
	fs     afero.Fs
	cache  *cache.ContentCache
	logger *zerolog.Logger
}

// NewResolver creates a cover art resolver writing into the given cache.
func NewResolver(fs afero.Fs, contentCache *cache.ContentCache, logger *zerolog.Logger) *Resolver {
	return &Resolver{
		fs:     fs,
		cache:  contentCache,
		logger: logger,
	}
}

// Resolve finds cover art for the directory and caches it. A nil Artwork
// with nil error means no art was found, or that processing failed this
// attempt; no permanent failure state is recorded either way, so the next
// scan retries from scratch.
func (r *Resolver) Resolve(directory string, embedded EmbeddedPictureFunc) (*Artwork, error) {
	data, ext := r.directoryArt(directory)

	// Directory art always wins; embedded bytes are not even read when a
	// directory image resolved.
	if data == nil && embedded != nil {
		picture, err := embedded()
		if err != nil || len(picture) == 0 {
			return nil, nil
		}
		data = picture
		ext = detectImageExt(picture)
	}

	if len(data) == 0 {
		return nil, nil
	}

	light, dark, err := ExtractSwatches(data)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Str("directory", directory).Err(err).Msg("Cover art processing failed")
		}
		return nil, nil
	}

	path, created, err := r.cache.StoreContent(data, ext)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Str("directory", directory).Err(err).Msg("Cover art caching failed")
		}
		return nil, nil
	}

	return &Artwork{
		Path:        path,
		LightSwatch: light.Hex(),
		DarkSwatch:  dark.Hex(),
		Created:     created,
	}, nil
}

// directoryArt lists the directory and picks the highest-priority cover
// image, independent of enumeration order. Listing errors and unreadable or
// empty files are treated as "no directory art found".
func (r *Resolver) directoryArt(directory string) ([]byte, string) {
	entries, err := afero.ReadDir(r.fs, directory)
	if err != nil {
		return nil, ""
	}

	bestIndex := len(coverBasenames)
	bestName := ""
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		for i, candidate := range coverBasenames {
			if base == candidate && i < bestIndex {
				bestIndex = i
				bestName = entry.Name()
			}
		}
	}

	if bestName == "" {
		return nil, ""
	}

	data, err := afero.ReadFile(r.fs, filepath.Join(directory, bestName))
	if err != nil || len(data) == 0 {
		return nil, ""
	}

	return data, strings.TrimPrefix(filepath.Ext(bestName), ".")
}

// detectImageExt sniffs the image format of embedded picture bytes.
func detectImageExt(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "img"
	}
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

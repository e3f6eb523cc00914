package artistimage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"melisma/internal/cache"
	"melisma/internal/models"
	"melisma/internal/providers"
)

// artistBasename is the filename (extension-agnostic, case-insensitive) that
// marks an on-disk artist portrait.
const artistBasename = "artist"

// Resolver finds artist portraits: user overrides are untouchable, then a
// two-pass local directory scan, then online providers.
type Resolver struct {
	fs        afero.Fs
	cache     *cache.ContentCache
	gate      *providers.SessionGate
	providers []providers.ArtistImageProvider // priority order
	online    bool
	timeout   time.Duration
	logger    *zerolog.Logger
}

// NewResolver creates an artist image resolver writing into the given cache.
func NewResolver(fs afero.Fs, imageCache *cache.ContentCache, gate *providers.SessionGate, imageProviders []providers.ArtistImageProvider, online bool, timeout time.Duration, logger *zerolog.Logger) *Resolver {
	return &Resolver{
		fs:        fs,
		cache:     imageCache,
		gate:      gate,
		providers: imageProviders,
		online:    online,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve resolves a portrait for the artist given one of their songs' file
// paths. It returns the new cache path, or "" when nothing changed (already
// resolved, user override, or no image found). I/O errors while scanning are
// treated as "no local image" and never abort the surrounding rescan.
func (r *Resolver) Resolve(ctx context.Context, artist *models.Artist, songFilePath string) (string, error) {
	// A .custom. path is user-supplied and a .local. path is already
	// resolved; neither gets re-work.
	if cache.IsProtected(artist.LocalImageCachePath) {
		return "", nil
	}

	albumDir := filepath.Dir(songFilePath)
	artistDir := filepath.Dir(albumDir)

	// Pass A: the parent-of-album directory (the "artist folder").
	if data, ext := r.scanDirectory(artistDir); data != nil {
		return r.cacheLocal(artist, data, ext)
	}

	// Pass B: the album directory itself.
	if data, ext := r.scanDirectory(albumDir); data != nil {
		return r.cacheLocal(artist, data, ext)
	}

	if !r.online {
		return "", nil
	}

	return r.fromOnline(ctx, artist)
}

func (r *Resolver) cacheLocal(artist *models.Artist, data []byte, ext string) (string, error) {
	processed, outExt, err := NormalizeImage(data, ext)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Int64("artist_id", artist.ID).Err(err).Msg("Artist image processing failed")
		}
		return "", nil
	}

	path, err := r.cache.StoreEntity(artist.ID, cache.ProvenanceLocal, outExt, processed)
	if err != nil {
		return "", err
	}
	return path, nil
}

// scanDirectory looks for a file whose basename is "artist"; first match
// wins. Enumeration errors and empty files yield nothing.
func (r *Resolver) scanDirectory(directory string) ([]byte, string) {
	entries, err := afero.ReadDir(r.fs, directory)
	if err != nil {
		return nil, ""
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		if base != artistBasename {
			continue
		}

		data, err := afero.ReadFile(r.fs, filepath.Join(directory, entry.Name()))
		if err != nil || len(data) == 0 {
			return nil, ""
		}
		return data, strings.TrimPrefix(filepath.Ext(entry.Name()), ".")
	}

	return nil, ""
}

// fromOnline queries providers in priority order until one succeeds. A
// provider reporting a permanent error is disabled for the session; others
// are still attempted.
func (r *Resolver) fromOnline(ctx context.Context, artist *models.Artist) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for _, provider := range r.providers {
		if !r.gate.Enabled(provider.Name()) {
			continue
		}

		data, status := provider.Lookup(ctx, artist.Name)
		if r.gate.Observe(provider.Name(), status) && r.logger != nil {
			r.logger.Warn().
				Str("provider", provider.Name()).
				Str("status", status.String()).
				Msg("Artist image provider disabled for session")
		}
		if status != providers.StatusSuccess || len(data) == 0 {
			continue
		}

		processed, outExt, err := NormalizeImage(data, "")
		if err != nil {
			continue
		}
		return r.cache.StoreEntity(artist.ID, cache.ProvenanceFetched, outExt, processed)
	}

	return "", nil
}

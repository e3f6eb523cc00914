package app

import (
	"github.com/spf13/afero"

	"melisma/internal/artistimage"
	"melisma/internal/artwork"
	"melisma/internal/cache"
	"melisma/internal/config"
	"melisma/internal/database"
	"melisma/internal/events"
	"melisma/internal/logging"
	"melisma/internal/lyrics"
	"melisma/internal/metadata"
	"melisma/internal/providers"
	"melisma/internal/scanner"
)

// BuildEngine wires a sync engine from configuration. Online providers are
// registered by name; unknown names are skipped.
func BuildEngine(cfg *config.AppConfig, dbManager *database.DatabaseManager, emitter events.Emitter, logger *logging.Logger) *scanner.Engine {
	fs := afero.NewOsFs()
	gate := providers.NewSessionGate()
	extractor := metadata.NewTagLibExtractor(cfg.Tags.ArtistSplitSeparators, cfg.Tags.GenreSplitSeparators)

	coverCache := cache.NewContentCache(fs, cfg.Library.CoverCacheDir)
	artistCache := cache.NewContentCache(fs, cfg.Library.ArtistImageCacheDir)
	lyricsCache := cache.NewContentCache(fs, cfg.Library.LyricsCacheDir)

	lyricsProviders := providers.LyricsProvidersByName(cfg.Online.LyricsProviders)
	imageProviders := providers.ArtistImageProvidersByName(cfg.Online.ArtistImageProviders)

	return scanner.NewEngine(scanner.Config{
		DB:         dbManager.GetGormDB(),
		Filesystem: fs,
		Folders:    scanner.NewFolderScanner(fs, cfg.Library.AudioExtensions, logger.Zerolog()),
		Extractor:  extractor,
		Artwork:    artwork.NewResolver(fs, coverCache, logger.Zerolog()),
		ArtistImages: artistimage.NewResolver(
			fs, artistCache, gate, imageProviders, cfg.Online.Enabled, cfg.Online.LookupTimeout, logger.Zerolog(),
		),
		Lyrics:      lyrics.NewResolver(fs, gate, lyricsProviders, cfg.Online.Enabled, cfg.Online.LookupTimeout, logger.Zerolog()),
		LyricsCache: lyricsCache,
		Emitter:     emitter,
		Logger:      logger,
	})
}

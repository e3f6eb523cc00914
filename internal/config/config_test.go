package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *AppConfig {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, "melisma.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)

	assert.Contains(t, cfg.Library.AudioExtensions, ".mp3")
	assert.Contains(t, cfg.Library.AudioExtensions, ".flac")
	assert.Equal(t, filepath.Join("cache", "covers"), cfg.Library.CoverCacheDir)
	assert.Equal(t, filepath.Join("cache", "artists"), cfg.Library.ArtistImageCacheDir)
	assert.Equal(t, filepath.Join("cache", "lyrics"), cfg.Library.LyricsCacheDir)
	assert.True(t, cfg.Library.WatcherEnabled)
	assert.Equal(t, 2*time.Second, cfg.Library.WatcherDebounce)
	assert.Empty(t, cfg.Library.RescanSchedule, "scheduled rescans are off by default")

	assert.False(t, cfg.Online.Enabled, "online lookups are opt-in")
	assert.Empty(t, cfg.Online.LyricsProviders)
	assert.Equal(t, 15*time.Second, cfg.Online.LookupTimeout)

	assert.Contains(t, cfg.Tags.ArtistSplitSeparators, ";")
	assert.Contains(t, cfg.Tags.ArtistSplitSeparators, " feat. ")
}

func TestValidateConfig(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{
			Database: DatabaseConfig{Path: "melisma.db"},
			Library: LibraryConfig{
				AudioExtensions:     []string{".mp3"},
				CoverCacheDir:       "cache/covers",
				ArtistImageCacheDir: "cache/artists",
			},
			Online: OnlineConfig{Enabled: false},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validateConfig(base()))
	})

	t.Run("empty database path", func(t *testing.T) {
		cfg := base()
		cfg.Database.Path = ""
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("empty extension list", func(t *testing.T) {
		cfg := base()
		cfg.Library.AudioExtensions = nil
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("empty cover cache dir", func(t *testing.T) {
		cfg := base()
		cfg.Library.CoverCacheDir = ""
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("empty artist image cache dir", func(t *testing.T) {
		cfg := base()
		cfg.Library.ArtistImageCacheDir = ""
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("online enabled without timeout", func(t *testing.T) {
		cfg := base()
		cfg.Online.Enabled = true
		cfg.Online.LookupTimeout = 0
		assert.Error(t, validateConfig(cfg))
	})
}

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AppConfig represents the main application configuration
type AppConfig struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Library  LibraryConfig  `mapstructure:"library"`
	Online   OnlineConfig   `mapstructure:"online"`
	Tags     TagsConfig     `mapstructure:"tags"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig represents the sqlite database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LibraryConfig represents library scanning configuration
type LibraryConfig struct {
	AudioExtensions     []string      `mapstructure:"audio_extensions"`
	CoverCacheDir       string        `mapstructure:"cover_cache_dir"`
	ArtistImageCacheDir string        `mapstructure:"artist_image_cache_dir"`
	LyricsCacheDir      string        `mapstructure:"lyrics_cache_dir"`
	WatcherEnabled      bool          `mapstructure:"watcher_enabled"`
	WatcherDebounce     time.Duration `mapstructure:"watcher_debounce"`
	RescanSchedule      string        `mapstructure:"rescan_schedule"` // cron expression, empty disables
}

// OnlineConfig represents online metadata fetch configuration
type OnlineConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	LyricsProviders      []string      `mapstructure:"lyrics_providers"`       // priority order
	ArtistImageProviders []string      `mapstructure:"artist_image_providers"` // priority order
	LookupTimeout        time.Duration `mapstructure:"lookup_timeout"`
}

// TagsConfig represents tag post-processing configuration
type TagsConfig struct {
	ArtistSplitSeparators []string `mapstructure:"artist_split_separators"`
	GenreSplitSeparators  []string `mapstructure:"genre_split_separators"`
}

// LoadConfig loads application configuration from various sources
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("database.path", "melisma.db")
	viper.SetDefault("database.max_open_conns", 1)
	viper.SetDefault("database.max_idle_conns", 1)
	viper.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.busy_timeout", 5*time.Second)

	viper.SetDefault("library.audio_extensions", []string{
		".mp3", ".flac", ".ogg", ".opus", ".m4a", ".aac", ".wav", ".wma",
	})
	viper.SetDefault("library.cover_cache_dir", filepath.Join("cache", "covers"))
	viper.SetDefault("library.artist_image_cache_dir", filepath.Join("cache", "artists"))
	viper.SetDefault("library.lyrics_cache_dir", filepath.Join("cache", "lyrics"))
	viper.SetDefault("library.watcher_enabled", true)
	viper.SetDefault("library.watcher_debounce", 2*time.Second)
	viper.SetDefault("library.rescan_schedule", "")

	viper.SetDefault("online.enabled", false)
	viper.SetDefault("online.lyrics_providers", []string{})
	viper.SetDefault("online.artist_image_providers", []string{})
	viper.SetDefault("online.lookup_timeout", 15*time.Second)

	viper.SetDefault("tags.artist_split_separators", []string{";", "/", " feat. ", " ft. "})
	viper.SetDefault("tags.genre_split_separators", []string{";", "/"})

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Read from environment variables
	viper.AutomaticEnv()

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validateConfig validates the configuration values
func validateConfig(config *AppConfig) error {
	if config.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if len(config.Library.AudioExtensions) == 0 {
		return fmt.Errorf("audio extension allow-list cannot be empty")
	}

	if config.Library.CoverCacheDir == "" {
		return fmt.Errorf("cover cache directory cannot be empty")
	}

	if config.Library.ArtistImageCacheDir == "" {
		return fmt.Errorf("artist image cache directory cannot be empty")
	}

	if config.Online.Enabled && config.Online.LookupTimeout <= 0 {
		return fmt.Errorf("online lookup timeout must be positive")
	}

	return nil
}

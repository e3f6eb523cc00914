package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"melisma/internal/models"
)

// MigrationManager manages database migrations
type MigrationManager struct {
	db     *gorm.DB
	logger *zerolog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *gorm.DB, logger *zerolog.Logger) *MigrationManager {
	return &MigrationManager{
		db:     db,
		logger: logger,
	}
}

// Migrate runs database migrations
func (m *MigrationManager) Migrate() error {
	if err := m.migrateTables(); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	if m.logger != nil {
		m.logger.Info().Msg("Database migrations completed successfully")
	}
	return nil
}

// migrateTables handles migration of all tables via GORM
func (m *MigrationManager) migrateTables() error {
	// Let GORM create all tables from Go models
	// This ensures schema consistency and avoids manual SQL/GORM conflicts
	if err := m.db.AutoMigrate(
		&models.Folder{},
		&models.Artist{},
		&models.Album{},
		&models.Song{},
		&models.SongArtist{},
		&models.AlbumArtist{},
		&models.ScanHistory{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	return nil
}

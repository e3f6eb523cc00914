package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"melisma/internal/models"
)

// ArtistRef is a pending relation edit: an ordered reference from a song or
// album to an artist. Passing the full ordered collection alongside the
// aggregate write lets the repository recompute denormalized fields
// deterministically, independent of any dirty-tracking.
type ArtistRef struct {
	ID   int64
	Name string
}

func refNames(refs []ArtistRef) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names
}

// Repository handles database operations for models
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// WithTx returns a repository bound to the given transaction. All writes made
// through it commit or roll back together.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the underlying gorm handle for transaction management.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Folder operations

func (r *Repository) CreateFolder(folder *models.Folder) error {
	return r.db.Create(folder).Error
}

func (r *Repository) GetFolderByID(id int64) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.First(&folder, id).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *Repository) GetFolderByPath(path string) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.Where("path = ?", path).First(&folder).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *Repository) ListFolders() ([]models.Folder, error) {
	var folders []models.Folder
	err := r.db.Order("id").Find(&folders).Error
	if err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *Repository) UpdateFolder(folder *models.Folder) error {
	return r.db.Save(folder).Error
}

// DeleteFolderCascade removes a folder together with its songs and their
// artist relations.
func (r *Repository) DeleteFolderCascade(folderID int64) error {
	var songIDs []int64
	if err := r.db.Model(&models.Song{}).Where("folder_id = ?", folderID).Pluck("id", &songIDs).Error; err != nil {
		return fmt.Errorf("failed to list songs for folder %d: %w", folderID, err)
	}

	if len(songIDs) > 0 {
		if err := r.db.Where("song_id IN ?", songIDs).Delete(&models.SongArtist{}).Error; err != nil {
			return fmt.Errorf("failed to delete song artist relations: %w", err)
		}
		if err := r.db.Where("folder_id = ?", folderID).Delete(&models.Song{}).Error; err != nil {
			return fmt.Errorf("failed to delete songs: %w", err)
		}
	}

	if err := r.db.Delete(&models.Folder{}, folderID).Error; err != nil {
		return fmt.Errorf("failed to delete folder %d: %w", folderID, err)
	}

	return nil
}

// Song operations

// GetSongsByFolder returns the persisted songs for a folder keyed by file
// path.
func (r *Repository) GetSongsByFolder(folderID int64) (map[string]models.Song, error) {
	var songs []models.Song
	if err := r.db.Where("folder_id = ?", folderID).Find(&songs).Error; err != nil {
		return nil, err
	}

	byPath := make(map[string]models.Song, len(songs))
	for _, song := range songs {
		byPath[song.FilePath] = song
	}
	return byPath, nil
}

func (r *Repository) GetSongByPath(path string) (*models.Song, error) {
	var song models.Song
	err := r.db.Where("file_path = ?", path).First(&song).Error
	if err != nil {
		return nil, err
	}
	return &song, nil
}

func (r *Repository) GetSongByID(id int64) (*models.Song, error) {
	var song models.Song
	err := r.db.Preload("SongArtists.Artist").First(&song, id).Error
	if err != nil {
		return nil, err
	}
	return &song, nil
}

func (r *Repository) UpdateSong(song *models.Song) error {
	return r.db.Omit(clause.Associations).Save(song).Error
}

// UpsertSong creates or fully replaces a song row and its ordered artist
// relations in one logical write. Denormalized fields are recomputed from the
// passed relation edits, never from the row's previous state.
func (r *Repository) UpsertSong(song *models.Song, artists []ArtistRef) error {
	names := refNames(artists)
	song.ArtistName = models.JoinArtistNames(names)
	song.PrimaryArtistName = models.PrimaryArtistName(names)

	if song.ID == 0 {
		if err := r.db.Omit(clause.Associations).Create(song).Error; err != nil {
			return fmt.Errorf("failed to create song: %w", err)
		}
	} else {
		if err := r.db.Omit(clause.Associations).Save(song).Error; err != nil {
			return fmt.Errorf("failed to update song: %w", err)
		}
	}

	return r.replaceSongArtistRows(song.ID, artists)
}

// DeleteSong removes a song row and its artist relations.
func (r *Repository) DeleteSong(songID int64) error {
	if err := r.db.Where("song_id = ?", songID).Delete(&models.SongArtist{}).Error; err != nil {
		return fmt.Errorf("failed to delete song artist relations: %w", err)
	}
	return r.db.Delete(&models.Song{}, songID).Error
}

// ReplaceSongArtists rewrites a song's artist relations and keeps the
// denormalized name fields consistent in the same transaction. The song row
// is updated even when it was not otherwise touched: adding a relation row
// does not dirty the parent, so consistency is enforced structurally here.
func (r *Repository) ReplaceSongArtists(songID int64, artists []ArtistRef) error {
	if err := r.replaceSongArtistRows(songID, artists); err != nil {
		return err
	}

	names := refNames(artists)
	return r.db.Model(&models.Song{}).
		Where("id = ?", songID).
		Updates(map[string]interface{}{
			"artist_name":         models.JoinArtistNames(names),
			"primary_artist_name": models.PrimaryArtistName(names),
		}).Error
}

func (r *Repository) replaceSongArtistRows(songID int64, artists []ArtistRef) error {
	if err := r.db.Where("song_id = ?", songID).Delete(&models.SongArtist{}).Error; err != nil {
		return fmt.Errorf("failed to clear song artist relations: %w", err)
	}

	for i, ref := range artists {
		relation := models.SongArtist{
			SongID:    songID,
			ArtistID:  ref.ID,
			SortOrder: int32(i),
		}
		if err := r.db.Create(&relation).Error; err != nil {
			return fmt.Errorf("failed to create song artist relation: %w", err)
		}
	}

	return nil
}

// Artist operations

func (r *Repository) GetArtistByID(id int64) (*models.Artist, error) {
	var artist models.Artist
	err := r.db.First(&artist, id).Error
	if err != nil {
		return nil, err
	}
	return &artist, nil
}

func (r *Repository) GetArtistByName(name string) (*models.Artist, error) {
	var artist models.Artist
	err := r.db.Where("name = ?", name).First(&artist).Error
	if err != nil {
		return nil, err
	}
	return &artist, nil
}

func (r *Repository) UpdateArtist(artist *models.Artist) error {
	return r.db.Save(artist).Error
}

// EnsureArtists finds or creates artists by name, preserving the given order.
func (r *Repository) EnsureArtists(names []string) ([]ArtistRef, error) {
	refs := make([]ArtistRef, 0, len(names))
	for _, name := range names {
		artist, err := r.GetArtistByName(name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			artist = &models.Artist{Name: name}
			if createErr := r.db.Create(artist).Error; createErr != nil {
				return nil, fmt.Errorf("failed to create artist %q: %w", name, createErr)
			}
		} else if err != nil {
			return nil, err
		}
		refs = append(refs, ArtistRef{ID: artist.ID, Name: artist.Name})
	}
	return refs, nil
}

// Album operations

func (r *Repository) GetAlbumByID(id int64) (*models.Album, error) {
	var album models.Album
	err := r.db.Preload("AlbumArtists.Artist").First(&album, id).Error
	if err != nil {
		return nil, err
	}
	return &album, nil
}

// EnsureAlbum finds or creates an album identified by title and primary
// artist, replacing its artist relations with the given ordered set.
func (r *Repository) EnsureAlbum(title string, year int32, artists []ArtistRef) (*models.Album, error) {
	names := refNames(artists)
	primary := models.PrimaryArtistName(names)

	var album models.Album
	err := r.db.Where("title = ? AND primary_artist_name = ?", title, primary).First(&album).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		album = models.Album{
			Title:             title,
			Year:              year,
			ArtistName:        models.JoinArtistNames(names),
			PrimaryArtistName: primary,
		}
		if createErr := r.db.Create(&album).Error; createErr != nil {
			return nil, fmt.Errorf("failed to create album %q: %w", title, createErr)
		}
	} else if err != nil {
		return nil, err
	}

	if err := r.ReplaceAlbumArtists(album.ID, artists); err != nil {
		return nil, err
	}

	return &album, nil
}

func (r *Repository) UpdateAlbum(album *models.Album) error {
	return r.db.Omit(clause.Associations).Save(album).Error
}

// ReplaceAlbumArtists rewrites an album's artist relations and recomputes the
// denormalized name fields, mirroring ReplaceSongArtists.
func (r *Repository) ReplaceAlbumArtists(albumID int64, artists []ArtistRef) error {
	if err := r.db.Where("album_id = ?", albumID).Delete(&models.AlbumArtist{}).Error; err != nil {
		return fmt.Errorf("failed to clear album artist relations: %w", err)
	}

	for i, ref := range artists {
		relation := models.AlbumArtist{
			AlbumID:   albumID,
			ArtistID:  ref.ID,
			SortOrder: int32(i),
		}
		if err := r.db.Create(&relation).Error; err != nil {
			return fmt.Errorf("failed to create album artist relation: %w", err)
		}
	}

	names := refNames(artists)
	return r.db.Model(&models.Album{}).
		Where("id = ?", albumID).
		Updates(map[string]interface{}{
			"artist_name":         models.JoinArtistNames(names),
			"primary_artist_name": models.PrimaryArtistName(names),
		}).Error
}

// Orphan cleanup

// CleanupOrphans deletes albums with no remaining songs and artists with no
// remaining song or album relations. Runs after song removals and folder
// deletion.
func (r *Repository) CleanupOrphans() (removedAlbums int64, removedArtists int64, err error) {
	var orphanAlbumIDs []int64
	err = r.db.Model(&models.Album{}).
		Where("NOT EXISTS (SELECT 1 FROM songs WHERE songs.album_id = albums.id)").
		Pluck("id", &orphanAlbumIDs).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to find orphaned albums: %w", err)
	}

	if len(orphanAlbumIDs) > 0 {
		if err = r.db.Where("album_id IN ?", orphanAlbumIDs).Delete(&models.AlbumArtist{}).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to delete orphaned album relations: %w", err)
		}
		result := r.db.Delete(&models.Album{}, orphanAlbumIDs)
		if result.Error != nil {
			return 0, 0, fmt.Errorf("failed to delete orphaned albums: %w", result.Error)
		}
		removedAlbums = result.RowsAffected
	}

	result := r.db.
		Where("NOT EXISTS (SELECT 1 FROM song_artists WHERE song_artists.artist_id = artists.id)").
		Where("NOT EXISTS (SELECT 1 FROM album_artists WHERE album_artists.artist_id = artists.id)").
		Delete(&models.Artist{})
	if result.Error != nil {
		return removedAlbums, 0, fmt.Errorf("failed to delete orphaned artists: %w", result.Error)
	}
	removedArtists = result.RowsAffected

	return removedAlbums, removedArtists, nil
}

// Scan history operations

func (r *Repository) CreateScanHistory(history *models.ScanHistory) error {
	return r.db.Create(history).Error
}

func (r *Repository) UpdateScanHistory(history *models.ScanHistory) error {
	return r.db.Save(history).Error
}

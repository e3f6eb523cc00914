package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnknownArtist is the denormalized artist name used when a song or album has
// no artist relations.
const UnknownArtist = "Unknown Artist"

// UnknownAlbum is the fallback album title used when tag extraction fails.
const UnknownAlbum = "Unknown Album"

// ArtistJoinSeparator joins ordered artist names into the denormalized
// ArtistName field.
const ArtistJoinSeparator = " & "

// JoinArtistNames computes the denormalized ArtistName value from an ordered
// list of artist names.
func JoinArtistNames(names []string) string {
	if len(names) == 0 {
		return UnknownArtist
	}
	return strings.Join(names, ArtistJoinSeparator)
}

// PrimaryArtistName computes the denormalized PrimaryArtistName value from an
// ordered list of artist names.
func PrimaryArtistName(names []string) string {
	if len(names) == 0 {
		return UnknownArtist
	}
	return names[0]
}

// Folder represents the folders table, a root directory of the library
type Folder struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Path             string    `gorm:"size:512;uniqueIndex;not null" json:"path"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	LastModifiedDate time.Time `json:"last_modified_date"`
	CreatedAt        time.Time `json:"created_at"`

	// Relationships
	Songs []Song `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Folder) TableName() string {
	return "folders"
}

// Song represents the songs table
type Song struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	APIKey               uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"api_key"`
	FilePath             string     `gorm:"size:1024;uniqueIndex;not null" json:"file_path"`
	DirectoryPath        string     `gorm:"size:1024;not null;index:idx_songs_directory_path" json:"directory_path"`
	FolderID             int64      `gorm:"index:idx_songs_folder_id;not null" json:"folder_id"`
	FileModifiedDate     time.Time  `json:"file_modified_date"`
	Title                string     `gorm:"size:255;not null" json:"title"`
	ArtistName           string     `gorm:"size:255;not null" json:"artist_name"`         // Denormalized from song_artists
	PrimaryArtistName    string     `gorm:"size:255;not null" json:"primary_artist_name"` // Denormalized from song_artists
	AlbumID              *int64     `gorm:"index:idx_songs_album_id" json:"album_id"`
	Year                 int32      `json:"year"`
	TrackNumber          int32      `json:"track_number"`
	DiscNumber           int32      `json:"disc_number"`
	Genres               string     `gorm:"size:512" json:"genres"` // Separator-joined genre list
	DurationMs           int64      `json:"duration_ms"`
	TrackGain            *float64   `json:"track_gain"` // Replay gain in dB
	CoverArtPath         *string    `gorm:"size:1024" json:"cover_art_path"`
	CoverSwatchLight     string     `gorm:"size:7" json:"cover_swatch_light"` // Hex color for light UI theming
	CoverSwatchDark      string     `gorm:"size:7" json:"cover_swatch_dark"`  // Hex color for dark UI theming
	LrcFilePath          *string    `gorm:"size:1024" json:"lrc_file_path"`
	LyricsLastCheckedUtc *time.Time `json:"lyrics_last_checked_utc"`
	ExtractionIssue      string     `gorm:"size:50" json:"extraction_issue"` // Reason code when tag extraction failed
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Relationships
	Folder      *Folder      `gorm:"foreignKey:FolderID" json:"-"`
	Album       *Album       `gorm:"foreignKey:AlbumID" json:"album"`
	SongArtists []SongArtist `gorm:"foreignKey:SongID;constraint:OnDelete:CASCADE" json:"song_artists"`
}

func (Song) TableName() string {
	return "songs"
}

// BeforeCreate sets the API key before creating a song
func (s *Song) BeforeCreate(tx *gorm.DB) error {
	if s.APIKey == uuid.Nil {
		s.APIKey = uuid.New()
	}
	return nil
}

// Artist represents the artists table
type Artist struct {
	ID                     int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	APIKey                 uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"api_key"`
	Name                   string     `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Biography              string     `json:"biography"`
	LocalImageCachePath    string     `gorm:"size:1024" json:"local_image_cache_path"` // Provenance encoded in filename suffix
	MetadataLastCheckedUtc *time.Time `json:"metadata_last_checked_utc"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (Artist) TableName() string {
	return "artists"
}

// BeforeCreate sets the API key before creating an artist
func (a *Artist) BeforeCreate(tx *gorm.DB) error {
	if a.APIKey == uuid.Nil {
		a.APIKey = uuid.New()
	}
	return nil
}

// Album represents the albums table
type Album struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	APIKey            uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"api_key"`
	Title             string    `gorm:"size:255;not null;index:idx_albums_title" json:"title"`
	ArtistName        string    `gorm:"size:255;not null" json:"artist_name"`         // Denormalized from album_artists
	PrimaryArtistName string    `gorm:"size:255;not null" json:"primary_artist_name"` // Denormalized from album_artists
	Year              int32     `json:"year"`
	CoverArtPath      *string   `gorm:"size:1024" json:"cover_art_path"`
	CoverSwatchLight  string    `gorm:"size:7" json:"cover_swatch_light"` // Hex color for light UI theming
	CoverSwatchDark   string    `gorm:"size:7" json:"cover_swatch_dark"`  // Hex color for dark UI theming
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relationships
	Songs        []Song        `gorm:"foreignKey:AlbumID" json:"-"`
	AlbumArtists []AlbumArtist `gorm:"foreignKey:AlbumID;constraint:OnDelete:CASCADE" json:"album_artists"`
}

func (Album) TableName() string {
	return "albums"
}

// BeforeCreate sets the API key before creating an album
func (a *Album) BeforeCreate(tx *gorm.DB) error {
	if a.APIKey == uuid.Nil {
		a.APIKey = uuid.New()
	}
	return nil
}

// SongArtist represents the song_artists junction table. SortOrder defines
// both display order and denormalization join order.
type SongArtist struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SongID    int64 `gorm:"index:idx_song_artists_song_id;not null" json:"song_id"`
	ArtistID  int64 `gorm:"index:idx_song_artists_artist_id;not null" json:"artist_id"`
	SortOrder int32 `gorm:"not null;default:0" json:"sort_order"`

	// Relationships
	Song   *Song   `gorm:"foreignKey:SongID" json:"-"`
	Artist *Artist `gorm:"foreignKey:ArtistID" json:"artist"`
}

func (SongArtist) TableName() string {
	return "song_artists"
}

// AlbumArtist represents the album_artists junction table
type AlbumArtist struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	AlbumID   int64 `gorm:"index:idx_album_artists_album_id;not null" json:"album_id"`
	ArtistID  int64 `gorm:"index:idx_album_artists_artist_id;not null" json:"artist_id"`
	SortOrder int32 `gorm:"not null;default:0" json:"sort_order"`

	// Relationships
	Album  *Album  `gorm:"foreignKey:AlbumID" json:"-"`
	Artist *Artist `gorm:"foreignKey:ArtistID" json:"artist"`
}

func (AlbumArtist) TableName() string {
	return "album_artists"
}

// ScanHistory represents library scanning history
type ScanHistory struct {
	ID         int32     `gorm:"primaryKey;autoIncrement" json:"id"`
	ScanID     string    `gorm:"size:36;not null;index" json:"scan_id"`
	FolderID   *int64    `json:"folder_id"`
	Status     string    `gorm:"size:50;not null;check:status IN ('started', 'completed', 'cancelled', 'failed')" json:"status"`
	Message    string    `json:"message"`
	FilesSeen  int32     `json:"files_seen"`
	Added      int32     `json:"added"`
	Modified   int32     `json:"modified"`
	Removed    int32     `json:"removed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ScanHistory) TableName() string {
	return "scan_histories"
}

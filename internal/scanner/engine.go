package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"melisma/internal/artistimage"
	"melisma/internal/artwork"
	"melisma/internal/cache"
	"melisma/internal/events"
	"melisma/internal/logging"
	"melisma/internal/lyrics"
	"melisma/internal/metadata"
	"melisma/internal/models"
	"melisma/internal/services"
)

// Outcome summarizes one sync operation. A Completed=false outcome with a
// nil error means the operation was cancelled before committing.
type Outcome struct {
	ScanID    string
	FilesSeen int
	Added     int
	Modified  int
	Removed   int
	Completed bool
}

func (o *Outcome) changed() bool {
	return o.Added+o.Modified+o.Removed > 0
}

// Config wires an Engine's collaborators together.
type Config struct {
	DB           *gorm.DB
	Filesystem   afero.Fs
	Folders      *FolderScanner
	Extractor    metadata.Extractor
	Artwork      *artwork.Resolver
	ArtistImages *artistimage.Resolver
	Lyrics       *lyrics.Resolver
	LyricsCache  *cache.ContentCache
	Emitter      events.Emitter
	Logger       *logging.Logger
}

// Engine reconciles the on-disk library with the database. All mutations for
// one folder rescan commit in a single transaction; at most one sync
// operation runs at a time.
type Engine struct {
	repo         *services.Repository
	fs           afero.Fs
	folders      *FolderScanner
	extractor    metadata.Extractor
	artwork      *artwork.Resolver
	artistImages *artistimage.Resolver
	lyrics       *lyrics.Resolver
	lyricsCache  *cache.ContentCache
	emit         events.Emitter
	logger       *logging.Logger

	mu      sync.Mutex
	running bool
}

// NewEngine creates a sync engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		repo:         services.NewRepository(cfg.DB),
		fs:           cfg.Filesystem,
		folders:      cfg.Folders,
		extractor:    cfg.Extractor,
		artwork:      cfg.Artwork,
		artistImages: cfg.ArtistImages,
		lyrics:       cfg.Lyrics,
		lyricsCache:  cfg.LyricsCache,
		emit:         cfg.Emitter,
		logger:       cfg.Logger,
	}
}

// tryAcquire claims the single-flight slot. Sync operations never queue: a
// request arriving while one runs is dropped.
func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// AddFolder registers a new library root and synchronizes it immediately.
func (e *Engine) AddFolder(ctx context.Context, path string) (*models.Folder, *Outcome, error) {
	info, err := e.fs.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("folder path %q is not a readable directory", path)
	}

	if existing, err := e.repo.GetFolderByPath(path); err == nil {
		return existing, nil, fmt.Errorf("folder %q is already registered", path)
	}

	folder := &models.Folder{
		Path: path,
		Name: filepath.Base(path),
	}
	if err := e.repo.CreateFolder(folder); err != nil {
		return nil, nil, fmt.Errorf("failed to register folder: %w", err)
	}

	e.emit.Emit(events.EventLibraryContentChanged, events.LibraryContentChanged{
		ChangeType: events.FolderAdded,
		FolderID:   &folder.ID,
	})

	outcome, err := e.RescanFolder(ctx, folder.ID)
	return folder, outcome, err
}

// RemoveFolder unregisters a folder, deletes its songs, and sweeps orphaned
// artists and albums. Cached cover and lyric files stay on disk.
func (e *Engine) RemoveFolder(ctx context.Context, folderID int64) error {
	folder, err := e.repo.GetFolderByID(folderID)
	if err != nil {
		return fmt.Errorf("failed to load folder %d: %w", folderID, err)
	}

	_, err = e.dropFolder(folder)
	return err
}

// dropFolder cascades the folder's deletion, sweeps orphans, and emits
// FolderRemoved. It returns the number of songs that went with the folder.
func (e *Engine) dropFolder(folder *models.Folder) (int, error) {
	songs, err := e.repo.GetSongsByFolder(folder.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load songs for folder %d: %w", folder.ID, err)
	}

	err = e.repo.DB().Transaction(func(tx *gorm.DB) error {
		repoTx := e.repo.WithTx(tx)
		if err := repoTx.DeleteFolderCascade(folder.ID); err != nil {
			return err
		}
		_, _, err := repoTx.CleanupOrphans()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove folder %q: %w", folder.Path, err)
	}

	e.emit.Emit(events.EventLibraryContentChanged, events.LibraryContentChanged{
		ChangeType: events.FolderRemoved,
		FolderID:   &folder.ID,
	})
	return len(songs), nil
}

// RescanFolder reconciles one folder with the database. It returns nil when
// another sync operation is already running.
func (e *Engine) RescanFolder(ctx context.Context, folderID int64) (*Outcome, error) {
	if !e.tryAcquire() {
		if e.logger != nil {
			e.logger.WithField("folder_id", folderID).Debug().Msg("Rescan skipped, another sync operation is running")
		}
		return nil, nil
	}
	defer e.release()

	folder, err := e.repo.GetFolderByID(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load folder %d: %w", folderID, err)
	}

	return e.rescan(ctx, folder, true)
}

// RefreshAllFolders rescans every registered folder. Folder failures are
// isolated; a single library-wide event is emitted when anything changed.
func (e *Engine) RefreshAllFolders(ctx context.Context) (*Outcome, error) {
	if !e.tryAcquire() {
		if e.logger != nil {
			e.logger.Debug("Library refresh skipped, another sync operation is running")
		}
		return nil, nil
	}
	defer e.release()

	folders, err := e.repo.ListFolders()
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	total := &Outcome{ScanID: uuid.NewString(), Completed: true}
	for i := range folders {
		if ctx.Err() != nil {
			total.Completed = false
			break
		}

		outcome, err := e.rescan(ctx, &folders[i], false)
		if err != nil {
			if e.logger != nil {
				e.logger.WithField("folder_id", folders[i].ID).Warn().Err(err).Msg("Folder rescan failed during library refresh")
			}
			continue
		}

		total.FilesSeen += outcome.FilesSeen
		total.Added += outcome.Added
		total.Modified += outcome.Modified
		total.Removed += outcome.Removed
		if !outcome.Completed {
			total.Completed = false
			break
		}
	}

	if total.Completed && total.changed() {
		e.emit.Emit(events.EventLibraryContentChanged, events.LibraryContentChanged{
			ChangeType: events.LibraryRescanned,
		})
	}
	return total, nil
}

// fileChange pairs an on-disk entry with the stale row it replaces.
type fileChange struct {
	entry FileEntry
	prior models.Song
}

func (e *Engine) rescan(ctx context.Context, folder *models.Folder, emitEvent bool) (*Outcome, error) {
	scanID := uuid.NewString()

	entries, err := e.folders.Scan(folder.Path)
	if errors.Is(err, ErrFolderGone) {
		// The registration follows the directory: a vanished root
		// unregisters the folder and everything under it.
		if e.logger != nil {
			e.logger.WithField("folder_path", folder.Path).Warn().Msg("Folder root missing, removing folder")
		}
		removed, dropErr := e.dropFolder(folder)
		if dropErr != nil {
			return nil, dropErr
		}
		return &Outcome{ScanID: scanID, Removed: removed, Completed: true}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan folder %q: %w", folder.Path, err)
	}

	existing, err := e.repo.GetSongsByFolder(folder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load songs for folder %d: %w", folder.ID, err)
	}

	added, modified, deleted := diffEntries(entries, existing)
	outcome := &Outcome{ScanID: scanID, FilesSeen: len(entries), Completed: true}
	if len(added)+len(modified)+len(deleted) == 0 {
		if e.logger != nil {
			e.logger.WithField("folder_id", folder.ID).Debug().Str("scan_id", scanID).Msg("Folder unchanged")
		}
		return outcome, nil
	}

	history := &models.ScanHistory{
		ScanID:    scanID,
		FolderID:  &folder.ID,
		Status:    "started",
		FilesSeen: int32(len(entries)),
	}
	if err := e.repo.CreateScanHistory(history); err != nil && e.logger != nil {
		e.logger.Zerolog().Warn().Err(err).Msg("Failed to record scan start")
	}

	touched := make(map[int64]string)

	txErr := e.repo.DB().Transaction(func(tx *gorm.DB) error {
		repoTx := e.repo.WithTx(tx)

		for _, entry := range added {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.syncFile(repoTx, folder, entry, nil, touched); err != nil {
				if e.logger != nil {
					e.logger.WithField("file_path", entry.Path).Warn().Err(err).Msg("Failed to sync new file")
				}
				continue
			}
			outcome.Added++
		}

		for _, change := range modified {
			if err := ctx.Err(); err != nil {
				return err
			}
			prior := change.prior
			if err := e.syncFile(repoTx, folder, change.entry, &prior, touched); err != nil {
				if e.logger != nil {
					e.logger.WithField("file_path", change.entry.Path).Warn().Err(err).Msg("Failed to sync modified file")
				}
				continue
			}
			outcome.Modified++
		}

		for _, song := range deleted {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := repoTx.DeleteSong(song.ID); err != nil {
				return fmt.Errorf("failed to delete song %q: %w", song.FilePath, err)
			}
			outcome.Removed++
		}

		if _, _, err := repoTx.CleanupOrphans(); err != nil {
			return err
		}

		folder.LastModifiedDate = time.Now().UTC()
		return repoTx.UpdateFolder(folder)
	})

	if txErr != nil {
		if errors.Is(txErr, context.Canceled) || errors.Is(txErr, context.DeadlineExceeded) {
			// Everything rolled back; the caller sees a clean
			// incomplete outcome, not an error.
			outcome.Added, outcome.Modified, outcome.Removed = 0, 0, 0
			outcome.Completed = false
			history.Status = "cancelled"
			if err := e.repo.UpdateScanHistory(history); err != nil && e.logger != nil {
				e.logger.Zerolog().Warn().Err(err).Msg("Failed to record scan cancellation")
			}
			if e.logger != nil {
				e.logger.LogScanResult(scanID, folder.ID, 0, 0, 0, false, "cancelled")
			}
			return outcome, nil
		}

		history.Status = "failed"
		history.Message = txErr.Error()
		if err := e.repo.UpdateScanHistory(history); err != nil && e.logger != nil {
			e.logger.Zerolog().Warn().Err(err).Msg("Failed to record scan failure")
		}
		if e.logger != nil {
			e.logger.LogScanResult(scanID, folder.ID, 0, 0, 0, false, txErr.Error())
		}
		return nil, fmt.Errorf("failed to sync folder %q: %w", folder.Path, txErr)
	}

	history.Status = "completed"
	history.Added = int32(outcome.Added)
	history.Modified = int32(outcome.Modified)
	history.Removed = int32(outcome.Removed)
	if err := e.repo.UpdateScanHistory(history); err != nil && e.logger != nil {
		e.logger.Zerolog().Warn().Err(err).Msg("Failed to record scan completion")
	}
	if e.logger != nil {
		e.logger.LogScanResult(scanID, folder.ID, outcome.Added, outcome.Modified, outcome.Removed, true, "")
	}

	if emitEvent && outcome.changed() {
		e.emit.Emit(events.EventLibraryContentChanged, events.LibraryContentChanged{
			ChangeType: events.FolderRescanned,
			FolderID:   &folder.ID,
		})
	}

	e.resolveArtistImages(ctx, touched)
	return outcome, nil
}

// diffEntries splits the on-disk view against the persisted view. Modified
// detection compares modification times at second precision, which is what
// survives the database round trip.
func diffEntries(onDisk map[string]FileEntry, inDB map[string]models.Song) (added []FileEntry, modified []fileChange, deleted []models.Song) {
	paths := make([]string, 0, len(onDisk))
	for path := range onDisk {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		entry := onDisk[path]
		song, exists := inDB[path]
		if !exists {
			added = append(added, entry)
			continue
		}
		if entry.Modified.Unix() != song.FileModifiedDate.Unix() {
			modified = append(modified, fileChange{entry: entry, prior: song})
		}
	}

	stale := make([]string, 0)
	for path := range inDB {
		if _, exists := onDisk[path]; !exists {
			stale = append(stale, path)
		}
	}
	sort.Strings(stale)
	for _, path := range stale {
		deleted = append(deleted, inDB[path])
	}

	return added, modified, deleted
}

// syncFile extracts metadata for one file and writes the song row with its
// relations. Extraction failures fall back to path-derived metadata with the
// reason code retained; only database errors propagate.
func (e *Engine) syncFile(repo *services.Repository, folder *models.Folder, entry FileEntry, prior *models.Song, touched map[int64]string) error {
	extraction, err := e.extractor.Extract(entry.Path)
	issue := ""
	if err != nil {
		var extractionErr *metadata.ExtractionError
		reason := metadata.ReasonCorruptFile
		if errors.As(err, &extractionErr) {
			reason = extractionErr.Reason
		}
		if e.logger != nil {
			e.logger.LogExtractionFailure(entry.Path, string(reason), err)
		}
		extraction = metadata.FallbackExtraction(entry.Path)
		issue = string(reason)
	}

	artistNames := extraction.Artists
	if len(artistNames) == 0 {
		artistNames = []string{models.UnknownArtist}
	}
	albumArtistNames := extraction.AlbumArtists
	if len(albumArtistNames) == 0 {
		albumArtistNames = artistNames
	}
	albumTitle := extraction.Album
	if albumTitle == "" {
		albumTitle = models.UnknownAlbum
	}

	refs, err := repo.EnsureArtists(artistNames)
	if err != nil {
		return err
	}
	albumRefs, err := repo.EnsureArtists(albumArtistNames)
	if err != nil {
		return err
	}
	album, err := repo.EnsureAlbum(albumTitle, extraction.Year, albumRefs)
	if err != nil {
		return err
	}

	var song models.Song
	if prior != nil {
		song = *prior
	}
	song.FilePath = entry.Path
	song.DirectoryPath = filepath.Dir(entry.Path)
	song.FolderID = folder.ID
	song.FileModifiedDate = entry.Modified
	song.Title = extraction.Title
	if song.Title == "" {
		song.Title = metadata.FallbackExtraction(entry.Path).Title
	}
	song.AlbumID = &album.ID
	song.Year = extraction.Year
	song.TrackNumber = extraction.TrackNumber
	song.DiscNumber = extraction.DiscNumber
	song.Genres = strings.Join(extraction.Genres, "; ")
	song.DurationMs = extraction.DurationMs
	song.TrackGain = extraction.TrackGain
	song.ExtractionIssue = issue

	art, err := e.artwork.Resolve(song.DirectoryPath, func() ([]byte, error) {
		if !extraction.HasPicture {
			return nil, nil
		}
		return e.extractor.EmbeddedPicture(entry.Path)
	})
	if err != nil && e.logger != nil {
		e.logger.WithField("file_path", entry.Path).Warn().Err(err).Msg("Cover art resolution failed")
	}
	if art != nil {
		song.CoverArtPath = &art.Path
		song.CoverSwatchLight = art.LightSwatch
		song.CoverSwatchDark = art.DarkSwatch
		if album.CoverArtPath == nil {
			album.CoverArtPath = &art.Path
			album.CoverSwatchLight = art.LightSwatch
			album.CoverSwatchDark = art.DarkSwatch
			if err := repo.UpdateAlbum(album); err != nil {
				return err
			}
		}
	} else {
		song.CoverArtPath = nil
		song.CoverSwatchLight = ""
		song.CoverSwatchDark = ""
	}

	if sidecar := e.sidecarLyricsPath(entry.Path); sidecar != nil {
		song.LrcFilePath = sidecar
	}

	if err := repo.UpsertSong(&song, refs); err != nil {
		return err
	}

	for _, ref := range refs {
		if _, seen := touched[ref.ID]; !seen {
			touched[ref.ID] = entry.Path
		}
	}
	for _, ref := range albumRefs {
		if _, seen := touched[ref.ID]; !seen {
			touched[ref.ID] = entry.Path
		}
	}
	return nil
}

func (e *Engine) sidecarLyricsPath(audioPath string) *string {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	for _, ext := range []string{".lrc", ".txt"} {
		candidate := base + ext
		if exists, _ := afero.Exists(e.fs, candidate); exists {
			return &candidate
		}
	}
	return nil
}

// resolveArtistImages runs portrait resolution for every artist touched by a
// committed rescan. Each artist is isolated; failures never affect the scan
// result.
func (e *Engine) resolveArtistImages(ctx context.Context, touched map[int64]string) {
	if e.artistImages == nil {
		return
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, artistID := range ids {
		if ctx.Err() != nil {
			return
		}

		artist, err := e.repo.GetArtistByID(artistID)
		if err != nil {
			continue
		}

		path, err := e.artistImages.Resolve(ctx, artist, touched[artistID])
		if err != nil {
			if e.logger != nil {
				e.logger.WithField("artist_id", artistID).Warn().Err(err).Msg("Artist image resolution failed")
			}
			continue
		}
		if path == "" {
			continue
		}

		artist.LocalImageCachePath = path
		now := time.Now().UTC()
		artist.MetadataLastCheckedUtc = &now
		if err := e.repo.UpdateArtist(artist); err != nil {
			if e.logger != nil {
				e.logger.WithField("artist_id", artistID).Warn().Err(err).Msg("Failed to persist artist image path")
			}
			continue
		}

		e.emit.Emit(events.EventArtistMetadataUpdated, events.ArtistMetadataUpdated{
			ArtistID:               artist.ID,
			NewLocalImageCachePath: path,
		})
	}
}

// ResolveLyrics runs the full lyrics chain for a song, persisting the cache
// path of newly fetched lyrics and the online check timestamp. A nil result
// with nil error means no lyrics exist anywhere.
func (e *Engine) ResolveLyrics(ctx context.Context, songID int64) (*lyrics.Lyrics, error) {
	song, err := e.repo.GetSongByID(songID)
	if err != nil {
		return nil, fmt.Errorf("failed to load song %d: %w", songID, err)
	}

	embedded := ""
	if extraction, err := e.extractor.Extract(song.FilePath); err == nil {
		embedded = extraction.Lyrics
	}

	req := lyrics.Request{
		AudioPath:      song.FilePath,
		AudioModTime:   song.FileModifiedDate,
		EmbeddedLyrics: embedded,
		Artist:         song.PrimaryArtistName,
		Title:          song.Title,
	}
	if song.LrcFilePath != nil {
		req.CachedLrcPath = *song.LrcFilePath
	}

	result, err := e.lyrics.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	dirty := false
	if result.OnlineAttempted {
		now := time.Now().UTC()
		song.LyricsLastCheckedUtc = &now
		dirty = true
	}

	if result.Lyrics != nil {
		switch result.Lyrics.Source {
		case lyrics.SourceCache, lyrics.SourceEmbedded:
			// Nothing new to persist.
		case lyrics.SourceSidecar:
			if song.LrcFilePath == nil || *song.LrcFilePath != result.Lyrics.Path {
				song.LrcFilePath = &result.Lyrics.Path
				dirty = true
			}
		default:
			// Fetched from a provider; cache the text next to the
			// other fetched artifacts.
			ext := "txt"
			if result.Lyrics.Synced {
				ext = "lrc"
			}
			path, storeErr := e.lyricsCache.StoreEntity(song.ID, cache.ProvenanceFetched, ext, []byte(result.Lyrics.Text))
			if storeErr != nil {
				if e.logger != nil {
					e.logger.Zerolog().Warn().Err(storeErr).Msg("Failed to cache fetched lyrics")
				}
			} else {
				result.Lyrics.Path = path
				song.LrcFilePath = &path
				dirty = true
			}
		}
	}

	if dirty {
		if err := e.repo.UpdateSong(song); err != nil && e.logger != nil {
			e.logger.Zerolog().Warn().Err(err).Msg("Failed to persist lyrics state")
		}
	}

	return result.Lyrics, nil
}

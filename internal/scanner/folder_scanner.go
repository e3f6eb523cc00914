package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrFolderGone reports that a registered folder root no longer exists or is
// not readable at all. The engine responds by unregistering the folder, not
// by failing the scan.
var ErrFolderGone = errors.New("folder root is missing or unreadable")

// FileEntry is a single audio file observed on disk.
type FileEntry struct {
	Path     string
	Modified time.Time
	Size     int64
}

// FolderScanner walks a folder tree and reports the audio files it can see.
// Unreadable subtrees are skipped with a warning; only a missing root is an
// error.
type FolderScanner struct {
	fs         afero.Fs
	extensions map[string]struct{}
	logger     *zerolog.Logger
}

// NewFolderScanner creates a scanner recognising the given audio extensions
// (without dots, e.g. "mp3").
func NewFolderScanner(fs afero.Fs, extensions []string, logger *zerolog.Logger) *FolderScanner {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &FolderScanner{fs: fs, extensions: allowed, logger: logger}
}

// Scan enumerates all recognised audio files under root, keyed by absolute
// path.
func (s *FolderScanner) Scan(root string) (map[string]FileEntry, error) {
	info, err := s.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, ErrFolderGone
	}

	entries := make(map[string]FileEntry)
	walkErr := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if s.logger != nil {
				s.logger.Warn().Str("path", path).Err(err).Msg("Skipping unreadable path during scan")
			}
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !s.isAudioFile(path) {
			return nil
		}
		entries[path] = FileEntry{
			Path:     path,
			Modified: info.ModTime(),
			Size:     info.Size(),
		}
		return nil
	})
	if walkErr != nil {
		return nil, ErrFolderGone
	}

	return entries, nil
}

func (s *FolderScanner) isAudioFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	_, ok := s.extensions[ext]
	return ok
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Provenance describes where a cached per-entity artifact came from. It is
// encoded as a filename suffix and is a de facto on-disk format: existing
// caches must keep resolving after upgrades.
type Provenance string

const (
	// ProvenanceCustom marks a user-supplied artifact. Never overwritten by
	// any automated resolver.
	ProvenanceCustom Provenance = "custom"
	// ProvenanceLocal marks an artifact resolved from an on-disk file next to
	// the music itself.
	ProvenanceLocal Provenance = "local"
	// ProvenanceFetched marks an artifact retrieved from an online provider,
	// or any content-addressed artifact.
	ProvenanceFetched Provenance = "fetched"
)

func (p Provenance) suffix() string {
	return "." + string(p) + "."
}

// HasProvenance reports whether the cache file at path carries the given
// provenance suffix.
func HasProvenance(path string, p Provenance) bool {
	return strings.Contains(filepath.Base(path), p.suffix())
}

// IsProtected reports whether the artifact at path must never be replaced by
// an automated resolver (user-supplied or already resolved from disk).
func IsProtected(path string) bool {
	return HasProvenance(path, ProvenanceCustom) || HasProvenance(path, ProvenanceLocal)
}

// ContentCache is a content-addressed, atomic-write file cache. Identical
// bytes always map to the same path, so concurrent writers are idempotent
// rather than merely serialized.
type ContentCache struct {
	fs  afero.Fs
	dir string
}

// NewContentCache creates a cache rooted at dir on the given filesystem.
func NewContentCache(fs afero.Fs, dir string) *ContentCache {
	return &ContentCache{fs: fs, dir: dir}
}

// Dir returns the cache root directory.
func (c *ContentCache) Dir() string {
	return c.dir
}

// StoreContent writes data under {sha256}.fetched.{ext}. When a file already
// exists at the target path the write is skipped entirely and created is
// false.
func (c *ContentCache) StoreContent(data []byte, ext string) (path string, created bool, err error) {
	if len(data) == 0 {
		return "", false, fmt.Errorf("refusing to cache empty content")
	}

	digest := sha256.Sum256(data)
	name := hex.EncodeToString(digest[:]) + ProvenanceFetched.suffix() + normalizeExt(ext)
	target := filepath.Join(c.dir, name)

	exists, err := afero.Exists(c.fs, target)
	if err != nil {
		return "", false, fmt.Errorf("stat cache entry: %w", err)
	}
	if exists {
		return target, false, nil
	}

	if err := c.writeAtomic(target, data); err != nil {
		return "", false, err
	}
	return target, true, nil
}

// StoreEntity writes data under {entityID}.{provenance}.{ext}. Unlike
// content-addressed entries these paths are not idempotent; callers must not
// re-enter the same entity concurrently.
func (c *ContentCache) StoreEntity(entityID int64, provenance Provenance, ext string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to cache empty content")
	}

	prefix := strconv.FormatInt(entityID, 10) + provenance.suffix()
	target := filepath.Join(c.dir, prefix+normalizeExt(ext))

	// An entity artifact replaces any previous one, including entries with a
	// different extension.
	if infos, err := afero.ReadDir(c.fs, c.dir); err == nil {
		for _, info := range infos {
			if strings.HasPrefix(info.Name(), prefix) {
				if err := c.fs.Remove(filepath.Join(c.dir, info.Name())); err != nil {
					return "", fmt.Errorf("remove stale cache entry: %w", err)
				}
			}
		}
	}

	if err := c.writeAtomic(target, data); err != nil {
		return "", err
	}
	return target, nil
}

// writeAtomic writes to path+".tmp" then moves into place, so a concurrent
// reader never observes a partially-written file. If another writer won the
// race the temp file is discarded and the existing entry kept.
func (c *ContentCache) writeAtomic(target string, data []byte) error {
	if err := c.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp := target + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache temp file: %w", err)
	}

	exists, err := afero.Exists(c.fs, target)
	if err != nil {
		c.fs.Remove(tmp)
		return fmt.Errorf("stat cache entry: %w", err)
	}
	if exists {
		c.fs.Remove(tmp)
		return nil
	}

	if err := c.fs.Rename(tmp, target); err != nil {
		c.fs.Remove(tmp)
		return fmt.Errorf("move cache entry into place: %w", err)
	}
	return nil
}

// normalizeExt lowercases an extension and strips any leading dot; the
// provenance suffix already ends with one.
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return ext
}

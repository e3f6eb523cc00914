package lyrics

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"melisma/internal/providers"
)

// Source names for resolved lyrics.
const (
	SourceCache    = "cache"
	SourceSidecar  = "sidecar"
	SourceEmbedded = "embedded"
)

// Lyrics is a resolved lyrics artifact.
type Lyrics struct {
	Text     string
	Synced   bool      // true when the text parsed as timestamped LRC
	Document *Document // non-nil when Synced
	Source   string    // SourceCache, SourceSidecar, SourceEmbedded, or a provider name
	Path     string    // on-disk path for local sources
}

// Request carries everything the resolver needs for one song.
type Request struct {
	AudioPath      string
	AudioModTime   time.Time
	CachedLrcPath  string // song's persisted LRC cache path, empty when none
	EmbeddedLyrics string // lyrics found in the audio tags, may be empty
	Artist         string
	Title          string
}

// Result reports what was found and whether an online attempt was actually
// made; the caller only advances the song's LyricsLastCheckedUtc timestamp in
// the latter case.
type Result struct {
	Lyrics          *Lyrics // nil when nothing was found
	OnlineAttempted bool
}

// Resolver resolves lyrics through an ordered fallback chain: fresh cache,
// sidecar files, embedded tags, then online providers raced concurrently with
// priority-ordered selection.
type Resolver struct {
	fs        afero.Fs
	gate      *providers.SessionGate
	providers []providers.LyricsProvider // fixed priority order, index 0 wins
	online    bool
	timeout   time.Duration
	logger    *zerolog.Logger
}

// NewResolver creates a lyrics resolver. The provider slice order is the
// selection priority.
func NewResolver(fs afero.Fs, gate *providers.SessionGate, lyricsProviders []providers.LyricsProvider, online bool, timeout time.Duration, logger *zerolog.Logger) *Resolver {
	return &Resolver{
		fs:        fs,
		gate:      gate,
		providers: lyricsProviders,
		online:    online,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve walks the fallback chain; each step runs only when the prior
// yielded nothing. A nil Lyrics with a nil error means expected-absent.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if lyr := r.fromCache(req); lyr != nil {
		return Result{Lyrics: lyr}, nil
	}

	if lyr := r.fromSidecar(req); lyr != nil {
		return Result{Lyrics: lyr}, nil
	}

	if strings.TrimSpace(req.EmbeddedLyrics) != "" {
		return Result{Lyrics: build(req.EmbeddedLyrics, SourceEmbedded, "")}, nil
	}

	enabled := r.enabledProviders()
	if !r.online || len(enabled) == 0 {
		// No online attempt was made; leave the last-checked timestamp alone
		// so a later enable-and-retry still happens.
		return Result{}, nil
	}

	lyr := r.fromOnline(ctx, req, enabled)
	return Result{Lyrics: lyr, OnlineAttempted: true}, nil
}

// fromCache uses the song's cached LRC file when it is at least as new as the
// audio file. A stale cache is treated as absent.
func (r *Resolver) fromCache(req Request) *Lyrics {
	if req.CachedLrcPath == "" {
		return nil
	}

	info, err := r.fs.Stat(req.CachedLrcPath)
	if err != nil || info.ModTime().Before(req.AudioModTime) {
		return nil
	}

	text, err := afero.ReadFile(r.fs, req.CachedLrcPath)
	if err != nil || len(text) == 0 {
		return nil
	}

	return build(string(text), SourceCache, req.CachedLrcPath)
}

// fromSidecar looks for {basename}.lrc, then {basename}.txt next to the audio
// file.
func (r *Resolver) fromSidecar(req Request) *Lyrics {
	base := strings.TrimSuffix(req.AudioPath, filepath.Ext(req.AudioPath))

	for _, ext := range []string{".lrc", ".txt"} {
		candidate := base + ext
		text, err := afero.ReadFile(r.fs, candidate)
		if err != nil || len(text) == 0 {
			continue
		}
		return build(string(text), SourceSidecar, candidate)
	}

	return nil
}

// fromOnline queries all enabled providers concurrently and, once all have
// settled, selects by fixed priority order: a higher-priority provider's
// non-empty result always wins, even when a lower-priority provider finished
// first.
func (r *Resolver) fromOnline(ctx context.Context, req Request, enabled []providers.LyricsProvider) *Lyrics {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	texts := make([]string, len(enabled))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, provider := range enabled {
		group.Go(func() error {
			text, status := provider.Lookup(groupCtx, req.Artist, req.Title)
			if r.gate.Observe(provider.Name(), status) && r.logger != nil {
				r.logger.Warn().
					Str("provider", provider.Name()).
					Str("status", status.String()).
					Msg("Lyrics provider disabled for session")
			}
			if status == providers.StatusSuccess {
				texts[i] = text
			}
			return nil
		})
	}

	// Workers never return errors; failures are per-provider statuses.
	_ = group.Wait()

	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			return build(text, enabled[i].Name(), "")
		}
	}

	return nil
}

func (r *Resolver) enabledProviders() []providers.LyricsProvider {
	var enabled []providers.LyricsProvider
	for _, provider := range r.providers {
		if r.gate.Enabled(provider.Name()) {
			enabled = append(enabled, provider)
		}
	}
	return enabled
}

func build(text, source, path string) *Lyrics {
	doc := ParseLRC(text)
	lyr := &Lyrics{
		Text:   text,
		Source: source,
		Path:   path,
	}
	if len(doc.Lines) > 0 {
		lyr.Synced = true
		lyr.Document = doc
	}
	return lyr
}

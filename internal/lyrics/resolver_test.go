package lyrics

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melisma/internal/providers"
)

type fakeLyricsProvider struct {
	name   string
	text   string
	status providers.Status
	delay  time.Duration
	calls  int
}

func (p *fakeLyricsProvider) Name() string { return p.name }

func (p *fakeLyricsProvider) Lookup(ctx context.Context, artist, title string) (string, providers.Status) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", providers.StatusTemporaryError
		}
	}
	return p.text, p.status
}

func writeFileWithModTime(t *testing.T, fs afero.Fs, path, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(path, modTime, modTime))
}

func newOfflineResolver(fs afero.Fs) *Resolver {
	return NewResolver(fs, providers.NewSessionGate(), nil, false, 0, nil)
}

func TestResolve_FreshCacheWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	audioTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeFileWithModTime(t, fs, "/cache/1.fetched.lrc", "[00:10.00]cached", audioTime.Add(time.Hour))

	resolver := newOfflineResolver(fs)
	result, err := resolver.Resolve(context.Background(), Request{
		AudioPath:     "/music/a/song.mp3",
		AudioModTime:  audioTime,
		CachedLrcPath: "/cache/1.fetched.lrc",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, SourceCache, result.Lyrics.Source)
	assert.True(t, result.Lyrics.Synced)
	assert.False(t, result.OnlineAttempted)
}

func TestResolve_StaleCacheIsAbsent(t *testing.T) {
	fs := afero.NewMemMapFs()
	audioTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeFileWithModTime(t, fs, "/cache/1.fetched.lrc", "[00:10.00]stale", audioTime.Add(-time.Hour))
	writeFileWithModTime(t, fs, "/music/a/song.lrc", "[00:10.00]sidecar", audioTime)

	resolver := newOfflineResolver(fs)
	result, err := resolver.Resolve(context.Background(), Request{
		AudioPath:     "/music/a/song.mp3",
		AudioModTime:  audioTime,
		CachedLrcPath: "/cache/1.fetched.lrc",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, SourceSidecar, result.Lyrics.Source, "stale cache must fall through to the sidecar")
}

func TestResolve_CacheAtExactAudioTimeIsFresh(t *testing.T) {
	fs := afero.NewMemMapFs()
	audioTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeFileWithModTime(t, fs, "/cache/1.fetched.lrc", "[00:10.00]cached", audioTime)

	resolver := newOfflineResolver(fs)
	result, err := resolver.Resolve(context.Background(), Request{
		AudioPath:     "/music/a/song.mp3",
		AudioModTime:  audioTime,
		CachedLrcPath: "/cache/1.fetched.lrc",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, SourceCache, result.Lyrics.Source)
}

func TestResolve_SidecarPrefersLrcOverTxt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/a/song.lrc", []byte("[00:10.00]synced"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/music/a/song.txt", []byte("plain"), 0o644))

	resolver := newOfflineResolver(fs)
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, "/music/a/song.lrc", result.Lyrics.Path)
	assert.True(t, result.Lyrics.Synced)
}

func TestResolve_PlainTextSidecarIsUnsynced(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/a/song.txt", []byte("just words"), 0o644))

	resolver := newOfflineResolver(fs)
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.False(t, result.Lyrics.Synced)
	assert.Nil(t, result.Lyrics.Document)
}

func TestResolve_EmbeddedFallback(t *testing.T) {
	fs := afero.NewMemMapFs()

	resolver := newOfflineResolver(fs)
	result, err := resolver.Resolve(context.Background(), Request{
		AudioPath:      "/music/a/song.mp3",
		EmbeddedLyrics: "[00:05.00]from the tags",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, SourceEmbedded, result.Lyrics.Source)
	assert.False(t, result.OnlineAttempted)
}

func TestResolve_OfflineNeverAttemptsOnline(t *testing.T) {
	fs := afero.NewMemMapFs()
	provider := &fakeLyricsProvider{name: "fake", text: "hit", status: providers.StatusSuccess}

	resolver := NewResolver(fs, providers.NewSessionGate(), []providers.LyricsProvider{provider}, false, time.Second, nil)
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})

	require.NoError(t, err)
	assert.Nil(t, result.Lyrics)
	assert.False(t, result.OnlineAttempted)
	assert.Zero(t, provider.calls)
}

func TestResolve_OnlinePriorityOrderWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	// The lower-priority provider answers instantly, the higher-priority one
	// slowly; priority must still decide.
	slow := &fakeLyricsProvider{name: "slow-primary", text: "primary words", status: providers.StatusSuccess, delay: 50 * time.Millisecond}
	fast := &fakeLyricsProvider{name: "fast-secondary", text: "secondary words", status: providers.StatusSuccess}

	resolver := NewResolver(fs, providers.NewSessionGate(), []providers.LyricsProvider{slow, fast}, true, time.Second, nil)
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3", Artist: "A", Title: "T"})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, "primary words", result.Lyrics.Text)
	assert.Equal(t, "slow-primary", result.Lyrics.Source)
	assert.True(t, result.OnlineAttempted)
	assert.Equal(t, 1, fast.calls, "all providers are queried concurrently")
}

func TestResolve_OnlineNotFoundFallsToNextProvider(t *testing.T) {
	fs := afero.NewMemMapFs()
	miss := &fakeLyricsProvider{name: "first", status: providers.StatusNotFound}
	hit := &fakeLyricsProvider{name: "second", text: "found", status: providers.StatusSuccess}

	resolver := NewResolver(fs, providers.NewSessionGate(), []providers.LyricsProvider{miss, hit}, true, time.Second, nil)
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})

	require.NoError(t, err)
	require.NotNil(t, result.Lyrics)
	assert.Equal(t, "second", result.Lyrics.Source)
}

func TestResolve_OnlineAttemptedEvenWhenNothingFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	miss := &fakeLyricsProvider{name: "only", status: providers.StatusNotFound}

	resolver := NewResolver(fs, providers.NewSessionGate(), []providers.LyricsProvider{miss}, true, time.Second, nil)
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})

	require.NoError(t, err)
	assert.Nil(t, result.Lyrics)
	assert.True(t, result.OnlineAttempted)
}

func TestResolve_PermanentErrorDisablesProviderForSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	gate := providers.NewSessionGate()
	broken := &fakeLyricsProvider{name: "broken", status: providers.StatusPermanentError}

	resolver := NewResolver(fs, gate, []providers.LyricsProvider{broken}, true, time.Second, nil)

	_, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls)
	assert.False(t, gate.Enabled("broken"))

	// A second resolve must not touch the disabled provider, and with no
	// enabled providers left it makes no online attempt at all.
	result, err := resolver.Resolve(context.Background(), Request{AudioPath: "/music/a/song.mp3"})
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls)
	assert.False(t, result.OnlineAttempted)
}

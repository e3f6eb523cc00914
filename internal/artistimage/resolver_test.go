package artistimage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melisma/internal/cache"
	"melisma/internal/models"
	"melisma/internal/providers"
)

type fakeImageProvider struct {
	name   string
	data   []byte
	status providers.Status
	calls  int
}

func (p *fakeImageProvider) Name() string { return p.name }

func (p *fakeImageProvider) Lookup(ctx context.Context, artistName string) ([]byte, providers.Status) {
	p.calls++
	return p.data, p.status
}

func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newOfflineResolver(fs afero.Fs) *Resolver {
	return NewResolver(fs, cache.NewContentCache(fs, "/artists"), providers.NewSessionGate(), nil, false, 0, nil)
}

func TestResolve_ArtistFolderImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/artist.png", pngBytes(t, color.RGBA{100, 100, 100, 255}), 0o644))
	require.NoError(t, fs.MkdirAll("/music/Artist/Album", 0o755))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 7, Name: "Artist"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/01 - Track.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/artists/7.local.png", path)

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResolve_AlbumDirectoryIsSecondPass(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/Album/artist.jpg", pngBytes(t, color.RGBA{80, 80, 80, 255}), 0o644))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 7, Name: "Artist"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/01 - Track.mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "/artists/7.local."))
}

func TestResolve_ParentDirectoryWinsOverAlbumDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	parentArt := pngBytes(t, color.RGBA{200, 200, 200, 255})
	albumArt := pngBytes(t, color.RGBA{20, 20, 20, 255})
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/artist.png", parentArt, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/Album/artist.png", albumArt, 0o644))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 7, Name: "Artist"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/01 - Track.mp3")
	require.NoError(t, err)

	cached, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, parentArt, cached)
}

func TestResolve_CaseInsensitiveBasename(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/ARTIST.Png", pngBytes(t, color.RGBA{60, 60, 60, 255}), 0o644))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 3, Name: "Artist"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestResolve_ProtectedPathsAreNeverTouched(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/artist.png", pngBytes(t, color.RGBA{60, 60, 60, 255}), 0o644))

	resolver := newOfflineResolver(fs)

	custom := &models.Artist{ID: 1, Name: "A", LocalImageCachePath: "/artists/1.custom.png"}
	path, err := resolver.Resolve(context.Background(), custom, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Empty(t, path, "user-supplied image must never be replaced")

	local := &models.Artist{ID: 2, Name: "B", LocalImageCachePath: "/artists/2.local.png"}
	path, err = resolver.Resolve(context.Background(), local, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Empty(t, path, "already-resolved local image is not re-resolved")
}

func TestResolve_FetchedPathIsReplaceable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/artist.png", pngBytes(t, color.RGBA{60, 60, 60, 255}), 0o644))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 4, Name: "A", LocalImageCachePath: "/artists/4.fetched.jpg"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/artists/4.local.png", path, "a local image upgrades a previously fetched one")
}

func TestResolve_NoLocalImageOffline(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/music/Artist/Album", 0o755))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 5, Name: "Nobody"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestResolve_OnlineFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/music/Artist/Album", 0o755))

	provider := &fakeImageProvider{name: "fake", data: pngBytes(t, color.RGBA{42, 42, 42, 255}), status: providers.StatusSuccess}
	resolver := NewResolver(fs, cache.NewContentCache(fs, "/artists"), providers.NewSessionGate(),
		[]providers.ArtistImageProvider{provider}, true, time.Second, nil)

	artist := &models.Artist{ID: 9, Name: "Online Only"}
	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/artists/9.fetched.png", path)
	assert.Equal(t, 1, provider.calls)
}

func TestResolve_PermanentProviderErrorDisablesForSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/music/Artist/Album", 0o755))

	gate := providers.NewSessionGate()
	broken := &fakeImageProvider{name: "broken", status: providers.StatusPermanentError}
	resolver := NewResolver(fs, cache.NewContentCache(fs, "/artists"), gate,
		[]providers.ArtistImageProvider{broken}, true, time.Second, nil)

	artist := &models.Artist{ID: 10, Name: "A"}

	_, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls)

	_, err = resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls, "disabled provider must not be queried again")
}

func TestResolve_CorruptLocalImageYieldsNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/Artist/artist.png", []byte("not an image"), 0o644))

	resolver := newOfflineResolver(fs)
	artist := &models.Artist{ID: 11, Name: "A"}

	path, err := resolver.Resolve(context.Background(), artist, "/music/Artist/Album/track.mp3")
	require.NoError(t, err, "image processing failures never abort the scan")
	assert.Empty(t, path)
}

func TestNormalizeImage_DownscalesOversized(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2048, 1024))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	data, ext, err := NormalizeImage(buf.Bytes(), "png")
	require.NoError(t, err)
	assert.Equal(t, "jpg", ext, "downscaled images are re-encoded as JPEG")

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestNormalizeImage_SmallImagePassesThrough(t *testing.T) {
	original := pngBytes(t, color.RGBA{1, 2, 3, 255})

	data, ext, err := NormalizeImage(original, "png")
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
	assert.Equal(t, original, data)
}

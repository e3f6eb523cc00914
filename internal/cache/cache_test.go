package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ContentCache, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewContentCache(fs, "/cache"), fs
}

func TestStoreContent_ContentAddressed(t *testing.T) {
	c, _ := newTestCache(t)
	data := []byte("image-bytes")

	path, created, err := c.StoreContent(data, "jpg")
	require.NoError(t, err)
	assert.True(t, created)

	sum := sha256.Sum256(data)
	expected := filepath.Join("/cache", hex.EncodeToString(sum[:])+".fetched.jpg")
	assert.Equal(t, expected, path)
}

func TestStoreContent_DeduplicatesIdenticalBytes(t *testing.T) {
	c, fs := newTestCache(t)
	data := []byte("same-bytes")

	first, created, err := c.StoreContent(data, "jpg")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := c.StoreContent(data, "jpg")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	infos, err := afero.ReadDir(fs, "/cache")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestStoreContent_DifferentBytesDifferentPaths(t *testing.T) {
	c, _ := newTestCache(t)

	first, _, err := c.StoreContent([]byte("one"), "png")
	require.NoError(t, err)
	second, _, err := c.StoreContent([]byte("two"), "png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestStoreContent_LeavesNoTempFiles(t *testing.T) {
	c, fs := newTestCache(t)

	for i := 0; i < 5; i++ {
		_, _, err := c.StoreContent([]byte(fmt.Sprintf("payload-%d", i)), "jpg")
		require.NoError(t, err)
	}

	infos, err := afero.ReadDir(fs, "/cache")
	require.NoError(t, err)
	for _, info := range infos {
		assert.False(t, strings.HasSuffix(info.Name(), ".tmp"), "temp file left behind: %s", info.Name())
	}
}

func TestStoreEntity_ReplacesStaleEntry(t *testing.T) {
	c, fs := newTestCache(t)

	first, err := c.StoreEntity(42, ProvenanceLocal, "jpg", []byte("old"))
	require.NoError(t, err)

	second, err := c.StoreEntity(42, ProvenanceLocal, "png", []byte("new"))
	require.NoError(t, err)

	exists, err := afero.Exists(fs, first)
	require.NoError(t, err)
	assert.False(t, exists, "stale entry should be removed")

	content, err := afero.ReadFile(fs, second)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), content)
}

func TestProvenance_Detection(t *testing.T) {
	assert.True(t, HasProvenance("/cache/7.custom.jpg", ProvenanceCustom))
	assert.True(t, HasProvenance("/cache/7.local.jpg", ProvenanceLocal))
	assert.True(t, HasProvenance("/cache/abc123.fetched.png", ProvenanceFetched))
	assert.False(t, HasProvenance("/cache/7.local.jpg", ProvenanceCustom))
}

func TestIsProtected(t *testing.T) {
	assert.True(t, IsProtected("/cache/7.custom.jpg"), "user-supplied images are protected")
	assert.True(t, IsProtected("/cache/7.local.jpg"), "locally resolved images are protected")
	assert.False(t, IsProtected("/cache/7.fetched.jpg"), "fetched images may be replaced")
	assert.False(t, IsProtected(""), "empty path is not protected")
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "jpg", normalizeExt(".JPG"))
	assert.Equal(t, "png", normalizeExt("png"))
	assert.Equal(t, "bin", normalizeExt(""))
}

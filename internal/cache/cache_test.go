package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("google", "Egg contains vitamin B12")
	b := CacheKey("google", "  egg   CONTAINS vitamin b12 ")
	c := CacheKey("duckduckgo", "Egg contains vitamin B12")

	assert.True(t, strings.HasPrefix(a, "safeguard:search:v1:"))
	assert.Equal(t, a, b, "normalised queries share a key")
	assert.NotEqual(t, a, c, "providers do not share entries")
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(0, ""))
	assert.IsType(t, &MemoryCache{}, New(time.Minute, ""))
	assert.IsType(t, &LayeredCache{}, New(time.Minute, t.TempDir()))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// A second instance sees the persisted entry
	got, ok = NewDiskCache(dir, time.Minute).Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Set("old", []byte("v"), -time.Second))
	_, ok = c.Get("old")
	assert.False(t, ok, "expired entries are dropped")
}

func TestLayeredCache(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Minute)

	require.NoError(t, c.Set("k", []byte("v"), 0))

	// Fresh layered cache over the same dir promotes from disk
	c2 := NewLayeredCache(time.Minute, dir, time.Minute)
	got, ok := c2.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok = c2.layers[0].Get("k")
	assert.True(t, ok, "disk hit is promoted to memory")

	require.NoError(t, c2.Delete("k"))
	require.NoError(t, c2.Delete("missing"))
	_, ok = c2.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Clear())
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	val := []byte("abc")
	require.NoError(t, c.Set("k", val, 0))
	val[0] = 'x'

	got, _ := c.Get("k")
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'y'

	again, _ := c.Get("k")
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, 1, c.Len())
}

func TestDiskCache_PortableNames(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)
	key := CacheKey("google", "egg")
	require.NoError(t, c.Set(key, []byte("v"), 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ":")
	assert.True(t, strings.HasSuffix(entries[0].Name(), diskSuffix))
}

func TestDiskCache_ClearKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o644))

	c := NewDiskCache(dir, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 0))
	require.NoError(t, c.Clear())

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.FileExists(t, other)
}

func TestDiskCache_ClearMissingDir(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "absent"), time.Minute)
	assert.NoError(t, c.Clear())
}

func TestLayers_PromoteToEveryFrontLayer(t *testing.T) {
	a := NewMemoryCache(time.Minute, time.Minute)
	b := NewMemoryCache(time.Minute, time.Minute)
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 0))

	l := NewLayers(a, b, c)
	_, ok := l.Get("k")
	require.True(t, ok)

	_, ok = a.Get("k")
	assert.True(t, ok)
	_, ok = b.Get("k")
	assert.True(t, ok)
}

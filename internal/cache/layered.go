package cache

import (
	"errors"
	"io/fs"
	"time"
)

// LayeredCache reads through its layers in order and promotes hits to the
// faster layers in front of the one that answered. Writes go to every layer.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache puts a memory layer in front of a disk layer in diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayers(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL))
}

// NewLayers builds a layered cache from fastest to slowest
func NewLayers(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, ok := layer.Get(key)
		if !ok {
			continue
		}
		for _, front := range c.layers[:i] {
			_ = front.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, layer := range c.layers {
		errs = append(errs, layer.Set(key, value, ttl))
	}
	return errors.Join(errs...)
}

// Delete removes key from every layer; a missing entry is not an error
func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *LayeredCache) Clear() error {
	var errs []error
	for _, layer := range c.layers {
		errs = append(errs, layer.Clear())
	}
	return errors.Join(errs...)
}

// Package cache provides caching for rendered figures and derived results.
// Every cached value is a pure function of (study, selection), so entries
// never need invalidation, only eviction.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	ImageCacheSizeMB int
	ImageTTL         time.Duration
	DerivedCacheSize int
}

// Manager manages the figure and derived-result caches.
type Manager struct {
	imageCache   *bigcache.BigCache
	derivedCache *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	imageCacheConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.ImageTTL,
		CleanWindow:        cfg.ImageTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024, // full figures, not tiles
		HardMaxCacheSize:   cfg.ImageCacheSizeMB,
		Verbose:            false,
	}

	imageCache, err := bigcache.New(context.Background(), imageCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	derivedCache, err := lru.New[string, []byte](cfg.DerivedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create derived cache: %w", err)
	}

	return &Manager{
		imageCache:   imageCache,
		derivedCache: derivedCache,
	}, nil
}

// GetImage retrieves a rendered figure from cache.
func (m *Manager) GetImage(key string) ([]byte, bool) {
	data, err := m.imageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetImage stores a rendered figure in cache.
func (m *Manager) SetImage(key string, data []byte) error {
	return m.imageCache.Set(key, data)
}

// GetDerived retrieves a derived result from cache.
func (m *Manager) GetDerived(key string) ([]byte, bool) {
	return m.derivedCache.Get(key)
}

// SetDerived stores a derived result in cache.
func (m *Manager) SetDerived(key string, data []byte) {
	m.derivedCache.Add(key, data)
}

// ParameterMapKey identifies a rendered parameter-map figure. The crosshair
// voxel is part of the key: moving the voxel changes the image.
func ParameterMapKey(model, param string, x, y, w, h int, cmap string) string {
	return fmt.Sprintf("pmap:%s/%s:%d,%d:%dx%d:%s", model, param, x, y, w, h, cmap)
}

// ResidualMapKey identifies a rendered RSS panel figure.
func ResidualMapKey(model string, w, h int, cmap string) string {
	return fmt.Sprintf("rss:%s:%dx%d:%s", model, w, h, cmap)
}

// BestModelKey identifies the rendered best-model figure.
func BestModelKey(w, h int) string {
	return fmt.Sprintf("best:%dx%d", w, h)
}

// CurveKey identifies a curve figure or bundle for a voxel and an ordered
// model selection. Order matters: it drives curve colors.
func CurveKey(x, y int, models []string, w, h int) string {
	return fmt.Sprintf("curves:%d,%d:%s:%dx%d", x, y, strings.Join(models, ","), w, h)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"image_cache_len":   m.imageCache.Len(),
		"image_cache_cap":   m.imageCache.Capacity(),
		"derived_cache_len": m.derivedCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.imageCache.Close()
}

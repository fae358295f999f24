package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hyperdemocracy/congressprep/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from document content
func CacheKey(content string) string {
	hash := sha256.Sum256([]byte(content))
	return "congressprep:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only when no directory is
// configured, memory over disk otherwise. It returns nil when caching is off.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

package textversion

import (
	"github.com/hyperdemocracy/congressprep/internal/cache"
)

// TextExtractor renders a cleaned document as plain text
type TextExtractor interface {
	Extract(doc string) (string, error)
}

// CachedExtractor memoizes extraction results by document content
type CachedExtractor struct {
	next  TextExtractor
	cache cache.Cache
}

// NewCachedExtractor wraps next with c
func NewCachedExtractor(next TextExtractor, c cache.Cache) *CachedExtractor {
	return &CachedExtractor{
		next:  next,
		cache: c,
	}
}

// Extract returns the cached text for doc, extracting and storing it on a miss.
// Failures are not cached.
func (c *CachedExtractor) Extract(doc string) (string, error) {
	key := cache.CacheKey(doc)
	if val, found := c.cache.Get(key); found {
		return string(val), nil
	}

	text, err := c.next.Extract(doc)
	if err != nil {
		return "", err
	}

	// a failed write only costs a re-extraction later
	_ = c.cache.Set(key, []byte(text), 0)
	return text, nil
}

package indexer

import (
	"fmt"

	"github.com/maypok86/otter"

	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// DefaultCacheCapacity is the number of analyzed files kept in memory.
const DefaultCacheCapacity = 10_000

// AnalysisCache keeps analyzed records keyed by language, path and raw
// content hash, so unchanged files are not re-analyzed between runs of a
// long-lived process (watch mode, MCP server).
type AnalysisCache struct {
	cache otter.Cache[string, model.ModuleRecord]
}

// NewAnalysisCache creates a cache holding up to capacity records.
func NewAnalysisCache(capacity int) (*AnalysisCache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	cache, err := otter.MustBuilder[string, model.ModuleRecord](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	return &AnalysisCache{cache: cache}, nil
}

// cacheKey identifies one analysis input. The path is part of the key
// because records carry path-dependent data (category, import targets).
func cacheKey(lang model.Language, relPath string, source []byte) string {
	return string(lang) + ":" + relPath + ":" + hashing.HashContent(string(source))
}

// Get returns the cached record for key.
func (c *AnalysisCache) Get(key string) (model.ModuleRecord, bool) {
	if c == nil {
		return model.ModuleRecord{}, false
	}
	return c.cache.Get(key)
}

// Set stores a record under key.
func (c *AnalysisCache) Set(key string, record model.ModuleRecord) {
	if c == nil {
		return
	}
	c.cache.Set(key, record)
}

// Len returns the number of cached records.
func (c *AnalysisCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Size()
}

// Hits returns the number of cache hits so far.
func (c *AnalysisCache) Hits() int64 {
	if c == nil {
		return 0
	}
	return c.cache.Stats().Hits()
}

// Close releases the cache's background resources.
func (c *AnalysisCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}

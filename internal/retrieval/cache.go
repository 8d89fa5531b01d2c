package retrieval

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// queryCache caches the raw vector-search rows for a (query, k') pair,
// grounded on projectstore.Store's artifactCache
// (*lru.Cache[string, []ProjectArtifact]) — same library, same shape,
// applied to retrieval rows instead of artifacts. Dialogue turns
// across personas frequently reissue near-identical queries against
// the same report corpus, so this avoids re-embedding and re-querying
// pgvector for a repeat.
type queryCache struct {
	cache *lru.Cache[string, []ChunkRow]
}

func newQueryCache(size int) *queryCache {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, []ChunkRow](size)
	if err != nil {
		return &queryCache{}
	}
	return &queryCache{cache: c}
}

func (c *queryCache) get(key string) ([]ChunkRow, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *queryCache) put(key string, rows []ChunkRow) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Add(key, rows)
}

package indexer

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheSet groups the three indexing caches so they are sized and cleared
// together. hash and meta are keyed by path:mtime:size, embed by the sha256
// of the chunk text.
type cacheSet struct {
	hash  *lru.Cache[string, string]    // stat signature -> content hash
	meta  *lru.Cache[string, string]    // stat signature -> file ID
	embed *lru.Cache[string, []float32] // content hash -> vector
}

func newCacheSet(hashSize, metaSize, embedSize int) *cacheSet {
	if hashSize <= 0 {
		hashSize = 2048
	}
	if metaSize <= 0 {
		metaSize = 2048
	}
	if embedSize <= 0 {
		embedSize = 8192
	}
	// Sizes are validated above, so construction cannot fail.
	hash, _ := lru.New[string, string](hashSize)
	meta, _ := lru.New[string, string](metaSize)
	embed, _ := lru.New[string, []float32](embedSize)
	return &cacheSet{hash: hash, meta: meta, embed: embed}
}

func (c *cacheSet) clear() {
	c.hash.Purge()
	c.meta.Purge()
	c.embed.Purge()
}

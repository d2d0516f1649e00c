package search

import (
	"container/heap"
	"sort"

	"github.com/semdex/semdex/pkg/types"
)

// hitHeap is a min-heap over scores so the current worst hit sits at the
// root and is evicted first. Among equal scores the higher chunk index is
// considered worse, which keeps the lower index when the heap is full.
type hitHeap []types.SearchHit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ChunkIndex > h[j].ChunkIndex
}

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(types.SearchHit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topCollector keeps the k best hits seen so far without retaining the full
// candidate set. Scoring large indexes pushes every candidate through it.
type topCollector struct {
	k int
	h hitHeap
}

func newTopCollector(k int) *topCollector {
	return &topCollector{k: k, h: make(hitHeap, 0, k)}
}

func (c *topCollector) add(hit types.SearchHit) {
	if c.h.Len() < c.k {
		heap.Push(&c.h, hit)
		return
	}
	worst := c.h[0]
	if hit.Score > worst.Score || (hit.Score == worst.Score && hit.ChunkIndex < worst.ChunkIndex) {
		c.h[0] = hit
		heap.Fix(&c.h, 0)
	}
}

// results returns the retained hits ordered by score descending, chunk index
// ascending on ties.
func (c *topCollector) results() []types.SearchHit {
	out := make([]types.SearchHit, len(c.h))
	copy(out, c.h)
	sortHits(out)
	return out
}

// sortHits orders hits by score descending; equal scores by chunk index
// ascending. The stable sort keeps insertion order for full ties, such as
// equally-scored chunks at the same index in different files.
func sortHits(hits []types.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
}

package gallery

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

const hnswMaxNeighbors = 16

// Index is an in-memory HNSW index over gallery entries. The matcher
// itself scans exhaustively (galleries are small and margin logic needs
// every score); the index serves the web API's identity lookups, where a
// site-wide gallery can grow into the thousands.
type Index struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	entries map[string]Entry
}

// Neighbor is one approximate nearest-neighbor result.
type Neighbor struct {
	Entry      Entry
	Similarity float64
}

// NewIndex builds an index from a gallery snapshot.
func NewIndex(entries []Entry) *Index {
	idx := &Index{entries: make(map[string]Entry, len(entries))}
	if len(entries) == 0 {
		return idx
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(e.ID, e.Embedding))
		idx.entries[e.ID] = e
	}
	idx.graph = g
	return idx
}

// Nearest returns up to k entries closest to the query embedding.
func (idx *Index) Nearest(query []float32, k int) ([]Neighbor, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, errors.New("index is empty")
	}

	nodes := idx.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		e, ok := idx.entries[n.Key]
		if !ok {
			continue
		}
		out = append(out, Neighbor{
			Entry:      e,
			Similarity: 1 - float64(hnsw.CosineDistance(query, n.Value)),
		})
	}
	return out, nil
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

package matcher

import (
	"fmt"
	"math"

	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/coder/hnsw"
)

const (
	// hnswMaxNeighbors is M for the reference graph.
	hnswMaxNeighbors = 16
	// hnswCandidates is how many neighbours a search proposes for exact re-ranking.
	hnswCandidates = 32
)

// Indexed answers nearest-neighbour queries from an HNSW graph built over a
// fixed reference set. The graph only proposes candidates: they are re-ranked
// by exact distance, and a probe with no candidate under Threshold falls back
// to a full Nearest scan, so a face is never reported Unknown while a
// reference lies under Threshold.
type Indexed struct {
	Threshold float64

	graph   *hnsw.Graph[int]
	dim     int
	entries []reference.Entry
	refs    *reference.Set
}

// NewIndexed builds the graph over refs. All embeddings must share a dimension.
func NewIndexed(refs *reference.Set, threshold float64) (*Indexed, error) {
	entries := refs.Entries()
	idx := &Indexed{Threshold: threshold, entries: entries, refs: refs}
	if len(entries) == 0 {
		return idx, nil
	}

	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	g.EfSearch = 4 * hnswCandidates

	dim := len(entries[0].Embedding)
	for i, e := range entries {
		if len(e.Embedding) != dim || dim == 0 {
			return nil, fmt.Errorf("reference %q has dimension %d, want %d", e.Label, len(e.Embedding), dim)
		}
		g.Add(hnsw.MakeNode(i, []float32(e.Embedding)))
	}
	idx.graph = g
	idx.dim = dim
	return idx, nil
}

// Match ignores refs; the set was fixed when the index was built.
func (p *Indexed) Match(probe vision.Embedding, _ *reference.Set) (string, float64) {
	if p.graph == nil || len(probe) != p.dim {
		return vision.Unknown, math.Inf(1)
	}

	// Candidates come back in graph order; keep the earliest entry on ties.
	best := -1
	minDist := math.Inf(1)
	for _, n := range p.graph.Search([]float32(probe), hnswCandidates) {
		d := vision.Distance(probe, p.entries[n.Key].Embedding)
		if d < minDist || (d == minDist && n.Key < best) {
			best, minDist = n.Key, d
		}
	}
	if best >= 0 && minDist < p.Threshold {
		return p.entries[best].Label, minDist
	}
	return Nearest{Threshold: p.Threshold}.Match(probe, p.refs)
}

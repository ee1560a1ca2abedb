package retriever

import (
	"sort"

	"docrag/internal/domain"
)

// graphPenalty discounts chunks found only through link traversal.
const graphPenalty = 0.8

// Fuse merges semantic and graph candidates by chunk id. Semantic
// entries win duplicates outright and keep their score and tag.
// Graph-only entries are discounted by graphPenalty and tagged hybrid.
// The result comes back score-ordered so any downstream ranking policy
// starts from a deterministic list.
func Fuse(semantic, graph []domain.RetrievedChunk) []domain.RetrievedChunk {
	seen := make(map[string]struct{}, len(semantic)+len(graph))
	fused := make([]domain.RetrievedChunk, 0, len(semantic)+len(graph))

	for _, c := range semantic {
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		fused = append(fused, c)
	}

	for _, c := range graph {
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		c.Score *= graphPenalty
		c.Method = domain.MethodHybrid
		fused = append(fused, c)
	}

	SortByScore(fused)
	return fused
}

// SortByScore orders chunks by score descending, breaking ties by
// document path then chunk id so equal-score runs are reproducible.
func SortByScore(chunks []domain.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		if chunks[i].DocPath != chunks[j].DocPath {
			return chunks[i].DocPath < chunks[j].DocPath
		}
		return chunks[i].ChunkID < chunks[j].ChunkID
	})
}

package retriever

import (
	"fmt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Semantic retrieves chunks by embedding the query and searching the
// vector index for nearest neighbors.
type Semantic struct {
	embedder port.Embedder
	index    port.VectorIndex
}

func NewSemantic(embedder port.Embedder, index port.VectorIndex) *Semantic {
	return &Semantic{
		embedder: embedder,
		index:    index,
	}
}

func (r *Semantic) Search(query string, k int) ([]domain.RetrievedChunk, error) {
	embeddings, err := r.embedder.Embed([]string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.index.QueryNearest(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	chunks := make([]domain.RetrievedChunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, fromResult(res, 1-res.Distance, domain.MethodSemantic))
	}
	return chunks, nil
}

// SeedPaths returns the distinct document paths of the given chunks in
// order of first appearance, for use as graph traversal seeds.
func SeedPaths(chunks []domain.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	paths := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.DocPath]; ok {
			continue
		}
		seen[c.DocPath] = struct{}{}
		paths = append(paths, c.DocPath)
	}
	return paths
}

func fromResult(res port.VectorResult, score float64, method string) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		ChunkID:  res.ID,
		Content:  res.Text,
		DocPath:  res.Metadata["file_path"],
		DocTitle: res.Metadata["doc_title"],
		Section:  res.Metadata["section"],
		Score:    score,
		Method:   method,
		Metadata: res.Metadata,
	}
}

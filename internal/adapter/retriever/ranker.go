package retriever

import (
	"docrag/internal/domain"
)

// ScoreRanker is the default ranking policy: score descending with a
// lexicographic tie-break.
type ScoreRanker struct{}

func (ScoreRanker) Rank(query string, chunks []domain.RetrievedChunk, k int) []domain.RetrievedChunk {
	ranked := make([]domain.RetrievedChunk, len(chunks))
	copy(ranked, chunks)
	SortByScore(ranked)
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

package port

import "docrag/internal/domain"

type Ranker interface {
	Rank(query string, chunks []domain.RetrievedChunk, k int) []domain.RetrievedChunk
}

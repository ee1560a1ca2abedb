package retriever

import (
	"testing"

	"docrag/internal/domain"
)

func TestScoreRanker(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkID: "c1", DocPath: "a.md", Score: 0.3},
		{ChunkID: "c2", DocPath: "b.md", Score: 0.9},
		{ChunkID: "c3", DocPath: "c.md", Score: 0.6},
	}

	ranked := ScoreRanker{}.Rank("", chunks, 2)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].ChunkID != "c2" || ranked[1].ChunkID != "c3" {
		t.Errorf("order = [%s %s], want [c2 c3]", ranked[0].ChunkID, ranked[1].ChunkID)
	}

	// The input slice keeps its original order.
	if chunks[0].ChunkID != "c1" {
		t.Errorf("input mutated: %v", chunks)
	}
}

func TestScoreRanker_KLargerThanInput(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkID: "c1", Score: 0.3},
	}

	ranked := ScoreRanker{}.Rank("", chunks, 10)
	if len(ranked) != 1 {
		t.Errorf("expected 1 result, got %d", len(ranked))
	}
}

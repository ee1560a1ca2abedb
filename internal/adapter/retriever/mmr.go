package retriever

import (
	"docrag/internal/adapter/text"
	"docrag/internal/domain"
)

// MMRRanker implements Maximal Marginal Relevance for result diversification.
type MMRRanker struct {
	lambda       float64
	dedupJaccard float64
	tokenizer    *text.Tokenizer
}

// NewMMRRanker creates an MMR ranking policy. lambda weights relevance
// against diversity; dedupJaccard drops candidates nearly identical to
// an already selected one. Overlap is measured on stemmed tokens, so
// paraphrased near-duplicates still count as similar.
func NewMMRRanker(lambda, dedupJaccard float64) *MMRRanker {
	return &MMRRanker{
		lambda:       lambda,
		dedupJaccard: dedupJaccard,
		tokenizer:    text.NewTokenizer(true),
	}
}

// Rank applies MMR to diversify the results.
// MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
func (r *MMRRanker) Rank(query string, chunks []domain.RetrievedChunk, k int) []domain.RetrievedChunk {
	if len(chunks) == 0 {
		return nil
	}

	candidates := make([]domain.RetrievedChunk, len(chunks))
	copy(candidates, chunks)
	SortByScore(candidates)

	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}

	// Normalize scores to [0, 1] for fair comparison
	maxScore := candidates[0].Score
	if maxScore == 0 {
		maxScore = 1
	}

	tokens := make([][]string, len(candidates))
	for i, c := range candidates {
		tokens[i] = r.tokenizer.Tokenize(c.Content)
	}

	selected := make([]domain.RetrievedChunk, 0, k)
	selectedTokens := make([][]string, 0, k)
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		bestPos := -1
		bestMMR := -1e9

		for pos, idx := range remaining {
			relevance := candidates[idx].Score / maxScore

			// Maximum similarity to already selected items
			maxSim := 0.0
			for _, sel := range selectedTokens {
				sim := jaccardSimilarity(tokens[idx], sel)
				if sim > maxSim {
					maxSim = sim
				}
			}

			// Skip if too similar to an already selected item
			if maxSim > r.dedupJaccard {
				continue
			}

			mmr := r.lambda*relevance - (1-r.lambda)*maxSim
			if mmr > bestMMR {
				bestMMR = mmr
				bestPos = pos
			}
		}

		if bestPos == -1 {
			// All remaining candidates are too similar, stop
			break
		}

		idx := remaining[bestPos]
		selected = append(selected, candidates[idx])
		selectedTokens = append(selectedTokens, tokens[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

// jaccardSimilarity computes the Jaccard similarity between two token sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, exists := setB[t]; exists {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

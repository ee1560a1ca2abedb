package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// RetrieveUseCase answers queries against an indexed corpus by fusing
// semantic search with link-graph expansion. The persisted graph is
// loaded once on first use and shared by all calls.
type RetrieveUseCase struct {
	semantic *retriever.Semantic
	graph    *retriever.Graph
	store    port.IndexStore
	ranker   port.Ranker

	minScoreThreshold float64

	loadOnce sync.Once
	docs     map[string]domain.Document
	loadErr  error
}

// NewRetrieveUseCase wires a retrieval session. A nil ranker falls back
// to plain score ordering. minScoreThreshold drops ranked results below
// it; zero disables the filter.
func NewRetrieveUseCase(semantic *retriever.Semantic, graphExp *retriever.Graph, store port.IndexStore, ranker port.Ranker, minScoreThreshold float64) *RetrieveUseCase {
	if ranker == nil {
		ranker = retriever.ScoreRanker{}
	}
	return &RetrieveUseCase{
		semantic:          semantic,
		graph:             graphExp,
		store:             store,
		ranker:            ranker,
		minScoreThreshold: minScoreThreshold,
	}
}

func (u *RetrieveUseCase) loadGraph() (map[string]domain.Document, error) {
	u.loadOnce.Do(func() {
		u.docs, u.loadErr = u.store.LoadGraph()
	})
	return u.docs, u.loadErr
}

// Retrieve implements port.Retriever. Semantic hits seed a breadth
// first walk over document links when opts.UseGraph is set; graph-only
// chunks join the candidate pool discounted, then the ranker picks the
// final top k.
func (u *RetrieveUseCase) Retrieve(query string, opts port.RetrieveOptions) ([]domain.RetrievedChunk, error) {
	docs, err := u.loadGraph()
	if err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	semantic, err := u.semantic.Search(query, topK)
	if err != nil {
		return nil, err
	}

	candidates := semantic
	if opts.UseGraph {
		seeds := retriever.SeedPaths(semantic)
		graphChunks, err := u.graph.Expand(docs, seeds, opts.MaxHops, 2*topK)
		if err != nil {
			return nil, err
		}
		candidates = retriever.Fuse(semantic, graphChunks)
		slog.Debug("hybrid retrieval",
			"semantic", len(semantic), "seeds", len(seeds),
			"graph", len(graphChunks), "fused", len(candidates))
	} else {
		slog.Debug("semantic retrieval", "hits", len(semantic))
	}

	results := u.ranker.Rank(query, candidates, topK)
	if u.minScoreThreshold > 0 {
		results = filterByThreshold(results, u.minScoreThreshold)
	}
	return results, nil
}

// GetLinks reports the outgoing and incoming links of one document.
// Unknown paths get empty link sets rather than an error.
func (u *RetrieveUseCase) GetLinks(path string) (domain.DocumentLinks, error) {
	docs, err := u.loadGraph()
	if err != nil {
		return domain.DocumentLinks{}, err
	}

	links := domain.DocumentLinks{Outgoing: []string{}, Incoming: []string{}}
	doc, ok := docs[path]
	if !ok {
		return links, nil
	}
	links.Outgoing = append(links.Outgoing, doc.Outgoing...)
	links.Incoming = append(links.Incoming, doc.Incoming...)
	return links, nil
}

// FindByTitle returns the paths of every document whose title contains
// the given substring, case-insensitively, in path order.
func (u *RetrieveUseCase) FindByTitle(substring string) ([]string, error) {
	docs, err := u.loadGraph()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(substring)
	var paths []string
	for path, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// FormatForContext renders retrieved chunks as numbered blocks suitable
// for pasting into an LLM prompt.
func FormatForContext(results []domain.RetrievedChunk) string {
	blocks := make([]string, 0, len(results))
	for i, c := range results {
		blocks = append(blocks, fmt.Sprintf("\nDocument %d: %s\nSection: %s\nSource: %s\nRetrieval: %s (score: %.3f)\n\n%s\n\n---\n",
			i+1, c.DocTitle, c.Section, c.DocPath, c.Method, c.Score, c.Content))
	}
	return strings.Join(blocks, "\n")
}

func filterByThreshold(chunks []domain.RetrievedChunk, threshold float64) []domain.RetrievedChunk {
	filtered := make([]domain.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Score >= threshold {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

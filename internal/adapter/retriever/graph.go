package retriever

import (
	"docrag/internal/domain"
	"docrag/internal/port"
)

// maxChunksPerDoc caps how many chunks a single traversed document can
// contribute, so one large neighbor cannot crowd out the rest.
const maxChunksPerDoc = 3

// Graph expands semantic seeds through the document link graph,
// surfacing chunks from linked documents that similarity search alone
// would miss.
type Graph struct {
	index port.VectorIndex
}

func NewGraph(index port.VectorIndex) *Graph {
	return &Graph{index: index}
}

type frontierEntry struct {
	path string
	hop  int
}

// Expand walks outgoing and incoming links breadth-first from the seed
// paths, discovering at most limit linked documents within maxHops.
// Each discovered document contributes up to maxChunksPerDoc chunks
// scored by hop distance. A document is visited once at its first-seen
// hop distance. Seeds themselves contribute no results; the semantic
// pass already covers them.
func (r *Graph) Expand(graph map[string]domain.Document, seeds []string, maxHops, limit int) ([]domain.RetrievedChunk, error) {
	if maxHops <= 0 || limit <= 0 {
		return nil, nil
	}

	visited := make(map[string]struct{}, len(seeds))
	queue := make([]frontierEntry, 0, len(seeds))
	for _, seed := range seeds {
		if _, ok := visited[seed]; ok {
			continue
		}
		visited[seed] = struct{}{}
		queue = append(queue, frontierEntry{path: seed})
	}

	var results []domain.RetrievedChunk
	discovered := 0
	for len(queue) > 0 && discovered < limit {
		entry := queue[0]
		queue = queue[1:]

		if entry.hop >= maxHops {
			continue
		}

		doc, ok := graph[entry.path]
		if !ok {
			continue
		}

		for _, next := range neighbors(doc) {
			if discovered >= limit {
				break
			}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			hop := entry.hop + 1
			discovered++

			chunks, err := r.docChunks(next, hop)
			if err != nil {
				return nil, err
			}
			results = append(results, chunks...)
			queue = append(queue, frontierEntry{path: next, hop: hop})
		}
	}

	return results, nil
}

func neighbors(doc domain.Document) []string {
	out := make([]string, 0, len(doc.Outgoing)+len(doc.Incoming))
	out = append(out, doc.Outgoing...)
	out = append(out, doc.Incoming...)
	return out
}

func (r *Graph) docChunks(path string, hop int) ([]domain.RetrievedChunk, error) {
	matches, err := r.index.QueryByMetadata(map[string]string{"file_path": path}, maxChunksPerDoc)
	if err != nil {
		return nil, err
	}

	score := 1.0 / float64(hop+1)
	chunks := make([]domain.RetrievedChunk, 0, len(matches))
	for _, res := range matches {
		chunks = append(chunks, fromResult(res, score, domain.MethodGraph))
	}
	return chunks, nil
}

package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"docrag/internal/adapter/graph"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// IndexUseCase builds the link graph for a corpus, chunks and embeds
// changed documents, and persists everything atomically enough that a
// failed run never leaves half an index behind.
type IndexUseCase struct {
	builder     *graph.Builder
	chunker     port.Chunker
	embedder    port.Embedder
	index       port.VectorIndex
	store       port.IndexStore
	batchSize   int
	concurrency int

	// Progress, when set, is called as each stage advances. Stages are
	// "chunk" and "embed".
	Progress func(stage string, done, total int)
}

// NewIndexUseCase wires an indexer. batchSize caps how many chunks go
// into a single embedding request; concurrency caps in-flight requests.
func NewIndexUseCase(builder *graph.Builder, chunker port.Chunker, embedder port.Embedder, index port.VectorIndex, store port.IndexStore, batchSize, concurrency int) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = 100
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IndexUseCase{
		builder:     builder,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		store:       store,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	FilesIndexed   int
	FilesSkipped   int
	FilesDeleted   int
	ChunksCreated  int
	ChunksEmbedded int
	Errors         []string
}

type stagedChunk struct {
	chunk  domain.Chunk
	vector []float32
}

// Index walks root, rebuilds the link graph, and re-embeds every
// document whose content hash changed. Unchanged documents are skipped
// without touching the embedder. force re-embeds everything.
//
// Nothing is persisted until every changed chunk has an embedding, so
// an embedding failure aborts the run with the previous index intact.
func (u *IndexUseCase) Index(root string, force bool) (*IndexResult, error) {
	result := &IndexResult{}

	docs, err := u.builder.Build(root)
	if err != nil {
		return nil, fmt.Errorf("failed to build document graph: %w", err)
	}

	oldHashes, err := u.store.GetHashes()
	if err != nil {
		return nil, fmt.Errorf("failed to load content hashes: %w", err)
	}

	paths := make([]string, 0, len(docs))
	for path := range docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var staged []stagedChunk
	var changed []string
	newHashes := make(map[string]string, len(docs))

	for i, path := range paths {
		doc := docs[path]
		digest := contentDigest(doc.Content)
		newHashes[path] = digest

		if !force && oldHashes[path] == digest {
			result.FilesSkipped++
			u.progress("chunk", i+1, len(paths))
			continue
		}

		chunks, err := u.chunker.Chunk(doc)
		if err != nil {
			// One bad document must not sink the run. Dropping its hash
			// makes the next run retry it; its old chunks keep serving.
			slog.Warn("skipping document", "path", path, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			delete(newHashes, path)
			u.progress("chunk", i+1, len(paths))
			continue
		}

		for _, c := range chunks {
			staged = append(staged, stagedChunk{chunk: c})
		}
		changed = append(changed, path)
		result.FilesIndexed++
		u.progress("chunk", i+1, len(paths))
	}
	result.ChunksCreated = len(staged)

	if err := u.embedStaged(staged); err != nil {
		return nil, err
	}
	result.ChunksEmbedded = len(staged)

	// Remove superseded chunks before upserting. A shrinking document
	// would otherwise leave orphaned chunk ids serving stale content.
	for _, path := range changed {
		n, err := u.index.DeleteByMetadata(map[string]string{"file_path": path})
		if err != nil {
			return nil, fmt.Errorf("failed to delete stale chunks for %s: %w", path, err)
		}
		if n > 0 {
			slog.Debug("pruned stale chunks", "path", path, "removed", n)
		}
	}
	for path := range oldHashes {
		if _, ok := docs[path]; ok {
			continue
		}
		n, err := u.index.DeleteByMetadata(map[string]string{"file_path": path})
		if err != nil {
			return nil, fmt.Errorf("failed to delete chunks for removed %s: %w", path, err)
		}
		slog.Info("document removed from corpus", "path", path, "chunks", n)
		result.FilesDeleted++
	}

	if len(staged) > 0 {
		items := make([]port.VectorItem, len(staged))
		for i, s := range staged {
			items[i] = port.VectorItem{
				ID:       s.chunk.ID,
				Text:     s.chunk.Text,
				Vector:   s.vector,
				Metadata: s.chunk.Metadata,
			}
		}
		if err := u.index.Upsert(items); err != nil {
			return nil, fmt.Errorf("failed to store embeddings: %w", err)
		}
	}

	if err := u.store.SaveGraph(docs); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	if err := u.store.PutHashes(newHashes); err != nil {
		return nil, fmt.Errorf("failed to save content hashes: %w", err)
	}

	totalLinks := 0
	for _, doc := range docs {
		totalLinks += len(doc.Outgoing)
	}
	totalChunks, err := u.index.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	stats := domain.Stats{
		TotalDocs:   len(docs),
		TotalChunks: totalChunks,
		TotalLinks:  totalLinks,
	}
	if err := u.store.UpdateStats(stats); err != nil {
		return nil, fmt.Errorf("failed to update stats: %w", err)
	}
	if _, err := u.store.BumpGeneration(); err != nil {
		return nil, fmt.Errorf("failed to bump index generation: %w", err)
	}

	return result, nil
}

// embedStaged fills in vectors for every staged chunk, batching
// requests and running up to concurrency batches at once. Any batch
// failure aborts the whole run.
func (u *IndexUseCase) embedStaged(staged []stagedChunk) error {
	if len(staged) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(u.concurrency)

	var mu sync.Mutex
	done := 0

	for start := 0; start < len(staged); start += u.batchSize {
		end := start + u.batchSize
		if end > len(staged) {
			end = len(staged)
		}
		batch := staged[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, s := range batch {
				texts[i] = s.chunk.Text
			}

			vectors, err := u.embedder.Embed(texts)
			if err != nil {
				return fmt.Errorf("failed to embed batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
			}
			// Each goroutine owns its slice of staged, so writing the
			// vectors back needs no lock.
			for i := range batch {
				batch[i].vector = vectors[i]
			}

			mu.Lock()
			done += len(batch)
			u.progress("embed", done, len(staged))
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

func (u *IndexUseCase) progress(stage string, done, total int) {
	if u.Progress != nil {
		u.Progress(stage, done, total)
	}
}

func contentDigest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

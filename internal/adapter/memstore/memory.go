package memstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// MemoryStore is an in-memory IndexStore for tests and benchmarks.
type MemoryStore struct {
	mu         sync.RWMutex
	graph      map[string]domain.Document
	hashes     map[string]string
	stats      domain.Stats
	generation uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graph:  make(map[string]domain.Document),
		hashes: make(map[string]string),
	}
}

func (s *MemoryStore) SaveGraph(docs map[string]domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = make(map[string]domain.Document, len(docs))
	for path, doc := range docs {
		doc.Content = ""
		s.graph[path] = doc
	}
	return nil
}

func (s *MemoryStore) LoadGraph() (map[string]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generation == 0 {
		return nil, store.ErrNotIndexed
	}
	docs := make(map[string]domain.Document, len(s.graph))
	for path, doc := range s.graph {
		docs[path] = doc
	}
	return docs, nil
}

func (s *MemoryStore) PutHashes(hashes map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes = make(map[string]string, len(hashes))
	for path, h := range hashes {
		s.hashes[path] = h
	}
	return nil
}

func (s *MemoryStore) GetHashes() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := make(map[string]string, len(s.hashes))
	for path, h := range s.hashes {
		hashes[path] = h
	}
	return hashes, nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) UpdateStats(stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}

func (s *MemoryStore) Generation() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, nil
}

func (s *MemoryStore) BumpGeneration() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// MemoryVectorIndex is an in-memory VectorIndex for tests and benchmarks.
type MemoryVectorIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]port.VectorItem
}

func NewMemoryVectorIndex(dimension int) *MemoryVectorIndex {
	return &MemoryVectorIndex{
		dimension: dimension,
		entries:   make(map[string]port.VectorItem),
	}
}

func (s *MemoryVectorIndex) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d",
				item.ID, s.dimension, len(item.Vector))
		}
		s.entries[item.ID] = item
	}
	return nil
}

func (s *MemoryVectorIndex) QueryNearest(embedding []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}
	if len(s.entries) == 0 {
		return nil, nil
	}

	results := make([]port.VectorResult, 0, len(s.entries))
	for id, entry := range s.entries {
		results = append(results, port.VectorResult{
			ID:       id,
			Text:     entry.Text,
			Distance: 1 - cosineSimilarity(embedding, entry.Vector),
			Metadata: entry.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *MemoryVectorIndex) QueryByMetadata(filter map[string]string, limit int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, entry := range s.entries {
		if matchesFilter(entry.Metadata, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]port.VectorResult, 0, len(ids))
	for _, id := range ids {
		entry := s.entries[id]
		results = append(results, port.VectorResult{
			ID:       id,
			Text:     entry.Text,
			Metadata: entry.Metadata,
		})
	}
	return results, nil
}

func (s *MemoryVectorIndex) DeleteByMetadata(filter map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if matchesFilter(entry.Metadata, filter) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryVectorIndex) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

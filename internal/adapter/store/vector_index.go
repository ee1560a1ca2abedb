package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"docrag/internal/port"
)

// BoltVectorIndex implements the vector index on BoltDB persistence with
// an in-memory mirror for search. Brute force is fine at documentation
// scale; swap in an ANN structure for much larger corpora.
type BoltVectorIndex struct {
	db        *bbolt.DB
	dimension int

	mu sync.RWMutex
	// In-memory mirror for fast lookups
	entries map[string]vectorEntry
}

type vectorEntry struct {
	text     string
	vector   []float32
	metadata map[string]string
}

type storedVector struct {
	Text     string            `json:"t"`
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// NewBoltVectorIndex creates a vector index inside an already-open
// BoltDB database, loading any persisted entries into memory.
func NewBoltVectorIndex(db *bbolt.DB, dimension int) (*BoltVectorIndex, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	idx := &BoltVectorIndex{
		db:        db,
		dimension: dimension,
		entries:   make(map[string]vectorEntry),
	}

	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return idx, nil
}

func (s *BoltVectorIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.entries[string(k)] = vectorEntry{
				text:     stored.Text,
				vector:   stored.Vector,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
}

// Upsert adds or replaces items by ID.
func (s *BoltVectorIndex) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, item := range items {
			if len(item.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d",
					item.ID, s.dimension, len(item.Vector))
			}

			stored := storedVector{
				Text:     item.Text,
				Vector:   item.Vector,
				Metadata: item.Metadata,
			}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}

			s.entries[item.ID] = vectorEntry{
				text:     item.Text,
				vector:   item.Vector,
				metadata: item.Metadata,
			}
		}

		return nil
	})
}

// QueryNearest finds the k nearest entries by cosine distance.
func (s *BoltVectorIndex) QueryNearest(embedding []float32, k int) ([]port.VectorResult, error) {
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
			Text:     entry.text,
			Distance: 1 - cosineSimilarity(embedding, entry.vector),
			Metadata: entry.metadata,
		})
	}

	// Ascending distance; ID breaks ties so results are reproducible.
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

// QueryByMetadata returns up to limit entries matching every filter
// pair, in ID order. A non-positive limit returns all matches.
func (s *BoltVectorIndex) QueryByMetadata(filter map[string]string, limit int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, entry := range s.entries {
		if matchesFilter(entry.metadata, filter) {
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
			Text:     entry.text,
			Metadata: entry.metadata,
		})
	}
	return results, nil
}

// DeleteByMetadata removes all entries matching every filter pair and
// returns the number removed.
func (s *BoltVectorIndex) DeleteByMetadata(filter map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, entry := range s.entries {
		if matchesFilter(entry.metadata, filter) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
			delete(s.entries, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Count returns the number of stored entries.
func (s *BoltVectorIndex) Count() (int, error) {
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

// cosineSimilarity calculates the cosine similarity between two vectors.
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

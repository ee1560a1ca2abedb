package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketGraph   = []byte("graph")
	bucketHashes  = []byte("hashes")
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")

	keyStats      = []byte("corpus_stats")
	keyGeneration = []byte("index_generation")
)

// ErrNotIndexed reports that no successful index run has been persisted
// yet, so there is nothing to retrieve from.
var ErrNotIndexed = errors.New("no index found, run 'docrag index' first")

type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketGraph, bucketHashes, bucketMeta, bucketVectors}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// graphNode is the persisted form of a document node. Raw content is
// intentionally omitted; retrieval reads chunk text from the vector
// index instead.
type graphNode struct {
	Title    string            `json:"title"`
	Outgoing []string          `json:"outgoing"`
	Incoming []string          `json:"incoming"`
	Metadata map[string]string `json:"metadata"`
}

// SaveGraph replaces the persisted graph snapshot wholesale. The graph
// is rebuilt from scratch every index run, so merged writes would keep
// records for documents that no longer exist.
func (s *BoltStore) SaveGraph(docs map[string]domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketGraph); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketGraph)
		if err != nil {
			return err
		}

		for path, doc := range docs {
			node := graphNode{
				Title:    doc.Title,
				Outgoing: doc.Outgoing,
				Incoming: doc.Incoming,
				Metadata: doc.Metadata,
			}
			data, err := json.Marshal(node)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadGraph returns the persisted graph with content fields left empty.
// Returns ErrNotIndexed when no index run has completed yet.
func (s *BoltStore) LoadGraph() (map[string]domain.Document, error) {
	docs := make(map[string]domain.Document)
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil || meta.Get(keyGeneration) == nil {
			return ErrNotIndexed
		}

		return tx.Bucket(bucketGraph).ForEach(func(k, v []byte) error {
			var node graphNode
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("corrupt graph record %s: %w", k, err)
			}
			path := string(k)
			docs[path] = domain.Document{
				Path:     path,
				Title:    node.Title,
				Outgoing: node.Outgoing,
				Incoming: node.Incoming,
				Metadata: node.Metadata,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// PutHashes replaces the persisted content hash map wholesale.
func (s *BoltStore) PutHashes(hashes map[string]string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketHashes); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketHashes)
		if err != nil {
			return err
		}

		for path, digest := range hashes {
			if err := b.Put([]byte(path), []byte(digest)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetHashes() (map[string]string, error) {
	hashes := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHashes).ForEach(func(k, v []byte) error {
			hashes[string(k)] = string(v)
			return nil
		})
	})
	return hashes, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyStats, data)
	})
}

// Generation returns the index generation counter. Zero means no index
// run has ever completed.
func (s *BoltStore) Generation() (uint64, error) {
	var gen uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyGeneration)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &gen)
	})
	return gen, err
}

// BumpGeneration increments the index generation counter and returns
// the new value. Called once per successful index run.
func (s *BoltStore) BumpGeneration() (uint64, error) {
	var gen uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if data := b.Get(keyGeneration); data != nil {
			if err := json.Unmarshal(data, &gen); err != nil {
				return err
			}
		}
		gen++
		data, err := json.Marshal(gen)
		if err != nil {
			return err
		}
		return b.Put(keyGeneration, data)
	})
	return gen, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

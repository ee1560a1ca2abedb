package port

import "docrag/internal/domain"

type IndexStore interface {
	SaveGraph(docs map[string]domain.Document) error

	LoadGraph() (map[string]domain.Document, error)

	PutHashes(hashes map[string]string) error

	GetHashes() (map[string]string, error)

	GetStats() (domain.Stats, error)

	UpdateStats(stats domain.Stats) error

	Generation() (uint64, error)

	BumpGeneration() (uint64, error)

	Close() error
}

package port

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores embedded chunks and supports nearest-neighbor
// and metadata lookups.
type VectorIndex interface {
	// Upsert adds or replaces items by ID.
	Upsert(items []VectorItem) error

	// QueryNearest finds the k nearest items to the query embedding.
	// Results are ordered by ascending distance.
	QueryNearest(embedding []float32, k int) ([]VectorResult, error)

	// QueryByMetadata returns up to limit items whose metadata matches
	// every key/value pair in filter. Distance is zero on these results.
	QueryByMetadata(filter map[string]string, limit int) ([]VectorResult, error)

	// DeleteByMetadata removes all items whose metadata matches filter
	// and returns the number removed.
	DeleteByMetadata(filter map[string]string) (int, error)

	// Count returns the number of stored items.
	Count() (int, error)
}

// VectorItem represents an embedded chunk to be stored.
type VectorItem struct {
	ID       string            // Chunk ID
	Text     string            // Chunk text
	Vector   []float32         // Embedding vector
	Metadata map[string]string // Chunk metadata
}

// VectorResult represents a lookup result.
type VectorResult struct {
	ID       string            // Chunk ID
	Text     string            // Chunk text
	Distance float64           // Cosine distance (lower is closer)
	Metadata map[string]string // Stored metadata
}

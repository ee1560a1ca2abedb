package port

import "docrag/internal/domain"

// Retriever defines the interface for querying indexed documentation.
type Retriever interface {
	// Retrieve returns the top chunks for the query.
	Retrieve(query string, opts RetrieveOptions) ([]domain.RetrievedChunk, error)
}

// RetrieveOptions controls a single retrieval.
type RetrieveOptions struct {
	TopK     int  // number of results to return
	UseGraph bool // expand semantic hits through document links
	MaxHops  int  // link traversal depth when UseGraph is set
}

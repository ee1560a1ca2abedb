package domain

type Document struct {
	Path     string
	Title    string
	Content  string
	Outgoing []string
	Incoming []string
	Metadata map[string]string
}

type Chunk struct {
	ID       string
	DocPath  string
	Section  string
	Text     string
	Metadata map[string]string
}

type RetrievedChunk struct {
	ChunkID  string  `json:"chunk_id"`
	Content  string  `json:"content"`
	DocPath  string  `json:"file_path"`
	DocTitle string  `json:"doc_title"`
	Section  string  `json:"section"`
	Score    float64 `json:"score"`
	Method   string  `json:"method"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

const (
	MethodSemantic = "semantic"
	MethodGraph    = "graph"
	MethodHybrid   = "hybrid"
)

type DocumentLinks struct {
	Outgoing []string `json:"outgoing"`
	Incoming []string `json:"incoming"`
}

type Stats struct {
	TotalDocs   int
	TotalChunks int
	TotalLinks  int
}

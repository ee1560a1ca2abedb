package usecase

import (
	"errors"
	"math"
	"strings"
	"testing"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/graph"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// vocabEmbedder maps texts onto fixed directions by keyword so tests
// control exactly which chunks a query lands on. The gamma direction
// leans slightly toward alpha, keeping beta out of the semantic top two.
type vocabEmbedder struct{}

func (vocabEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		s := strings.ToLower(text)
		switch {
		case strings.Contains(s, "alpha"):
			out[i] = []float32{1, 0, 0}
		case strings.Contains(s, "beta"):
			out[i] = []float32{0, 1, 0}
		case strings.Contains(s, "gamma"):
			out[i] = []float32{0.1, 0.9, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (vocabEmbedder) Dimension() int    { return 3 }
func (vocabEmbedder) ModelName() string { return "vocab" }

// newChainSession indexes a three-document chain a -> b -> c and
// returns a retrieval session over the result.
func newChainSession(t *testing.T, ranker port.Ranker, threshold float64) *RetrieveUseCase {
	t.Helper()
	emb := vocabEmbedder{}
	st := memstore.NewMemoryStore()
	idx := memstore.NewMemoryVectorIndex(emb.Dimension())
	builder := graph.NewBuilder(fs.NewWalker(nil, nil), fs.Reader{})
	indexer := NewIndexUseCase(builder, chunker.NewSectionChunker(1000, 200), emb, idx, st, 10, 1)

	root := writeCorpus(t, map[string]string{
		"a.md": "# Alpha\n\nalpha alpha alpha. [more](b.md)\n",
		"b.md": "# Beta\n\nbeta beta beta. [next](c.md)\n",
		"c.md": "# Gamma\n\ngamma gamma gamma.\n",
	})
	if _, err := indexer.Index(root, false); err != nil {
		t.Fatal(err)
	}

	return NewRetrieveUseCase(retriever.NewSemantic(emb, idx), retriever.NewGraph(idx), st, ranker, threshold)
}

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestRetrieve_HybridChain(t *testing.T) {
	u := newChainSession(t, nil, 0)

	results, err := u.Retrieve("alpha", port.RetrieveOptions{TopK: 2, UseGraph: true, MaxHops: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if results[0].DocPath != "a.md" || results[0].Method != domain.MethodSemantic {
		t.Errorf("first = %s (%s)", results[0].DocPath, results[0].Method)
	}
	if !floatEquals(results[0].Score, 1.0, 1e-6) {
		t.Errorf("first score = %f, want 1.0", results[0].Score)
	}

	// The linked document arrives via one hop of traversal: 0.5
	// discounted to 0.4 and retagged.
	if results[1].DocPath != "b.md" || results[1].Method != domain.MethodHybrid {
		t.Errorf("second = %s (%s)", results[1].DocPath, results[1].Method)
	}
	if !floatEquals(results[1].Score, 0.4, 1e-9) {
		t.Errorf("second score = %f, want 0.4", results[1].Score)
	}
}

func TestRetrieve_TopKOne(t *testing.T) {
	u := newChainSession(t, nil, 0)

	results, err := u.Retrieve("alpha", port.RetrieveOptions{TopK: 1, UseGraph: true, MaxHops: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].DocPath != "a.md" {
		t.Errorf("result = %s", results[0].DocPath)
	}
}

func TestRetrieve_SemanticOnly(t *testing.T) {
	u := newChainSession(t, nil, 0)

	results, err := u.Retrieve("alpha", port.RetrieveOptions{TopK: 3, UseGraph: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].DocPath != "a.md" {
		t.Errorf("first = %s", results[0].DocPath)
	}
	for _, r := range results {
		if r.Method != domain.MethodSemantic {
			t.Errorf("%s tagged %s without graph traversal", r.DocPath, r.Method)
		}
	}
}

func TestRetrieve_NotIndexed(t *testing.T) {
	emb := vocabEmbedder{}
	idx := memstore.NewMemoryVectorIndex(emb.Dimension())
	u := NewRetrieveUseCase(retriever.NewSemantic(emb, idx), retriever.NewGraph(idx), memstore.NewMemoryStore(), nil, 0)

	if _, err := u.Retrieve("alpha", port.RetrieveOptions{TopK: 2}); !errors.Is(err, store.ErrNotIndexed) {
		t.Errorf("error = %v, want ErrNotIndexed", err)
	}
}

func TestRetrieve_MMRRankerPluggable(t *testing.T) {
	u := newChainSession(t, retriever.NewMMRRanker(0.7, 0.95), 0)

	results, err := u.Retrieve("alpha", port.RetrieveOptions{TopK: 2, UseGraph: true, MaxHops: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].DocPath != "a.md" || results[1].DocPath != "b.md" {
		t.Errorf("order = [%s, %s]", results[0].DocPath, results[1].DocPath)
	}
}

func TestRetrieve_ThresholdFiltersWeakHits(t *testing.T) {
	u := newChainSession(t, nil, 0.45)

	results, err := u.Retrieve("alpha", port.RetrieveOptions{TopK: 2, UseGraph: true, MaxHops: 2})
	if err != nil {
		t.Fatal(err)
	}

	// The ranked pair is a.md at 1.0 and the traversed b.md at 0.4;
	// the floor keeps only the former.
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 above threshold", len(results))
	}
	if results[0].DocPath != "a.md" || results[0].Score < 0.45 {
		t.Errorf("kept %s (%.3f), want a.md above the floor", results[0].DocPath, results[0].Score)
	}
}

func TestGetLinks(t *testing.T) {
	u := newChainSession(t, nil, 0)

	links, err := u.GetLinks("b.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(links.Outgoing) != 1 || links.Outgoing[0] != "c.md" {
		t.Errorf("outgoing = %v", links.Outgoing)
	}
	if len(links.Incoming) != 1 || links.Incoming[0] != "a.md" {
		t.Errorf("incoming = %v", links.Incoming)
	}
}

func TestGetLinks_UnknownPath(t *testing.T) {
	u := newChainSession(t, nil, 0)

	links, err := u.GetLinks("missing.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(links.Outgoing) != 0 || len(links.Incoming) != 0 {
		t.Errorf("links = %+v, want empty sets", links)
	}
	if links.Outgoing == nil || links.Incoming == nil {
		t.Error("unknown path should yield empty sets, not nil")
	}
}

func TestFindByTitle(t *testing.T) {
	u := newChainSession(t, nil, 0)

	paths, err := u.FindByTitle("ALPH")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "a.md" {
		t.Errorf("paths = %v", paths)
	}

	all, err := u.FindByTitle("a")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.md", "b.md", "c.md"}
	if len(all) != len(want) {
		t.Fatalf("paths = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, all[i], want[i])
		}
	}

	none, err := u.FindByTitle("zzz")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("paths = %v, want none", none)
	}
}

func TestFormatForContext(t *testing.T) {
	results := []domain.RetrievedChunk{
		{
			ChunkID:  "a.md__chunk_0_0",
			Content:  "alpha text",
			DocPath:  "a.md",
			DocTitle: "Alpha",
			Section:  "Introduction",
			Score:    0.9123,
			Method:   domain.MethodSemantic,
		},
		{
			ChunkID:  "b.md__chunk_0_0",
			Content:  "beta text",
			DocPath:  "b.md",
			DocTitle: "Beta",
			Section:  "Usage",
			Score:    0.4,
			Method:   domain.MethodHybrid,
		},
	}

	got := FormatForContext(results)
	want := "\nDocument 1: Alpha\nSection: Introduction\nSource: a.md\nRetrieval: semantic (score: 0.912)\n\nalpha text\n\n---\n" +
		"\n" +
		"\nDocument 2: Beta\nSection: Usage\nSource: b.md\nRetrieval: hybrid (score: 0.400)\n\nbeta text\n\n---\n"
	if got != want {
		t.Errorf("formatted = %q\nwant %q", got, want)
	}
}

func TestFormatForContext_Empty(t *testing.T) {
	if got := FormatForContext(nil); got != "" {
		t.Errorf("formatted empty list = %q", got)
	}
}

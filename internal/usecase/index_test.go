package usecase

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/graph"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func twoDocCorpus(t *testing.T) string {
	t.Helper()
	return writeCorpus(t, map[string]string{
		"a.md": "# Alpha\n\nAlpha body text. [more](b.md)\n",
		"b.md": "# Beta\n\nBeta body text.\n",
	})
}

func newTestIndexer(t *testing.T, emb port.Embedder) (*IndexUseCase, *memstore.MemoryStore, *memstore.MemoryVectorIndex) {
	t.Helper()
	st := memstore.NewMemoryStore()
	idx := memstore.NewMemoryVectorIndex(emb.Dimension())
	builder := graph.NewBuilder(fs.NewWalker(nil, nil), fs.Reader{})
	u := NewIndexUseCase(builder, chunker.NewSectionChunker(1000, 200), emb, idx, st, 10, 1)
	return u, st, idx
}

type countingEmbedder struct {
	inner port.Embedder
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) Embed(texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.inner.Embed(texts)
}

func (e *countingEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *countingEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *countingEmbedder) ModelName() string { return e.inner.ModelName() }

type failingEmbedder struct{ dimension int }

func (e failingEmbedder) Embed([]string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}
func (e failingEmbedder) Dimension() int    { return e.dimension }
func (e failingEmbedder) ModelName() string { return "failing" }

type failingChunker struct {
	inner    port.Chunker
	failPath string
}

func (c failingChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	if doc.Path == c.failPath {
		return nil, errors.New("unparseable document")
	}
	return c.inner.Chunk(doc)
}

func TestIndex_FirstRun(t *testing.T) {
	u, st, idx := newTestIndexer(t, embedding.NewMockEmbedder(8))
	root := twoDocCorpus(t)

	res, err := u.Index(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 2 || res.FilesSkipped != 0 || res.FilesDeleted != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.ChunksCreated != 2 || res.ChunksEmbedded != 2 {
		t.Errorf("chunks created/embedded = %d/%d, want 2/2", res.ChunksCreated, res.ChunksEmbedded)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}

	docs, err := st.LoadGraph()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("graph has %d docs, want 2", len(docs))
	}
	if got := docs["a.md"].Outgoing; len(got) != 1 || got[0] != "b.md" {
		t.Errorf("a.md outgoing = %v", got)
	}
	if got := docs["b.md"].Incoming; len(got) != 1 || got[0] != "a.md" {
		t.Errorf("b.md incoming = %v", got)
	}

	count, err := idx.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("vector count = %d, want 2", count)
	}

	hashes, err := st.GetHashes()
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 2 {
		t.Errorf("hashes = %v", hashes)
	}

	gen, err := st.Generation()
	if err != nil {
		t.Fatal(err)
	}
	if gen != 1 {
		t.Errorf("generation = %d, want 1", gen)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	want := domain.Stats{TotalDocs: 2, TotalChunks: 2, TotalLinks: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestIndex_UnchangedCorpusSkipsEmbedding(t *testing.T) {
	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(8)}
	u, _, _ := newTestIndexer(t, emb)
	root := twoDocCorpus(t)

	if _, err := u.Index(root, false); err != nil {
		t.Fatal(err)
	}
	before := emb.callCount()

	res, err := u.Index(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesSkipped != 2 || res.FilesIndexed != 0 {
		t.Errorf("second run = %+v", res)
	}
	if got := emb.callCount(); got != before {
		t.Errorf("second run made %d embedding calls, want 0", got-before)
	}
}

func TestIndex_ForceReembedsEverything(t *testing.T) {
	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(8)}
	u, _, _ := newTestIndexer(t, emb)
	root := twoDocCorpus(t)

	if _, err := u.Index(root, false); err != nil {
		t.Fatal(err)
	}
	before := emb.callCount()

	res, err := u.Index(root, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 2 || res.FilesSkipped != 0 {
		t.Errorf("forced run = %+v", res)
	}
	if got := emb.callCount(); got <= before {
		t.Error("forced run should call the embedder again")
	}
}

func TestIndex_ChangedDocumentReplacesStaleChunks(t *testing.T) {
	u, _, idx := newTestIndexer(t, embedding.NewMockEmbedder(8))
	root := writeCorpus(t, map[string]string{
		"a.md": "# Alpha\n\n## One\n\nfirst body.\n\n## Two\n\nsecond body.\n",
		"b.md": "# Beta\n\nBeta body text.\n",
	})

	if _, err := u.Index(root, false); err != nil {
		t.Fatal(err)
	}
	before, err := idx.QueryByMetadata(map[string]string{"file_path": "a.md"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 3 {
		t.Fatalf("initial a.md chunks = %d, want 3", len(before))
	}

	next := "# Alpha\n\njust one body now.\n"
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte(next), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := u.Index(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 1 || res.FilesSkipped != 1 {
		t.Errorf("reindex = %+v", res)
	}

	after, err := idx.QueryByMetadata(map[string]string{"file_path": "a.md"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("a.md chunks after shrink = %d, want 1", len(after))
	}
	if after[0].ID != "a.md__chunk_0_0" {
		t.Errorf("chunk ID = %q", after[0].ID)
	}
	if !strings.Contains(after[0].Text, "just one body") {
		t.Errorf("chunk text = %q, want new content", after[0].Text)
	}
}

func TestIndex_DeletesVanishedDocuments(t *testing.T) {
	u, st, idx := newTestIndexer(t, embedding.NewMockEmbedder(8))
	root := twoDocCorpus(t)

	if _, err := u.Index(root, false); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "b.md")); err != nil {
		t.Fatal(err)
	}

	res, err := u.Index(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesDeleted != 1 {
		t.Errorf("FilesDeleted = %d, want 1", res.FilesDeleted)
	}

	remaining, err := idx.QueryByMetadata(map[string]string{"file_path": "b.md"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("b.md still has %d chunks", len(remaining))
	}

	hashes, err := st.GetHashes()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := hashes["b.md"]; ok {
		t.Error("hash for removed document survived")
	}

	docs, err := st.LoadGraph()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("graph has %d docs, want 1", len(docs))
	}
}

func TestIndex_EmbedFailureLeavesStoreUntouched(t *testing.T) {
	u, st, idx := newTestIndexer(t, failingEmbedder{dimension: 8})
	root := twoDocCorpus(t)

	if _, err := u.Index(root, false); err == nil {
		t.Fatal("expected embedding failure to abort the run")
	}

	if _, err := st.LoadGraph(); !errors.Is(err, store.ErrNotIndexed) {
		t.Errorf("LoadGraph error = %v, want ErrNotIndexed", err)
	}
	count, err := idx.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("vector count = %d after aborted run", count)
	}
	hashes, err := st.GetHashes()
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 0 {
		t.Errorf("hashes persisted by aborted run: %v", hashes)
	}
}

func TestIndex_ChunkFailureIsolatesDocument(t *testing.T) {
	st := memstore.NewMemoryStore()
	idx := memstore.NewMemoryVectorIndex(8)
	builder := graph.NewBuilder(fs.NewWalker(nil, nil), fs.Reader{})
	chk := failingChunker{inner: chunker.NewSectionChunker(1000, 200), failPath: "b.md"}
	u := NewIndexUseCase(builder, chk, embedding.NewMockEmbedder(8), idx, st, 10, 1)
	root := twoDocCorpus(t)

	res, err := u.Index(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 1 {
		t.Errorf("FilesIndexed = %d, want 1", res.FilesIndexed)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "b.md") {
		t.Errorf("errors = %v", res.Errors)
	}

	hashes, err := st.GetHashes()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := hashes["a.md"]; !ok {
		t.Error("healthy document should be hashed")
	}
	if _, ok := hashes["b.md"]; ok {
		t.Error("failed document must not be hashed, it would never be retried")
	}

	// The failing document is retried on the next run.
	res, err = u.Index(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesSkipped != 1 || len(res.Errors) != 1 {
		t.Errorf("retry run = %+v", res)
	}
}

func TestIndex_ProgressStages(t *testing.T) {
	u, _, _ := newTestIndexer(t, embedding.NewMockEmbedder(8))
	root := twoDocCorpus(t)

	last := make(map[string][2]int)
	u.Progress = func(stage string, done, total int) {
		last[stage] = [2]int{done, total}
	}

	if _, err := u.Index(root, false); err != nil {
		t.Fatal(err)
	}
	if got := last["chunk"]; got != [2]int{2, 2} {
		t.Errorf("chunk progress = %v", got)
	}
	if got := last["embed"]; got != [2]int{2, 2} {
		t.Errorf("embed progress = %v", got)
	}
}

package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEmbedder(t *testing.T, url string, opts ...Option) *OpenAIEmbedder {
	t.Helper()
	t.Setenv("DOCRAG_TEST_KEY", "test-key")

	base := []Option{WithBackoff(time.Millisecond, 2*time.Millisecond)}
	e, err := NewOpenAICompatibleEmbedder("DOCRAG_TEST_KEY", "test-model", url, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func embeddingsJSON(t *testing.T, data []embeddingData) []byte {
	t.Helper()
	out, err := json.Marshal(embeddingResponse{Data: data})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestEmbed_AssignsVectorsByIndex(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}

		// Deliberately out of order to exercise index reassociation.
		w.Write(embeddingsJSON(t, []embeddingData{
			{Index: 1, Embedding: []float32{0, 1}},
			{Index: 0, Embedding: []float32{1, 0}},
		}))
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	got, err := e.Embed([]string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}

	want := [][]float32{{1, 0}, {0, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Embed() = %v, want %v", got, want)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		w.Write(embeddingsJSON(t, []embeddingData{{Index: 0, Embedding: []float32{1}}}))
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, WithMaxRetries(3))
	if _, err := e.Embed([]string{"text"}); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestEmbed_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, WithMaxRetries(3))
	if _, err := e.Embed([]string{"text"}); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestEmbed_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, WithMaxRetries(2))
	if _, err := e.Embed([]string{"text"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts (initial + 2 retries), got %d", got)
	}
}

func TestEmbed_MissingVectorIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(embeddingsJSON(t, []embeddingData{{Index: 0, Embedding: []float32{1}}}))
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	if _, err := e.Embed([]string{"one", "two"}); err == nil {
		t.Fatal("expected error for missing embedding")
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	e := newTestEmbedder(t, "http://unused.invalid")
	got, err := e.Embed(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil embeddings, got %v", got)
	}
}

func TestNewOpenAICompatibleEmbedder_MissingKey(t *testing.T) {
	t.Setenv("DOCRAG_EMPTY_KEY", "")
	if _, err := NewOpenAICompatibleEmbedder("DOCRAG_EMPTY_KEY", "m", "http://x"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(8)

	a1, err := e.Embed([]string{"stable"})
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := e.Embed([]string{"stable"})
	if !reflect.DeepEqual(a1, a2) {
		t.Error("mock embeddings should be deterministic")
	}
	if len(a1[0]) != 8 {
		t.Errorf("dimension = %d, want 8", len(a1[0]))
	}
	if e.Dimension() != 8 {
		t.Errorf("Dimension() = %d", e.Dimension())
	}

	b, _ := e.Embed([]string{"different"})
	if reflect.DeepEqual(a1[0], b[0]) {
		t.Error("different inputs should embed differently")
	}
}

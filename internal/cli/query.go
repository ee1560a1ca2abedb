package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

var (
	queryText    string
	queryTopK    int
	queryNoGraph bool
	queryMaxHops int
	queryJSON    bool
	queryLLM     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the indexed documentation",
	Long: `Search for relevant documentation chunks. Semantic hits seed a walk
over the document link graph; linked documents join the results with a
discounted score.

Examples:
  docrag query -q "how do I configure auth"
  docrag query -q "deployment" --top-k 10 --json
  docrag query -q "error codes" --no-graph
  docrag query -q "setup" --llm    # Render as LLM prompt context`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryNoGraph, "no-graph", false, "disable link graph traversal")
	queryCmd.Flags().IntVar(&queryMaxHops, "max-hops", 0, "link traversal depth (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryLLM, "llm", false, "format results as LLM context")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	rootDir := GetRootDir()

	dbPath := config.IndexDBPath(rootDir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found, run 'docrag index' first")
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	vectors, err := store.NewBoltVectorIndex(st.DB(), embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}

	var ranker port.Ranker = retriever.ScoreRanker{}
	if cfg.Retrieve.Ranker == "mmr" {
		ranker = retriever.NewMMRRanker(cfg.Retrieve.MMRLambda, cfg.Retrieve.DedupJaccard)
	}

	session := usecase.NewRetrieveUseCase(
		retriever.NewSemantic(embedder, vectors),
		retriever.NewGraph(vectors),
		st,
		ranker,
		cfg.Retrieve.MinScoreThreshold,
	)

	var ret port.Retriever = session
	if cfg.Retrieve.CacheEnabled {
		qc := cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSeconds)*time.Second)
		cached := cache.NewCachedRetriever(session, qc)
		cached.TrackGeneration(st.Generation)
		ret = cached
	}

	opts := port.RetrieveOptions{
		TopK:     cfg.Retrieve.TopK,
		UseGraph: cfg.Retrieve.UseGraph && !queryNoGraph,
		MaxHops:  cfg.Retrieve.MaxHops,
	}
	if queryTopK > 0 {
		opts.TopK = queryTopK
	}
	if queryMaxHops > 0 {
		opts.MaxHops = queryMaxHops
	}

	results, err := ret.Retrieve(queryText, opts)
	if err != nil {
		if errors.Is(err, store.ErrNotIndexed) {
			return fmt.Errorf("no index found, run 'docrag index' first")
		}
		return fmt.Errorf("search failed: %w", err)
	}

	switch {
	case queryJSON:
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	case queryLLM:
		fmt.Println(usecase.FormatForContext(results))
	default:
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
		for i, r := range results {
			fmt.Printf("--- [%d] %s (%s, score: %.3f) ---\n", i+1, r.DocPath, r.Method, r.Score)
			if r.Section != "" {
				fmt.Printf("Section: %s\n", r.Section)
			}
			text := r.Content
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Println(text)
			fmt.Println()
		}
	}

	return nil
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/graph"
	"docrag/internal/adapter/lock"
	"docrag/internal/adapter/store"
	"docrag/internal/usecase"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a documentation directory",
	Long: `Index the markdown documents in a directory for later retrieval.
The index is stored in .docrag/index.db within the target directory.

Examples:
  docrag index .                # Index current directory
  docrag index /path/to/docs    # Index specific directory
  docrag index --force          # Reindex everything, ignoring hashes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "reindex all documents even if unchanged")
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.EnsureIndexDir(path); err != nil {
		return fmt.Errorf("failed to create .docrag directory: %w", err)
	}

	// One index run at a time per corpus.
	lk, err := lock.Acquire(config.LockPath(path))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return fmt.Errorf("another indexing run is already working on %s", path)
		}
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	defer lk.Release()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	dbPath := config.IndexDBPath(path)
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild {
		fmt.Printf("Index rebuild required: %s\n", migration.Reason)
		fmt.Println("Clearing existing index...")
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	} else if migration.NeedsMigration {
		fmt.Printf("Running schema migration: %s\n", migration.Reason)
		if err := st.Migrate(cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	vectors, err := store.NewBoltVectorIndex(st.DB(), embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}

	builder := graph.NewBuilder(fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes), fs.Reader{})
	chk := chunker.NewSectionChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	indexUC := usecase.NewIndexUseCase(builder, chk, embedder, vectors, st,
		cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)

	fmt.Printf("Indexing %s (model: %s)\n", path, embedder.ModelName())

	var barMu sync.Mutex
	bars := make(map[string]*progressbar.ProgressBar)
	indexUC.Progress = func(stage string, done, total int) {
		barMu.Lock()
		defer barMu.Unlock()
		bar, ok := bars[stage]
		if !ok {
			bar = newStageBar(stage, total)
			bars[stage] = bar
		}
		bar.Set(done)
	}

	result, err := indexUC.Index(path, indexForce)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	// Record schema version + config hash for the state just written.
	if err := st.Migrate(cfg); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", result.FilesSkipped)
	fmt.Printf("  Files deleted:  %d (removed)\n", result.FilesDeleted)
	fmt.Printf("  Chunks created: %d\n", result.ChunksCreated)
	fmt.Printf("  Embeddings:     %d\n", result.ChunksEmbedded)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", dbPath)
	return nil
}

func newStageBar(stage string, total int) *progressbar.ProgressBar {
	label := "[cyan]Chunking[reset]"
	if stage == "embed" {
		label = "[cyan]Embedding[reset]"
	}
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

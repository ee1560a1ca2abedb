package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/port"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "docrag - hybrid retrieval over linked documentation",
	Long: `docrag indexes a directory of markdown documents, follows the links
between them, and answers queries by fusing semantic search with
traversal of the document link graph.

Example usage:
  docrag index .                  # Index the current directory
  docrag query -q "setup guide"   # Hybrid search over the index
  docrag links docs/api.md        # Inspect a document's link neighborhood`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		setupLogging(cfg.Logging.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "corpus directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// newEmbedder builds the embedding client the config asks for.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	opts := []embedding.Option{
		embedding.WithDimension(e.Dimension),
		embedding.WithMaxRetries(e.MaxRetries),
		embedding.WithRateLimit(e.RequestsPerSecond),
	}

	switch e.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, opts...)
	case "ollama":
		return embedding.NewOllamaEmbedder(e.Model, e.BaseURL, opts...)
	case "custom":
		if e.BaseURL == "" {
			return nil, fmt.Errorf("embedding.base_url is required for the custom provider")
		}
		return embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, opts...)
	case "mock":
		dim := e.Dimension
		if dim <= 0 {
			dim = 8
		}
		return embedding.NewMockEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
}

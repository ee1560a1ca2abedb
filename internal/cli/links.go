package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

var linksJSON bool

var linksCmd = &cobra.Command{
	Use:   "links <path>",
	Short: "Show a document's link neighborhood",
	Long: `Show the outgoing and incoming links of one indexed document.
The path is relative to the corpus root.

Examples:
  docrag links docs/api.md
  docrag links README.md --json`,
	Args: cobra.ExactArgs(1),
	RunE: runLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)
	linksCmd.Flags().BoolVar(&linksJSON, "json", false, "output as JSON")
}

func runLinks(cmd *cobra.Command, args []string) error {
	docs, err := loadIndexedGraph()
	if err != nil {
		return err
	}

	path := args[0]
	links := domain.DocumentLinks{Outgoing: []string{}, Incoming: []string{}}
	if doc, ok := docs[path]; ok {
		links.Outgoing = append(links.Outgoing, doc.Outgoing...)
		links.Incoming = append(links.Incoming, doc.Incoming...)
	}

	if linksJSON {
		output, _ := json.MarshalIndent(links, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if _, ok := docs[path]; !ok {
		fmt.Printf("%s is not in the index.\n", path)
		return nil
	}

	fmt.Printf("Links for %s:\n\n", path)
	fmt.Printf("Outgoing (%d):\n", len(links.Outgoing))
	for _, target := range links.Outgoing {
		fmt.Printf("  -> %s\n", target)
	}
	fmt.Printf("\nIncoming (%d):\n", len(links.Incoming))
	for _, source := range links.Incoming {
		fmt.Printf("  <- %s\n", source)
	}
	return nil
}

// loadIndexedGraph opens the store for the current corpus and loads the
// persisted link graph.
func loadIndexedGraph() (map[string]domain.Document, error) {
	dbPath := config.IndexDBPath(GetRootDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found, run 'docrag index' first")
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer st.Close()

	docs, err := st.LoadGraph()
	if err != nil {
		if errors.Is(err, store.ErrNotIndexed) {
			return nil, fmt.Errorf("no index found, run 'docrag index' first")
		}
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	return docs, nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var titlesJSON bool

var titlesCmd = &cobra.Command{
	Use:   "titles <substring>",
	Short: "Find documents by title",
	Long: `List every indexed document whose title contains the given
substring, case-insensitively.

Examples:
  docrag titles "getting started"
  docrag titles api --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTitles,
}

type titleMatch struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

func init() {
	rootCmd.AddCommand(titlesCmd)
	titlesCmd.Flags().BoolVar(&titlesJSON, "json", false, "output as JSON")
}

func runTitles(cmd *cobra.Command, args []string) error {
	docs, err := loadIndexedGraph()
	if err != nil {
		return err
	}

	needle := strings.ToLower(args[0])
	var matches []titleMatch
	for path, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			matches = append(matches, titleMatch{Path: path, Title: doc.Title})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })

	if titlesJSON {
		if matches == nil {
			matches = []titleMatch{}
		}
		output, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(matches) == 0 {
		fmt.Printf("No titles match %q.\n", args[0])
		return nil
	}

	fmt.Printf("Found %d documents:\n\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  %-40s %s\n", m.Path, m.Title)
	}
	return nil
}

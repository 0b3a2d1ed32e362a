package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/scisearch/internal/app"
	"github.com/kailas-cloud/scisearch/internal/metrics"
)

var queryFlags struct {
	k      int
	budget int
	index  string
}

func init() {
	f := queryCmd.Flags()
	f.IntVar(&queryFlags.k, "k", 0, "Results to return (default search.display_n)")
	f.IntVar(&queryFlags.budget, "budget", 0, "Leaf items to examine, -1 for unbounded (default search.budget)")
	f.StringVar(&queryFlags.index, "index", "", "Index artifact (default index.path)")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run the full search pipeline from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

// QueryHit is one result of the query command.
type QueryHit struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Abstract   string  `json:"abstract"`
	URL        string  `json:"url"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// QueryResult is the response for the query command.
type QueryResult struct {
	Query   string     `json:"query"`
	Results []QueryHit `json:"results"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	metrics.Register()

	if queryFlags.k > 0 {
		cfg.Search.DisplayN = queryFlags.k
		cfg.Search.TopK = max(cfg.Search.TopK, queryFlags.k)
	}
	if cmd.Flags().Changed("budget") {
		b := queryFlags.budget
		cfg.Search.Budget = &b
	}
	if queryFlags.index != "" {
		cfg.Index.Path = queryFlags.index
	}

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	defer a.Close()

	text := strings.Join(args, " ")
	results, err := a.Search.Search(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	res := QueryResult{Query: text, Results: make([]QueryHit, len(results))}
	for i := range results {
		r := &results[i]
		res.Results[i] = QueryHit{
			ID:         r.DocumentID(),
			Title:      r.Title(),
			Abstract:   r.Abstract(),
			URL:        r.URL(),
			Distance:   r.Distance(),
			Similarity: r.Similarity(),
		}
	}

	return output(cmd.OutOrStdout(), res, func(w io.Writer) {
		if len(res.Results) == 0 {
			fmt.Fprintln(w, "No results")
			return
		}
		for i, h := range res.Results {
			fmt.Fprintf(w, "%d. [%.4f] %s\n   %s\n   %s\n", i+1, h.Similarity, h.Title, truncate(h.Abstract, 160), h.URL)
		}
	})
}

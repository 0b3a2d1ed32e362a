package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/app"
	"github.com/kailas-cloud/scisearch/internal/config"
	"github.com/kailas-cloud/scisearch/internal/metrics"
	"github.com/kailas-cloud/scisearch/internal/repository/corpus"
)

var buildFlags struct {
	corpus    string
	out       string
	trees     int
	leafSize  int
	seed      uint64
	workers   int
	batchSize int
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.corpus, "corpus", "", "Corpus file, .csv or .db/.sqlite (default corpus.path)")
	f.StringVar(&buildFlags.out, "out", "", "Output artifact (default index.path)")
	f.IntVar(&buildFlags.trees, "trees", 0, "Number of trees (default index.trees)")
	f.IntVar(&buildFlags.leafSize, "leaf-size", 0, "Leaf size threshold (default index.leaf_size)")
	f.Uint64Var(&buildFlags.seed, "seed", 0, "Random seed (default index.seed)")
	f.IntVar(&buildFlags.workers, "workers", 0, "Parallel tree builders (default index.build_workers or GOMAXPROCS)")
	f.IntVar(&buildFlags.batchSize, "batch-size", app.DefaultBatchSize, "Abstracts per encoder call")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed a corpus and build the ANN forest",
	Long: `Normalize every abstract with the query normalizer, embed it with the
configured encoder and build the forest. The artifact is written to a temp
file and renamed into place, so a running server never sees a partial file.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

// BuildResult is the response for the build command.
type BuildResult struct {
	Status     string  `json:"status"`
	Path       string  `json:"path"`
	Documents  int     `json:"documents"`
	Indexed    int     `json:"indexed"`
	Skipped    int     `json:"skipped"`
	Dimensions int     `json:"dimensions"`
	Trees      int     `json:"trees"`
	Nodes      int     `json:"nodes"`
	Bytes      int64   `json:"bytes"`
	Seconds    float64 `json:"seconds"`
}

func runBuild(cmd *cobra.Command, _ []string) error {
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

	corpusPath := firstNonEmpty(buildFlags.corpus, cfg.Corpus.Path)
	driver := cfg.Corpus.Driver
	if buildFlags.corpus != "" {
		driver = driverFor(buildFlags.corpus)
	}
	out := firstNonEmpty(buildFlags.out, cfg.Index.Path)

	store, err := corpus.Open(driver, corpusPath)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer store.Close()

	enc, err := app.NewEncoder(cfg.Encoder, app.EncoderOptions{}, logger)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}

	forest := ann.BuildConfig{
		Dimensions: cfg.Encoder.Dimensions,
		Trees:      firstPositive(buildFlags.trees, cfg.Index.Trees),
		LeafSize:   firstPositive(buildFlags.leafSize, cfg.Index.LeafSize),
		Seed:       cfg.Index.Seed,
		Workers:    firstPositive(buildFlags.workers, cfg.Index.BuildWorkers),
	}
	if cmd.Flags().Changed("seed") {
		forest.Seed = buildFlags.seed
	}

	start := time.Now()
	idx, report, err := app.BuildIndex(cmd.Context(), store, enc, app.BuildOptions{
		Forest:    forest,
		BatchSize: buildFlags.batchSize,
		Progress: func(done, total int) {
			logger.Info("Embedding progress", zap.Int("done", done), zap.Int("total", total))
		},
	}, logger)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	if err := idx.Save(out); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	st := idx.Stats()
	res := BuildResult{
		Status:     "built",
		Path:       out,
		Documents:  report.Documents,
		Indexed:    report.Indexed,
		Skipped:    report.Skipped,
		Dimensions: st.Dimensions,
		Trees:      st.Trees,
		Nodes:      st.Nodes,
		Seconds:    time.Since(start).Seconds(),
	}
	if fi, err := os.Stat(out); err == nil {
		res.Bytes = fi.Size()
	}

	return output(cmd.OutOrStdout(), res, func(w io.Writer) {
		fmt.Fprintf(w, "Built %s: %d of %d documents (%d skipped), %d trees, %d nodes, %d bytes in %.1fs\n",
			res.Path, res.Indexed, res.Documents, res.Skipped, res.Trees, res.Nodes, res.Bytes, res.Seconds)
	})
}

// driverFor infers the corpus driver from a file extension.
func driverFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return config.DriverSQLite
	default:
		return config.DriverCSV
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstPositive(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

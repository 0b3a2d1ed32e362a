// Package main provides the scisearch-index offline tool: it builds and
// inspects ANN artifacts, runs queries from the shell and imports corpora.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/config"
	logpkg "github.com/kailas-cloud/scisearch/internal/logger"
	"github.com/kailas-cloud/scisearch/internal/version"
)

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	logLevel    string
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scisearch-index",
	Short: "Build and inspect scisearch ANN indexes",
	Long: `scisearch-index prepares the artifacts the scisearch server loads.

It embeds a corpus of abstracts, builds the angular random-projection
forest and saves it atomically. All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version.Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default config/$ENV.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for progress messages on stderr")
}

// loadConfig reads --config or the file selected by ENV.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath) //nolint:wrapcheck // already descriptive
	}
	return config.Load(config.GetEnv()) //nolint:wrapcheck // already descriptive
}

func newLogger() (*zap.Logger, error) {
	logger, err := logpkg.NewLogger(config.GetEnv(), logLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

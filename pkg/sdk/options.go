package scisearch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	indexPath string
	noMmap    bool

	corpusDriver string // "csv" or "sqlite"
	corpusPath   string

	embedder       Embedder
	maxConcurrency int

	topK     int
	displayN int
	budget   int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithIndex sets the ANN artifact to load. The file is memory-mapped.
func WithIndex(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexPath = path
	})
}

// WithoutMmap reads the artifact into memory instead of mapping it.
func WithoutMmap() Option {
	return optionFunc(func(c *clientConfig) {
		c.noMmap = true
	})
}

// WithCSVCorpus loads document metadata from a CSV with title, abstract and url columns.
func WithCSVCorpus(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpusDriver = "csv"
		c.corpusPath = path
	})
}

// WithSQLiteCorpus reads document metadata from a SQLite corpus.
func WithSQLiteCorpus(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpusDriver = "sqlite"
		c.corpusPath = path
	})
}

// WithEmbedder sets the text encoder. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithMaxConcurrency caps encoder calls in flight. Default: 4.
func WithMaxConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConcurrency = n
	})
}

// WithResults sets how many neighbors are retrieved (topK) and returned
// (displayN). Defaults: 5 and 3.
func WithResults(topK, displayN int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.displayN = displayN
	})
}

// WithBudget caps leaf items examined per query. Negative means unbounded
// (default).
func WithBudget(budget int) Option {
	return optionFunc(func(c *clientConfig) {
		c.budget = budget
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

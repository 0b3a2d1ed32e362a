package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/scisearch/internal/domain"
)

// Config holds the scisearch configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Encoder EncoderConfig `yaml:"encoder"`
	Index   IndexConfig   `yaml:"index"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Search  SearchConfig  `yaml:"search"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// Encoder providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// EncoderConfig holds text encoder settings.
type EncoderConfig struct {
	Provider          string  `yaml:"provider"` // openai, hashing
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	SendDimensions    bool    `yaml:"send_dimensions"`
	QueryInstruction  string  `yaml:"query_instruction"`
	MaxConcurrency    int     `yaml:"max_concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	ProbeOnStart      *bool   `yaml:"probe_on_start"`
	HashSeed          uint64  `yaml:"hash_seed"`
}

// Probe reports whether the encoder dimension is checked at startup.
func (c EncoderConfig) Probe() bool { return c.ProbeOnStart == nil || *c.ProbeOnStart }

// IndexConfig holds ANN forest settings.
type IndexConfig struct {
	Path         string `yaml:"path"`
	Trees        int    `yaml:"trees"`
	LeafSize     int    `yaml:"leaf_size"`
	Seed         uint64 `yaml:"seed"`
	BuildWorkers int    `yaml:"build_workers"`
	UseMmap      *bool  `yaml:"use_mmap"`
}

// Mmap reports whether the artifact is memory-mapped on load.
func (c IndexConfig) Mmap() bool { return c.UseMmap == nil || *c.UseMmap }

// Corpus drivers.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// CorpusConfig holds document metadata store settings.
type CorpusConfig struct {
	Driver string `yaml:"driver"` // csv, sqlite (default: csv)
	Path   string `yaml:"path"`
}

// SearchConfig holds query pipeline settings.
type SearchConfig struct {
	TopK           int  `yaml:"top_k"`
	DisplayN       int  `yaml:"display_n"`
	Budget         *int `yaml:"budget"` // -1 = unbounded
	MaxQueryLength int  `yaml:"max_query_length"`
}

// SearchBudget returns the configured leaf budget, unbounded when unset.
func (c SearchConfig) SearchBudget() int {
	if c.Budget == nil {
		return -1
	}
	return *c.Budget
}

// CacheConfig holds the Valkey embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML after ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 5
	}
	if c.Encoder.Provider == "" {
		c.Encoder.Provider = ProviderOpenAI
	}
	if c.Encoder.Dimensions <= 0 {
		c.Encoder.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	if c.Encoder.MaxConcurrency <= 0 {
		c.Encoder.MaxConcurrency = 4
	}
	if c.Encoder.TimeoutSec <= 0 {
		c.Encoder.TimeoutSec = 30
	}
	if c.Index.Trees <= 0 {
		c.Index.Trees = 16
	}
	if c.Index.LeafSize <= 0 {
		c.Index.LeafSize = 64
	}
	if c.Corpus.Driver == "" {
		c.Corpus.Driver = DriverCSV
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 5
	}
	if c.Search.DisplayN <= 0 {
		c.Search.DisplayN = 3
	}
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = 4096
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 24 * 60 * 60
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if err := c.Encoder.validate(); err != nil {
		return err
	}
	if c.Index.Path == "" {
		return errors.New("index.path is required")
	}
	switch c.Corpus.Driver {
	case DriverCSV, DriverSQLite:
		// ok
	default:
		return fmt.Errorf("corpus.driver must be %q or %q, got %q", DriverCSV, DriverSQLite, c.Corpus.Driver)
	}
	if c.Corpus.Path == "" {
		return errors.New("corpus.path is required")
	}
	if c.Search.DisplayN > c.Search.TopK {
		return fmt.Errorf("search.display_n (%d) must not exceed search.top_k (%d)",
			c.Search.DisplayN, c.Search.TopK)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return errors.New("cache.addrs is required when cache.enabled is true")
	}
	return nil
}

func (c *EncoderConfig) validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.BaseURL == "" {
			return errors.New("encoder.base_url is required for the openai provider")
		}
		if c.Model == "" {
			return errors.New("encoder.model is required for the openai provider")
		}
	case ProviderHashing:
		// model-free
	default:
		return fmt.Errorf("encoder.provider must be %q or %q, got %q", ProviderOpenAI, ProviderHashing, c.Provider)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("encoder.requests_per_second must not be negative, got %v", c.RequestsPerSecond)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

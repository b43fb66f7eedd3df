package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the valdex configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Cache       CacheConfig       `yaml:"cache"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Validation  ValidationConfig  `yaml:"validation"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// VectorIndexConfig selects and configures the vector index.
type VectorIndexConfig struct {
	Driver            string `yaml:"driver"` // qdrant, memory (default: qdrant)
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	APIKey            string `yaml:"api_key"`
	UseTLS            bool   `yaml:"use_tls"`
	MaxMessageMB      int    `yaml:"max_message_mb"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	UpsertBatchSize   int    `yaml:"upsert_batch_size"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
}

// ProviderConfig holds embedding provider settings.
// openai uses APIKey/BaseURL; fastembed uses CacheDir/MaxLength.
type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	CacheDir  string `yaml:"cache_dir"`
	MaxLength int    `yaml:"max_length"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"` // openai, fastembed
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"` // 0 = detect on startup
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	MaxBatch            int    `yaml:"max_batch"`
}

// CacheConfig holds the Redis/Valkey embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	TTLHours         int      `yaml:"ttl_hours"` // 0 = no expiry
}

// LLMConfig holds the chat completion endpoint settings.
type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// RetrievalConfig tunes the per-query fan-out.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	Concurrency    int     `yaml:"concurrency"`
	ScoreThreshold float32 `yaml:"score_threshold"`
}

// SuggestionsConfig tunes the suggestion ranker.
type SuggestionsConfig struct {
	SimilarityFloor  float64 `yaml:"similarity_floor"`
	MaxPerCollection int     `yaml:"max_per_collection"`
}

// ValidationConfig tunes post-processing of model output.
type ValidationConfig struct {
	Grounding string `yaml:"grounding"` // off, strip
}

// IndexerConfig holds dataset ingestion settings.
type IndexerConfig struct {
	DataDir         string `yaml:"data_dir"`
	BatchSize       int    `yaml:"batch_size"`
	WatchDebounceMS int    `yaml:"watch_debounce_ms"`
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

	// Substitute env variables of the form ${VAR}
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// validator waits on the model, so this must exceed llm.timeout_sec
		c.HTTP.WriteTimeoutSec = 150
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.VectorIndex.Driver == "" {
		c.VectorIndex.Driver = "qdrant"
	}
	if c.VectorIndex.Host == "" {
		c.VectorIndex.Host = "localhost"
	}
	if c.VectorIndex.Port <= 0 {
		c.VectorIndex.Port = 6334
	}
	if c.VectorIndex.MaxMessageMB <= 0 {
		c.VectorIndex.MaxMessageMB = 50
	}
	if c.VectorIndex.RequestTimeoutSec <= 0 {
		c.VectorIndex.RequestTimeoutSec = 30
	}
	if c.VectorIndex.UpsertBatchSize <= 0 {
		c.VectorIndex.UpsertBatchSize = 1000
	}

	if c.Embedding.Vectorizer.Provider == "" {
		c.Embedding.Vectorizer.Provider = "openai"
	}
	if c.Embedding.Vectorizer.MaxBatch <= 0 {
		c.Embedding.Vectorizer.MaxBatch = 256
	}

	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "qwen2.5:7b"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 120
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}

	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.Concurrency <= 0 {
		c.Retrieval.Concurrency = 4
	}

	if c.Suggestions.SimilarityFloor <= 0 {
		c.Suggestions.SimilarityFloor = 0.8
	}
	if c.Suggestions.MaxPerCollection <= 0 {
		c.Suggestions.MaxPerCollection = 3
	}

	if c.Validation.Grounding == "" {
		c.Validation.Grounding = "off"
	}

	if c.Indexer.DataDir == "" {
		c.Indexer.DataDir = "data"
	}
	if c.Indexer.BatchSize <= 0 {
		c.Indexer.BatchSize = 1000
	}
	if c.Indexer.WatchDebounceMS <= 0 {
		c.Indexer.WatchDebounceMS = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.VectorIndex.Driver {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("vector_index.driver must be \"qdrant\" or \"memory\", got %q", c.VectorIndex.Driver)
	}

	v := c.Embedding.Vectorizer
	switch v.Provider {
	case "openai", "fastembed":
	default:
		return fmt.Errorf("embedding.vectorizer.provider must be \"openai\" or \"fastembed\", got %q", v.Provider)
	}
	if v.Model == "" {
		return fmt.Errorf("embedding.vectorizer.model is required")
	}
	if v.Dimensions < 0 {
		return fmt.Errorf("embedding.vectorizer.dimensions must not be negative, got %d", v.Dimensions)
	}

	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache.enabled is true")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}

	if c.Suggestions.SimilarityFloor > 1 {
		return fmt.Errorf("suggestions.similarity_floor must be at most 1, got %v", c.Suggestions.SimilarityFloor)
	}

	switch c.Validation.Grounding {
	case "off", "strip":
	default:
		return fmt.Errorf("validation.grounding must be \"off\" or \"strip\", got %q", c.Validation.Grounding)
	}
	return nil
}

// Provider returns the settings of the configured vectorizer's provider.
func (c *Config) Provider() ProviderConfig {
	return c.Embedding.Providers[c.Embedding.Vectorizer.Provider]
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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/lawrag/internal/domain/cost"
)

// Config holds the lawrag service configuration.
type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	Database       DatabaseConfig       `yaml:"database"`
	Storage        StorageConfig        `yaml:"storage"`
	Index          IndexConfig          `yaml:"index"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Generation     GenerationConfig     `yaml:"generation"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	ExpansionCache ExpansionCacheConfig `yaml:"expansion_cache"`
	Extraction     ExtractionConfig     `yaml:"extraction"`
	Answer         AnswerConfig         `yaml:"answer"`
	Costs          CostsConfig          `yaml:"costs"`
	Accounting     AccountingConfig     `yaml:"accounting"`
	Auth           AuthConfig           `yaml:"auth"`
	Logging        LoggingConfig        `yaml:"logging"`
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"` // <prefix>:<lang>:idx, <prefix>:balance:<user>
}

// IndexConfig holds HNSW index settings of the corpus partitions.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int `yaml:"hnsw_ef_runtime"` // 0 = server default
}

// ProviderConfig holds an OpenAI-compatible endpoint.
type ProviderConfig struct {
	Type       string `yaml:"type"` // openai (default), azure
	Name       string `yaml:"name"` // metrics label
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"` // azure only
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider            ProviderConfig `yaml:"provider"`
	Model               string         `yaml:"model"`
	Dimensions          int            `yaml:"dimensions"`
	QueryInstruction    string         `yaml:"query_instruction"`
	DocumentInstruction string         `yaml:"document_instruction"`
	BatchSize           int            `yaml:"batch_size"`
	CacheTTLSec         int            `yaml:"cache_ttl_sec"` // 0 = keep forever, <0 = cache disabled
	WarmUp              bool           `yaml:"warm_up"`
}

// GenerationConfig holds chat model settings shared by expansion, answering and extraction.
type GenerationConfig struct {
	Provider    ProviderConfig `yaml:"provider"`
	Model       string         `yaml:"model"`
	Temperature float32        `yaml:"temperature"`
	MaxTokens   int            `yaml:"max_tokens"`
}

// RetrievalConfig bounds the work of a single request.
type RetrievalConfig struct {
	TopK              int `yaml:"top_k"`
	Expansions        int `yaml:"expansions"`
	MaxArticles       int `yaml:"max_articles"`
	MaxParagraphs     int `yaml:"max_paragraphs"`
	MaxRawHits        int `yaml:"max_raw_hits"`
	SearchConcurrency int `yaml:"search_concurrency"`
	ExpandConcurrency int `yaml:"expand_concurrency"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// ExpansionCacheConfig holds the in-process expansion cache settings.
type ExpansionCacheConfig struct {
	Size    int `yaml:"size"` // <0 = disabled
	TTLSec  int `yaml:"ttl_sec"`
	Retries int `yaml:"retries"` // <0 = no retries
}

// ExtractionConfig holds document and image limits.
type ExtractionConfig struct {
	MaxDocumentMB      int `yaml:"max_document_mb"`
	MaxImageMB         int `yaml:"max_image_mb"`
	MaxTextChars       int `yaml:"max_text_chars"`
	DownloadTimeoutSec int `yaml:"download_timeout_sec"`
}

// AnswerConfig holds answer generation settings.
type AnswerConfig struct {
	ValidateCitations bool `yaml:"validate_citations"`
}

// CostsConfig overrides cells of the default cost matrix: mode -> kind -> credits.
type CostsConfig map[string]map[string]int

// AccountingConfig holds credit accounting settings.
type AccountingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Backend        string `yaml:"backend"` // redis (default), memory
	InitialBalance int64  `yaml:"initial_balance"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first; real environment variables win.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands env variables, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
// Retrieval limits left at zero are defaulted by the orchestrator itself.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "lawrag"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	applyProviderDefaults(&c.Embedding.Provider)
	applyProviderDefaults(&c.Generation.Provider)
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 256
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o"
	}
	if c.ExpansionCache.TTLSec <= 0 {
		c.ExpansionCache.TTLSec = 3600
	}
	if c.ExpansionCache.Retries == 0 {
		c.ExpansionCache.Retries = 1
	}
	if c.Extraction.MaxDocumentMB <= 0 {
		c.Extraction.MaxDocumentMB = 20
	}
	if c.Extraction.MaxImageMB <= 0 {
		c.Extraction.MaxImageMB = 10
	}
	if c.Extraction.DownloadTimeoutSec <= 0 {
		c.Extraction.DownloadTimeoutSec = 30
	}
	if c.Accounting.Backend == "" {
		c.Accounting.Backend = "redis"
	}
	if c.Accounting.InitialBalance <= 0 {
		c.Accounting.InitialBalance = 10
	}
}

func applyProviderDefaults(p *ProviderConfig) {
	if p.Type == "" {
		p.Type = "openai"
	}
	if p.Name == "" {
		p.Name = p.Type
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	for name, p := range map[string]ProviderConfig{
		"embedding":  c.Embedding.Provider,
		"generation": c.Generation.Provider,
	} {
		switch p.Type {
		case "openai":
		case "azure":
			if p.BaseURL == "" {
				return fmt.Errorf("%s.provider.base_url is required for azure", name)
			}
		default:
			return fmt.Errorf("%s.provider.type must be \"openai\" or \"azure\", got %q", name, p.Type)
		}
	}
	switch c.Accounting.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("accounting.backend must be \"redis\" or \"memory\", got %q", c.Accounting.Backend)
	}
	if c.Retrieval.RequestTimeoutSec < 0 {
		return fmt.Errorf("retrieval.request_timeout_sec must not be negative")
	}
	if _, err := c.Costs.Matrix(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}
	return nil
}

// Matrix returns the default cost matrix with configured overrides applied.
func (c CostsConfig) Matrix() (cost.Matrix, error) {
	if len(c) == 0 {
		return cost.Default(), nil
	}
	return cost.New(c)
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

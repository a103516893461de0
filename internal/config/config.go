package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/crag/internal/domain"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheBolt   = "bolt"
	CacheRedis  = "redis"
)

// Config holds the crag configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Search     SearchConfig     `yaml:"search"`
	Cache      CacheConfig      `yaml:"cache"`
	Upload     UploadConfig     `yaml:"upload"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)

	// File enables a rotating log file next to the console output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // host:port of the OTLP/HTTP collector
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
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

// PipelineConfig holds the default pipeline tunables.
type PipelineConfig struct {
	ChunkSize             int      `yaml:"chunk_size"`
	ChunkOverlap          *int     `yaml:"chunk_overlap"`
	TopK                  int      `yaml:"top_k"`
	SynthesisChunkSize    int      `yaml:"synthesis_chunk_size"`
	SynthesisChunkOverlap *int     `yaml:"synthesis_chunk_overlap"`
	SynthesisTopK         int      `yaml:"synthesis_top_k"`
	JudgeFailureThreshold *float64 `yaml:"judge_failure_threshold"`
	FanoutLimit           int      `yaml:"fanout_limit"`
	TimeoutSec            int      `yaml:"timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // label for metrics and logs
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	MaxBatchSize        int    `yaml:"max_batch_size"`
}

// GenerationConfig holds the chat completion provider settings.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	MaxAttempts int     `yaml:"max_attempts"`
	BackoffMs   int     `yaml:"backoff_ms"`
}

// SearchConfig holds the web search fallback settings.
type SearchConfig struct {
	Provider    string `yaml:"provider"` // tavily
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	MaxResults  int    `yaml:"max_results"`
	SearchDepth string `yaml:"search_depth"` // basic, advanced
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// CacheConfig holds the embedding cache settings.
type CacheConfig struct {
	Backend string `yaml:"backend"` // none, memory, bolt, redis (default: memory)
	TTLSec  int    `yaml:"ttl_sec"` // 0 = keep forever

	// bolt
	Path string `yaml:"path"`

	// redis
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// UploadConfig limits uploaded documents.
type UploadConfig struct {
	MaxFileMB    int `yaml:"max_file_mb"`
	MaxRequestMB int `yaml:"max_request_mb"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
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
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Ответ приходит только после всего пайплайна.
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "crag"
	}
	if c.Tracing.SampleRatio <= 0 {
		c.Tracing.SampleRatio = 1
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 100
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 3
		}
		if c.Logging.MaxAgeDays <= 0 {
			c.Logging.MaxAgeDays = 28
		}
	}

	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = domain.DefaultChunkSize
	}
	if c.Pipeline.ChunkOverlap == nil {
		v := domain.DefaultChunkOverlap
		c.Pipeline.ChunkOverlap = &v
	}
	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = domain.DefaultTopK
	}
	if c.Pipeline.SynthesisChunkSize <= 0 {
		c.Pipeline.SynthesisChunkSize = c.Pipeline.ChunkSize
	}
	if c.Pipeline.SynthesisChunkOverlap == nil {
		v := *c.Pipeline.ChunkOverlap
		c.Pipeline.SynthesisChunkOverlap = &v
	}
	if c.Pipeline.SynthesisTopK <= 0 {
		c.Pipeline.SynthesisTopK = c.Pipeline.TopK
	}
	if c.Pipeline.JudgeFailureThreshold == nil {
		v := domain.DefaultJudgeFailureThreshold
		c.Pipeline.JudgeFailureThreshold = &v
	}
	if c.Pipeline.FanoutLimit <= 0 {
		c.Pipeline.FanoutLimit = domain.DefaultFanoutLimit
	}
	if c.Pipeline.TimeoutSec <= 0 {
		c.Pipeline.TimeoutSec = int(domain.DefaultTimeout / time.Second)
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = c.Embedding.Provider
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = c.Embedding.BaseURL
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = 3
	}
	if c.Generation.BackoffMs <= 0 {
		c.Generation.BackoffMs = 500
	}

	if c.Search.Provider == "" {
		c.Search.Provider = "tavily"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.SearchDepth == "" {
		c.Search.SearchDepth = "basic"
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 30
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.Backend == CacheBolt && c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(os.TempDir(), "crag-cache.db")
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Upload.MaxFileMB <= 0 {
		c.Upload.MaxFileMB = 32
	}
	if c.Upload.MaxRequestMB <= 0 {
		c.Upload.MaxRequestMB = 64
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within (0, 1], got %v", c.Tracing.SampleRatio)
	}
	if err := c.PipelineDefaults().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be within [0, 2], got %v", c.Generation.Temperature)
	}
	if c.Search.Provider != "tavily" {
		return fmt.Errorf("search.provider must be \"tavily\", got %q", c.Search.Provider)
	}
	switch c.Search.SearchDepth {
	case "basic", "advanced":
	default:
		return fmt.Errorf("search.search_depth must be \"basic\" or \"advanced\", got %q", c.Search.SearchDepth)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheBolt:
		if c.Cache.Path == "" {
			return errors.New("cache.path is required for the bolt backend")
		}
	case CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			return errors.New("cache.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, bolt, redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative, got %d", c.Cache.TTLSec)
	}
	return nil
}

// PipelineDefaults converts the pipeline section into the domain configuration.
func (c *Config) PipelineDefaults() domain.PipelineConfig {
	p := c.Pipeline
	cfg := domain.PipelineConfig{
		ChunkSize:          p.ChunkSize,
		TopK:               p.TopK,
		SynthesisChunkSize: p.SynthesisChunkSize,
		SynthesisTopK:      p.SynthesisTopK,
		FanoutLimit:        p.FanoutLimit,
		Timeout:            time.Duration(p.TimeoutSec) * time.Second,
	}
	if p.ChunkOverlap != nil {
		cfg.ChunkOverlap = *p.ChunkOverlap
	}
	if p.SynthesisChunkOverlap != nil {
		cfg.SynthesisChunkOverlap = *p.SynthesisChunkOverlap
	}
	if p.JudgeFailureThreshold != nil {
		cfg.JudgeFailureThreshold = *p.JudgeFailureThreshold
	}
	return cfg
}

// CacheTTL returns the cache entry lifetime. Zero means no expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
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

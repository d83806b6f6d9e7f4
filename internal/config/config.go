package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for Refinery.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Retry     RetryConfig     `json:"retry"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Embedding EmbeddingConfig `json:"embedding"`
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Output    OutputConfig    `json:"output"`
	Tracing   TracingConfig   `json:"tracing"`
}

// LLMConfig holds the OpenAI-compatible generation endpoint settings.
type LLMConfig struct {
	URL            string  `json:"url"`
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// RetryConfig holds the backoff settings applied to every generation call.
type RetryConfig struct {
	MaxAttempts         int     `json:"max_attempts"`
	InitialDelaySeconds float64 `json:"initial_delay_seconds"`
	MaxDelaySeconds     float64 `json:"max_delay_seconds"`
	Multiplier          float64 `json:"multiplier"`
	JitterFraction      float64 `json:"jitter_fraction"`
}

// PipelineConfig holds the refinement loop settings.
type PipelineConfig struct {
	Iterations  int    `json:"iterations"`
	TemplateDir string `json:"template_dir"` // Empty means built-in templates
}

// EmbeddingConfig holds the optional embeddings endpoint used for
// similarity search over stored sessions.
type EmbeddingConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`      // e.g., "text-embedding-3-small"
	Dimensions int    `json:"dimensions"` // e.g., 1536 for text-embedding-3-small
}

// DatabaseConfig holds the optional PostgreSQL connection.
type DatabaseConfig struct {
	URL string `json:"url"`
}

// ServerConfig holds API server configuration.
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

// OutputConfig holds where finished session files land.
type OutputConfig struct {
	Dir string `json:"dir"`
}

// TracingConfig toggles the OpenTelemetry stdout exporter.
type TracingConfig struct {
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			URL:            "http://localhost:8000/v1",
			APIKey:         "",
			Model:          "gemini-2.5-flash",
			MaxTokens:      1024,
			Temperature:    0.7,
			TopP:           0.8,
			TimeoutSeconds: 120,
		},
		Retry: RetryConfig{
			MaxAttempts:         3,
			InitialDelaySeconds: 1.0,
			MaxDelaySeconds:     10.0,
			Multiplier:          2.0,
			JitterFraction:      0.1,
		},
		Pipeline: PipelineConfig{
			Iterations:  3,
			TemplateDir: "",
		},
		Embedding: EmbeddingConfig{
			URL:        "",
			APIKey:     "",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Database: DatabaseConfig{
			URL: "",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envBool loads a boolean environment variable into the target pointer if set and valid
func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load builds the configuration from defaults, an optional JSON file and
// REFINERY_* environment overrides, in that order. An empty path falls
// back to REFINERY_CONFIG and the default search locations. A config file
// that exists but cannot be parsed is a hard error: the pipeline must not
// start half-configured.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	envString("REFINERY_LLM_URL", &cfg.LLM.URL)
	envString("REFINERY_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("REFINERY_LLM_MODEL", &cfg.LLM.Model)
	envInt("REFINERY_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envFloat("REFINERY_LLM_TEMPERATURE", &cfg.LLM.Temperature)
	envFloat("REFINERY_LLM_TOP_P", &cfg.LLM.TopP)
	envInt("REFINERY_LLM_TIMEOUT_SECONDS", &cfg.LLM.TimeoutSeconds)

	envInt("REFINERY_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	envFloat("REFINERY_RETRY_INITIAL_DELAY", &cfg.Retry.InitialDelaySeconds)
	envFloat("REFINERY_RETRY_MAX_DELAY", &cfg.Retry.MaxDelaySeconds)
	envFloat("REFINERY_RETRY_MULTIPLIER", &cfg.Retry.Multiplier)
	envFloat("REFINERY_RETRY_JITTER", &cfg.Retry.JitterFraction)

	envInt("REFINERY_ITERATIONS", &cfg.Pipeline.Iterations)
	envString("REFINERY_TEMPLATE_DIR", &cfg.Pipeline.TemplateDir)

	envString("REFINERY_EMBEDDING_URL", &cfg.Embedding.URL)
	envString("REFINERY_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envString("REFINERY_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("REFINERY_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	envString("REFINERY_DATABASE_URL", &cfg.Database.URL)

	envString("REFINERY_SERVER_HOST", &cfg.Server.Host)
	envInt("REFINERY_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("REFINERY_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envString("REFINERY_OUTPUT_DIR", &cfg.Output.Dir)

	envBool("REFINERY_TRACING_ENABLED", &cfg.Tracing.Enabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsEmbeddingConfigured returns true if the embeddings endpoint is set.
func (c *Config) IsEmbeddingConfigured() bool {
	return c.Embedding.URL != ""
}

// IsDatabaseConfigured returns true if a PostgreSQL connection is set.
func (c *Config) IsDatabaseConfigured() bool {
	return c.Database.URL != ""
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values, collecting
// every problem instead of stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.URL == "" {
		errs = append(errs, "LLM URL is required")
	} else if !isValidURL(c.LLM.URL) {
		errs = append(errs, "LLM URL must be a valid URL")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		errs = append(errs, "LLM top_p must be between 0 and 1")
	}
	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, "LLM timeout_seconds must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry max_attempts must be at least 1")
	}
	if c.Retry.InitialDelaySeconds < 0 {
		errs = append(errs, "retry initial_delay_seconds must not be negative")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.InitialDelaySeconds {
		errs = append(errs, "retry max_delay_seconds must not be below initial_delay_seconds")
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "retry multiplier must be at least 1")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, "retry jitter_fraction must be between 0 and 1")
	}

	if c.Pipeline.Iterations < 1 {
		errs = append(errs, "pipeline iterations must be at least 1")
	}

	if c.Embedding.URL != "" {
		if !isValidURL(c.Embedding.URL) {
			errs = append(errs, "embedding URL must be a valid URL")
		}
		if c.Embedding.Dimensions < 1 {
			errs = append(errs, "embedding dimensions must be positive when URL is set")
		}
	}

	if c.Database.URL != "" && !isValidURL(c.Database.URL) {
		errs = append(errs, "database URL must be a valid URL")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.Output.Dir == "" {
		errs = append(errs, "output dir is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// configPath returns the path of the config file to try when none was
// given explicitly.
func configPath() string {
	if path := os.Getenv("REFINERY_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "refinery.json"
	}

	configPath := filepath.Join(homeDir, ".config", "refinery", "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	altPath := filepath.Join(homeDir, ".refinery", "config.json")
	if _, err := os.Stat(altPath); err == nil {
		return altPath
	}

	return configPath
}

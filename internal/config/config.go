// Package config loads the declarative YAML configuration shared by every
// stage and layers environment-provided secrets on top of it, the same
// two-phase load the reference service uses for its own config.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultConfigPath    = "config.yaml"
	DefaultEmbeddingDim  = 768
	DefaultChunkSize     = 5
	DefaultCommentsLimit = 500
)

// Config holds the configuration recognized by every stage (spec.md §6).
// Not every stage reads every field; unused fields for a given stage are
// simply ignored.
type Config struct {
	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Output   string `yaml:"output"` // comma-separated: stdout, stderr, and/or a rotated file path
		Rotation struct {
			MaxSize    int  `yaml:"max_size"` // megabytes
			MaxBackups int  `yaml:"max_backups"`
			MaxAge     int  `yaml:"max_age"` // days
			Compress   bool `yaml:"compress"`
		} `yaml:"rotation"`
	} `yaml:"log"`

	// ArchitecturalConcerns is the ordered controlled vocabulary used for
	// classification (I3: unknown LLM tags are dropped).
	ArchitecturalConcerns []string `yaml:"architectural_concerns"`

	// Keywords maps a concern to the substrings that trigger Collect's
	// relevance filter and PR search grouping for that concern.
	Keywords map[string][]string `yaml:"keywords"`

	Retrieval struct {
		TopK     int `yaml:"top_k"`
		MinChars int `yaml:"min_chars"`
		MaxChars int `yaml:"max_chars"`
	} `yaml:"retrieval"`

	Batch struct {
		CommentsLimit int `yaml:"comments_limit"`
	} `yaml:"batch"`

	Distill struct {
		ChunkSize int `yaml:"chunk_size"`
	} `yaml:"distill"`

	LLM struct {
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"` // from YAML or env
	} `yaml:"llm"`

	Embedding struct {
		Model     string `yaml:"model"`
		Endpoint  string `yaml:"endpoint"`
		APIKey    string `yaml:"api_key"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedding"`

	CodeHost struct {
		BaseURL string `yaml:"base_url"` // empty uses github.com
		Token   string `yaml:"-"`        // from env
	} `yaml:"code_host"`

	Storage struct {
		DSN string `yaml:"dsn"` // from YAML or env, postgres connection string
	} `yaml:"storage"`

	Prompts struct {
		Dir string `yaml:"dir"`
	} `yaml:"prompts"`
}

// GetLogLevel returns the slog.Level matching the configured Log.Level.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads configuration from a YAML file (path from CONFIG_PATH, default
// config.yaml) and then supplements/overrides secrets from the environment.
// A missing file is not an error; defaults apply.
func Load() *Config {
	// A .env file in the working directory is optional local-dev convenience;
	// real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"
	cfg.Log.Rotation.MaxSize = 100
	cfg.Log.Rotation.MaxBackups = 3
	cfg.Log.Rotation.MaxAge = 28
	cfg.LLM.Endpoint = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o"
	cfg.Embedding.Endpoint = "https://api.openai.com/v1"
	cfg.Embedding.Model = "text-embedding-3-large"
	cfg.Embedding.Dimension = DefaultEmbeddingDim
	cfg.Batch.CommentsLimit = DefaultCommentsLimit
	cfg.Distill.ChunkSize = DefaultChunkSize
	cfg.Prompts.Dir = "prompts"

	configPath := getEnv("CONFIG_PATH", DefaultConfigPath)
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			slog.Error("unmarshal config failed", "error", err, "path", configPath)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", configPath)
	} else {
		if !os.IsNotExist(err) {
			slog.Error("read config failed", "error", err, "path", configPath)
			os.Exit(1)
		}
		slog.Info("config not found, using defaults", "path", configPath)
	}

	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", firstNonEmpty(cfg.Embedding.APIKey, cfg.LLM.APIKey))
	cfg.CodeHost.Token = getEnv("CODE_HOST_TOKEN", cfg.CodeHost.Token)
	cfg.Storage.DSN = getEnv("STORAGE_DSN", cfg.Storage.DSN)

	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		cfg.Log.Level = envLevel
	}
	if envFormat := os.Getenv("LOG_FORMAT"); envFormat != "" {
		cfg.Log.Format = envFormat
	}
	if envOutput := os.Getenv("LOG_OUTPUT"); envOutput != "" {
		cfg.Log.Output = envOutput
	}
	if envDim := getEnvInt("EMBEDDING_DIMENSION", 0); envDim != 0 {
		cfg.Embedding.Dimension = envDim
	}

	return cfg
}

// Validate aggregates every missing/invalid field into a single error,
// matching the reference's all-at-once validation shape.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if c.Storage.DSN == "" {
		errs = append(errs, "STORAGE_DSN is required")
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, "embedding.dimension must be positive")
	}
	if len(c.ArchitecturalConcerns) == 0 {
		errs = append(errs, "architectural_concerns must declare at least one concern")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsKnownConcern reports whether tag is a member of the controlled
// vocabulary (case-sensitive exact match, per spec.md I3).
func (c *Config) IsKnownConcern(tag string) bool {
	for _, known := range c.ArchitecturalConcerns {
		if known == tag {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

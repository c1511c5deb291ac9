// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Queue      QueueConfig      `yaml:"queue"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	LLM        LLMConfig        `yaml:"llm"`
	Connectors ConnectorsConfig `yaml:"connectors"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
}

type QueueConfig struct {
	DataDir string `yaml:"data_dir"`
}

type PipelineConfig struct {
	ChunkSize        int           `yaml:"chunk_size"`
	Overlap          *int          `yaml:"overlap"`
	Workers          int           `yaml:"workers"`
	MaxConcurrency   int           `yaml:"max_concurrency"`
	WindowTimeout    time.Duration `yaml:"window_timeout"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
	DefaultModel     string        `yaml:"default_model"`
	DefaultModelName string        `yaml:"default_model_name"`
}

type LLMConfig struct {
	RequestsPerSecond float64        `yaml:"requests_per_second"`
	Burst             int            `yaml:"burst"`
	OpenAI            ProviderConfig `yaml:"openai"`
	Groq              ProviderConfig `yaml:"groq"`
	Anthropic         ProviderConfig `yaml:"anthropic"`
	Ollama            ProviderConfig `yaml:"ollama"`
	Gemini            GeminiConfig   `yaml:"gemini"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Model   string   `yaml:"model"`
}

type ConnectorsConfig struct {
	// RedirectBaseURL is the public base URL OAuth providers redirect to.
	RedirectBaseURL string   `yaml:"redirect_base_url"`
	Zoom            OAuthApp `yaml:"zoom"`
	GoogleMeet      OAuthApp `yaml:"google_meet"`
}

type OAuthApp struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type InboxConfig struct {
	Dir           string `yaml:"dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("MINUTES_ADDR", &c.Server.Addr)
	list("ALLOWED_ORIGINS", &c.Server.AllowedOrigins)

	str("MINUTES_STORE_DRIVER", &c.Store.Driver)
	str("MINUTES_DATA_DIR", &c.Store.DataDir)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("MINUTES_QUEUE_DIR", &c.Queue.DataDir)

	str("MINUTES_DEFAULT_MODEL", &c.Pipeline.DefaultModel)
	str("MINUTES_DEFAULT_MODEL_NAME", &c.Pipeline.DefaultModelName)

	str("OPENAI_API_KEY", &c.LLM.OpenAI.APIKey)
	str("GROQ_API_KEY", &c.LLM.Groq.APIKey)
	str("ANTHROPIC_API_KEY", &c.LLM.Anthropic.APIKey)
	str("OLLAMA_HOST", &c.LLM.Ollama.BaseURL)
	list("GEMINI_API_KEYS", &c.LLM.Gemini.APIKeys)
	if len(c.LLM.Gemini.APIKeys) == 0 {
		list("GEMINI_API_KEY", &c.LLM.Gemini.APIKeys)
	}

	boolean("FEATURE_ZOOM", &c.Connectors.Zoom.Enabled)
	str("ZOOM_CLIENT_ID", &c.Connectors.Zoom.ClientID)
	str("ZOOM_CLIENT_SECRET", &c.Connectors.Zoom.ClientSecret)
	boolean("FEATURE_GOOGLE_MEET", &c.Connectors.GoogleMeet.Enabled)
	str("GOOGLE_CLIENT_ID", &c.Connectors.GoogleMeet.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Connectors.GoogleMeet.ClientSecret)
	str("MINUTES_PUBLIC_URL", &c.Connectors.RedirectBaseURL)

	str("MINUTES_INBOX_DIR", &c.Inbox.Dir)
	str("LOG_LEVEL", &c.Logging.Level)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects impossible settings and fills defaults.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "":
		c.Store.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return fmt.Errorf("store.database_url is required for the postgres driver")
	}
	if c.Pipeline.ChunkSize < 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive")
	}
	if c.Pipeline.Overlap != nil && *c.Pipeline.Overlap < 0 {
		return fmt.Errorf("pipeline.overlap must not be negative")
	}
	if c.Pipeline.Workers < 0 || c.Pipeline.MaxConcurrency < 0 {
		return fmt.Errorf("pipeline.workers and pipeline.max_concurrency must not be negative")
	}
	if c.Connectors.Zoom.Enabled && c.Connectors.Zoom.ClientID == "" {
		return fmt.Errorf("connectors.zoom.client_id is required when zoom is enabled")
	}
	if c.Connectors.GoogleMeet.Enabled && c.Connectors.GoogleMeet.ClientID == "" {
		return fmt.Errorf("connectors.google_meet.client_id is required when google meet is enabled")
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 10
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = ".data"
	}
	if c.Queue.DataDir == "" {
		c.Queue.DataDir = c.Store.DataDir + "/tasks"
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = 5000
	}
	if c.Pipeline.Overlap == nil {
		overlap := 1000
		c.Pipeline.Overlap = &overlap
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.MaxConcurrency == 0 {
		c.Pipeline.MaxConcurrency = 4
	}
	if c.Pipeline.WindowTimeout == 0 {
		c.Pipeline.WindowTimeout = 2 * time.Minute
	}
	if c.Pipeline.JobTimeout == 0 {
		c.Pipeline.JobTimeout = 30 * time.Minute
	}
	if c.Pipeline.DefaultModel == "" {
		c.Pipeline.DefaultModel = "ollama"
	}
	c.Pipeline.DefaultModel = strings.ToLower(c.Pipeline.DefaultModel)
	if c.LLM.Burst == 0 {
		c.LLM.Burst = 1
	}
	if c.Inbox.MaxConcurrent == 0 {
		c.Inbox.MaxConcurrent = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

// OverlapValue returns the configured overlap.
func (p PipelineConfig) OverlapValue() int {
	if p.Overlap == nil {
		return 0
	}
	return *p.Overlap
}

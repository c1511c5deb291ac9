package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	neg := -1

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "empty config gets defaults", config: Config{}},
		{name: "postgres with url", config: Config{Store: StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/minutes"}}},
		{name: "postgres without url", config: Config{Store: StoreConfig{Driver: "postgres"}}, wantErr: true},
		{name: "unknown driver", config: Config{Store: StoreConfig{Driver: "mysql"}}, wantErr: true},
		{name: "negative chunk size", config: Config{Pipeline: PipelineConfig{ChunkSize: -5}}, wantErr: true},
		{name: "negative overlap", config: Config{Pipeline: PipelineConfig{Overlap: &neg}}, wantErr: true},
		{name: "zoom without client", config: Config{Connectors: ConnectorsConfig{Zoom: OAuthApp{Enabled: true}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, ".data", cfg.Store.DataDir)
	assert.Equal(t, ".data/tasks", cfg.Queue.DataDir)
	assert.Equal(t, 5000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 1000, cfg.Pipeline.OverlapValue())
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.WindowTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.JobTimeout)
	assert.Equal(t, "ollama", cfg.Pipeline.DefaultModel)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate_ZeroOverlapIsKept(t *testing.T) {
	zero := 0
	cfg := Config{Pipeline: PipelineConfig{Overlap: &zero}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.Pipeline.OverlapValue())
}

func TestLoad(t *testing.T) {
	for _, key := range []string{"MINUTES_ADDR", "MINUTES_DATA_DIR", "MINUTES_QUEUE_DIR", "MINUTES_DEFAULT_MODEL", "ALLOWED_ORIGINS", "GEMINI_API_KEYS", "GEMINI_API_KEY", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
  allowed_origins: ["http://localhost:3000"]

store:
  driver: sqlite
  data_dir: /var/lib/minutes

pipeline:
  chunk_size: 4000
  overlap: 0
  window_timeout: 90s
  default_model: Claude
  default_model_name: claude-3-5-haiku-latest

llm:
  requests_per_second: 2.5
  gemini:
    api_keys: ["k1", "k2"]

logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/var/lib/minutes", cfg.Store.DataDir)
	assert.Equal(t, "/var/lib/minutes/tasks", cfg.Queue.DataDir)
	assert.Equal(t, 4000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 0, cfg.Pipeline.OverlapValue())
	assert.Equal(t, 90*time.Second, cfg.Pipeline.WindowTimeout)
	assert.Equal(t, "claude", cfg.Pipeline.DefaultModel)
	assert.Equal(t, 2.5, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, []string{"k1", "k2"}, cfg.LLM.Gemini.APIKeys)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("MINUTES_STORE_DRIVER", "")
	t.Setenv("MINUTES_ADDR", ":7000")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GEMINI_API_KEY", "a, b ,")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FEATURE_ZOOM", "true")
	t.Setenv("ZOOM_CLIENT_ID", "zoom-id")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "sk-env", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, []string{"a", "b"}, cfg.LLM.Gemini.APIKeys)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Connectors.Zoom.Enabled)
	assert.Equal(t, "zoom-id", cfg.Connectors.Zoom.ClientID)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jupark12/meeting-minutes/config"
	"github.com/jupark12/meeting-minutes/connectors"
	"github.com/jupark12/meeting-minutes/llm"
	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/store"
	"github.com/jupark12/meeting-minutes/store/postgres"
	"github.com/jupark12/meeting-minutes/store/sqlite"
)

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Logging.Level), nil
}

// openStore connects to the configured database and brings its schema up
// to date.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = postgres.NewStore(ctx, cfg.Store.DatabaseURL)
	default:
		st, err = sqlite.NewStore(cfg.Store.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open %s store: %w", cfg.Store.Driver, err)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Store.Driver, err)
	}
	return st, nil
}

// buildLLM registers a client for every provider with credentials. Ollama
// needs none and is always available. Keys saved through /model-config
// cover providers the config file leaves without one.
func buildLLM(ctx context.Context, cfg *config.Config, settings store.SettingsStore, log logger.Logger) (*llm.Service, error) {
	limiter := llm.NewRateLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	svc := llm.NewService(limiter, cfg.Pipeline.WindowTimeout, log)

	if p := cfg.LLM.OpenAI; p.APIKey != "" {
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{Name: "openai", APIKey: p.APIKey, BaseURL: p.BaseURL, DefaultModel: p.Model})
		if err != nil {
			return nil, err
		}
		svc.Register(c, "openai")
	}

	if p := cfg.LLM.Groq; p.APIKey != "" {
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = llm.DefaultGroqBaseURL
		}
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{Name: "groq", APIKey: p.APIKey, BaseURL: baseURL, DefaultModel: p.Model})
		if err != nil {
			return nil, err
		}
		svc.Register(c, "groq")
	}

	if p := cfg.LLM.Anthropic; p.APIKey != "" {
		c, err := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, DefaultModel: p.Model})
		if err != nil {
			return nil, err
		}
		svc.Register(c, "claude", "anthropic")
	}

	if g := cfg.LLM.Gemini; len(g.APIKeys) > 0 {
		c, err := llm.NewGeminiClient(llm.GeminiConfig{APIKeys: g.APIKeys, DefaultModel: g.Model})
		if err != nil {
			return nil, err
		}
		svc.Register(c, "gemini")
	}

	p := cfg.LLM.Ollama
	svc.Register(llm.NewOllamaClient(llm.OllamaConfig{BaseURL: p.BaseURL, DefaultModel: p.Model}), "ollama")

	if settings != nil {
		keys, err := settings.ListAPIKeys(ctx)
		if err != nil {
			log.Warn(ctx, "Failed to load saved API keys: %v", err)
		}
		for provider, key := range keys {
			if key == "" || svc.HasProvider(provider) {
				continue
			}
			if err := svc.UseAPIKey(provider, key); err != nil {
				log.Warn(ctx, "Ignoring saved API key for %s: %v", provider, err)
			}
		}
	}

	log.Info(ctx, "LLM providers: %s", strings.Join(svc.Providers(), ", "))
	return svc, nil
}

func buildConnectors(cfg *config.Config) *connectors.Registry {
	redirect := func(provider string) string {
		if cfg.Connectors.RedirectBaseURL == "" {
			return ""
		}
		return strings.TrimRight(cfg.Connectors.RedirectBaseURL, "/") + "/integrations/" + provider + "/callback"
	}

	zoom := cfg.Connectors.Zoom
	meet := cfg.Connectors.GoogleMeet
	return connectors.NewRegistry(
		connectors.NewZoom(connectors.Config{
			ClientID:     zoom.ClientID,
			ClientSecret: zoom.ClientSecret,
			RedirectURL:  redirect("zoom"),
			Enabled:      zoom.Enabled,
		}),
		connectors.NewGoogleMeet(connectors.Config{
			ClientID:     meet.ClientID,
			ClientSecret: meet.ClientSecret,
			RedirectURL:  redirect("google_meet"),
			Enabled:      meet.Enabled,
		}),
	)
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		WindowTimeout:  cfg.Pipeline.WindowTimeout,
		JobTimeout:     cfg.Pipeline.JobTimeout,
	}
}

func submitDefaults(cfg *config.Config) pipeline.Defaults {
	return pipeline.Defaults{
		Model:     cfg.Pipeline.DefaultModel,
		ModelName: cfg.Pipeline.DefaultModelName,
		ChunkSize: cfg.Pipeline.ChunkSize,
		Overlap:   cfg.Pipeline.Overlap,
	}
}

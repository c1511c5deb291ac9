package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when a request names no model.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini client. Several keys may be given;
// the client rotates to the next key when one hits its quota.
type GeminiConfig struct {
	APIKeys      []string
	DefaultModel string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// GeminiClient calls GenerateContent through the genai SDK.
type GeminiClient struct {
	mu           sync.Mutex
	apiKeys      []string
	currentKey   int
	clients      map[string]*genai.Client
	defaultModel string
	baseURL      string
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("gemini: at least one API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultGeminiModel
	}

	return &GeminiClient{
		apiKeys:      keys,
		clients:      make(map[string]*genai.Client),
		defaultModel: cfg.DefaultModel,
		baseURL:      cfg.BaseURL,
	}, nil
}

// Generate calls the model, rotating API keys on quota errors.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	var lastErr error
	for range len(c.apiKeys) {
		client, err := c.client(ctx)
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			c.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
		if err != nil {
			if isQuotaError(err) {
				c.rotateKey()
				lastErr = &RateLimitError{Provider: "gemini", Message: err.Error()}
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var text strings.Builder
			for _, part := range result.Candidates[0].Content.Parts {
				if part != nil && part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			return text.String(), nil
		}

		return "", ErrEmptyResponse
	}

	var rl *RateLimitError
	if errors.As(lastErr, &rl) {
		rl.Message = "all API keys exhausted: " + rl.Message
		return "", rl
	}
	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

// client returns the cached SDK client for the current key.
func (c *GeminiClient) client(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.apiKeys[c.currentKey]
	if cl, ok := c.clients[key]; ok {
		return cl, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	cl, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.clients[key] = cl
	return cl, nil
}

func (c *GeminiClient) rotateKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentKey = (c.currentKey + 1) % len(c.apiKeys)
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

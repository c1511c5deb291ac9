package llm

import (
	"fmt"
	"strings"
)

// NewKeyedClient builds the default client of a key-authenticated provider.
// It returns ErrUnknownProvider for providers that take no key.
func NewKeyedClient(provider, apiKey string) (Client, error) {
	switch strings.ToLower(provider) {
	case "openai":
		c, err := NewOpenAIClient(OpenAIConfig{Name: "openai", APIKey: apiKey})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "groq":
		c, err := NewOpenAIClient(OpenAIConfig{Name: "groq", APIKey: apiKey, BaseURL: DefaultGroqBaseURL})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "claude", "anthropic":
		c, err := NewAnthropicClient(AnthropicConfig{APIKey: apiKey})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gemini":
		c, err := NewGeminiClient(GeminiConfig{APIKeys: []string{apiKey}})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q takes no api key", ErrUnknownProvider, provider)
	}
}

// UseAPIKey registers a default client for provider authenticated with
// apiKey, replacing any client registered under the same names.
func (s *Service) UseAPIKey(provider, apiKey string) error {
	client, err := NewKeyedClient(provider, apiKey)
	if err != nil {
		return err
	}

	names := []string{strings.ToLower(provider)}
	if names[0] == "claude" || names[0] == "anthropic" {
		names = []string{"claude", "anthropic"}
	}
	s.Register(client, names...)
	return nil
}

// HasProvider reports whether a client is registered under provider.
func (s *Service) HasProvider(provider string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[strings.ToLower(provider)]
	return ok
}

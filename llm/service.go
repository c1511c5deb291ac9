package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jupark12/meeting-minutes/logger"
)

// Default generation settings for window summaries.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.2
)

// Service routes summarization requests to the client registered for the
// requested provider, through a shared rate limiter and a per-call timeout.
type Service struct {
	mu      sync.RWMutex
	clients map[string]Client
	limiter *RateLimiter
	timeout time.Duration
	log     logger.Logger
}

var _ Port = (*Service)(nil)

// NewService creates a Service. limiter may be nil; a zero timeout leaves
// deadlines to the caller's context.
func NewService(limiter *RateLimiter, timeout time.Duration, log logger.Logger) *Service {
	return &Service{
		clients: make(map[string]Client),
		limiter: limiter,
		timeout: timeout,
		log:     log,
	}
}

// Register makes client available under the given provider names.
func (s *Service) Register(client Client, providers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range providers {
		s.clients[strings.ToLower(p)] = client
	}
}

// Providers returns the registered provider names, sorted.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize sends one window to the selected provider and returns its raw output.
func (s *Service) Summarize(ctx context.Context, req Request) (string, error) {
	s.mu.RLock()
	client, ok := s.clients[strings.ToLower(req.Model)]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, req.Model)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := client.Generate(ctx, GenerateRequest{
		System:      SystemPrompt,
		Prompt:      UserPrompt(req.Text),
		Model:       req.ModelName,
		JSON:        true,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	})
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) && s.limiter != nil {
			s.log.Warn(ctx, "Provider %s rate limited, backing off for %s", req.Model, rl.RetryAfter)
			s.limiter.RecordRateLimitError(rl.RetryAfter)
		}
		return "", fmt.Errorf("%s/%s: %w", req.Model, req.ModelName, err)
	}

	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%s/%s: %w", req.Model, req.ModelName, ErrEmptyResponse)
	}

	return out, nil
}

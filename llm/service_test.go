package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
)

type fakeClient struct {
	mu       sync.Mutex
	requests []GenerateRequest
	out      string
	err      error
	delay    time.Duration
}

func (f *fakeClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.out, f.err
}

func TestService_RoutesByProvider(t *testing.T) {
	openai := &fakeClient{out: "from openai"}
	claude := &fakeClient{out: "from claude"}

	svc := NewService(nil, 0, logger.Nop())
	svc.Register(openai, "openai")
	svc.Register(claude, "claude", "anthropic")

	out, err := svc.Summarize(context.Background(), Request{Text: "window text", Model: "Claude", ModelName: "claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, "from claude", out)

	require.Len(t, claude.requests, 1)
	req := claude.requests[0]
	assert.Equal(t, "claude-3-haiku", req.Model)
	assert.Equal(t, SystemPrompt, req.System)
	assert.Contains(t, req.Prompt, "window text")
	assert.True(t, req.JSON)
	assert.Empty(t, openai.requests)

	assert.Equal(t, []string{"anthropic", "claude", "openai"}, svc.Providers())
}

func TestService_UnknownProvider(t *testing.T) {
	svc := NewService(nil, 0, logger.Nop())

	_, err := svc.Summarize(context.Background(), Request{Model: "groq"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestService_EmptyResponse(t *testing.T) {
	svc := NewService(nil, 0, logger.Nop())
	svc.Register(&fakeClient{out: "  \n"}, "ollama")

	_, err := svc.Summarize(context.Background(), Request{Model: "ollama"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestService_Timeout(t *testing.T) {
	svc := NewService(nil, 20*time.Millisecond, logger.Nop())
	svc.Register(&fakeClient{out: "late", delay: time.Second}, "ollama")

	_, err := svc.Summarize(context.Background(), Request{Model: "ollama"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_RateLimitOpensBackoff(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	svc := NewService(limiter, 0, logger.Nop())
	svc.Register(&fakeClient{err: &RateLimitError{Provider: "openai", RetryAfter: time.Minute}}, "openai")

	_, err := svc.Summarize(context.Background(), Request{Model: "openai"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.WithinDuration(t, time.Now().Add(time.Minute), limiter.BackoffUntil(), 5*time.Second)
}

func TestService_WrapsProviderError(t *testing.T) {
	svc := NewService(nil, 0, logger.Nop())
	svc.Register(&fakeClient{err: errors.New("remote error")}, "openai")

	_, err := svc.Summarize(context.Background(), Request{Model: "openai", ModelName: "gpt-4o"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai/gpt-4o")
}

func TestSystemPrompt_NamesEverySection(t *testing.T) {
	for _, key := range models.SectionKeys {
		assert.True(t, strings.Contains(SystemPrompt, string(key)), "missing %s", key)
		assert.Contains(t, SystemPrompt, key.Title())
	}
	assert.Contains(t, SystemPrompt, "MeetingName")
}

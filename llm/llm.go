// Package llm implements the summarization port: it turns one window of
// transcript text into raw model output expected to hold the seven-section
// summary JSON.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownProvider indicates a model selector with no registered client.
	ErrUnknownProvider = errors.New("unknown model provider")

	// ErrEmptyResponse indicates the provider answered without any text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrRateLimited indicates the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("rate limited")
)

// Port summarizes one window of transcript text.
type Port interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Request selects the provider (Model, e.g. "openai" or "claude") and the
// concrete model (ModelName) for one window.
type Request struct {
	Text      string
	Model     string
	ModelName string
}

// Client is a single provider backend.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is a provider-neutral completion request.
type GenerateRequest struct {
	System      string
	Prompt      string
	Model       string
	JSON        bool
	MaxTokens   int
	Temperature float64
}

// RateLimitError is returned by clients on HTTP 429 or quota exhaustion.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %s): %s", e.Provider, e.RetryAfter, e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

package models

import "time"

// ModelConfig is the saved summarization provider and model. Submissions
// that name no provider use it.
type ModelConfig struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	WhisperModel string    `json:"whisperModel"`
	APIKey       *string   `json:"apiKey,omitempty"`
	UpdatedAt    time.Time `json:"-"`
}

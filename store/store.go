// Package store defines the persistence contract for meetings, transcripts
// and summary jobs. Implementations live in the postgres and sqlite
// subpackages.
package store

import (
	"context"
	"errors"

	"github.com/jupark12/meeting-minutes/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// JobStore persists job ledger records.
type JobStore interface {
	// CreateJob inserts rec, replacing any record with the same process id.
	CreateJob(ctx context.Context, rec *models.JobRecord) error

	// UpdateJob overwrites the mutable fields of an existing record.
	UpdateJob(ctx context.Context, rec *models.JobRecord) error

	// GetJob returns ErrNotFound when no record exists.
	GetJob(ctx context.Context, processID string) (*models.JobRecord, error)
}

// MeetingStore persists meetings and their transcripts.
type MeetingStore interface {
	SaveMeeting(ctx context.Context, m *models.Meeting) error
	GetMeeting(ctx context.Context, id string) (*models.Meeting, error)

	// ListMeetings returns meetings newest first, without transcript segments.
	ListMeetings(ctx context.Context) ([]models.Meeting, error)

	UpdateMeetingTitle(ctx context.Context, id, title string) error
	DeleteMeeting(ctx context.Context, id string) error
	SaveTranscriptSegment(ctx context.Context, meetingID string, seg models.TranscriptSegment) error

	// SaveTranscript keeps a submitted transcript and its chunking parameters.
	SaveTranscript(ctx context.Context, rec *models.TranscriptRecord) error

	// LatestTranscript returns the most recently saved transcript of a meeting.
	LatestTranscript(ctx context.Context, meetingID string) (*models.TranscriptRecord, error)

	// SetMeetingDisplayName sets the title derived from a summary.
	SetMeetingDisplayName(ctx context.Context, meetingID, name string) error
}

// SettingsStore persists the saved model configuration and provider API keys.
type SettingsStore interface {
	// GetModelConfig returns ErrNotFound until a configuration is saved.
	GetModelConfig(ctx context.Context) (*models.ModelConfig, error)
	SaveModelConfig(ctx context.Context, cfg *models.ModelConfig) error

	// GetAPIKey returns ErrNotFound when no key is saved for provider.
	GetAPIKey(ctx context.Context, provider string) (string, error)
	SaveAPIKey(ctx context.Context, provider, apiKey string) error
	ListAPIKeys(ctx context.Context) (map[string]string, error)
}

// Store is the full persistence contract.
type Store interface {
	JobStore
	MeetingStore
	SettingsStore

	// Migrate brings the schema up to date. It is safe to call repeatedly.
	Migrate(ctx context.Context) error

	Close() error
}

package models

import (
	"fmt"
	"time"
)

// Meeting is a recorded meeting and its transcript segments.
type Meeting struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Transcripts []TranscriptSegment `json:"transcripts"`
}

// TranscriptSegment is one timestamped piece of a live transcript.
type TranscriptSegment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// TranscriptRecord keeps a submitted transcript with the parameters it was
// summarized with, so a run can be audited or replayed.
type TranscriptRecord struct {
	MeetingID string    `json:"meeting_id"`
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	ModelName string    `json:"model_name"`
	ChunkSize int       `json:"chunk_size"`
	Overlap   int       `json:"overlap"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMeetingID returns the identifier of a meeting created at t.
func NewMeetingID(t time.Time) string {
	return fmt.Sprintf("meeting-%d", t.UnixMilli())
}

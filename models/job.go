package models

import (
	"time"
)

// JobStatus represents the current state of a summarization job
type JobStatus string

const (
	StatusCreated    JobStatus = "created"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsKnown reports whether s is one of the four ledger states.
func (s JobStatus) IsKnown() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// JobRecord is the ledger entry tracking one summarization run.
// Status holds whatever value was stored, so readers can detect values
// outside the known set.
type JobRecord struct {
	ProcessID  string     `json:"process_id"`
	MeetingID  string     `json:"meeting_id,omitempty"`
	Status     JobStatus  `json:"status"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	Error      *string    `json:"error"`
	Result     *string    `json:"result"`
	ChunkCount int        `json:"chunk_count"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SummaryTask is the unit of background work handed to the worker pool.
type SummaryTask struct {
	ProcessID   string    `json:"process_id"`
	MeetingID   string    `json:"meeting_id,omitempty"`
	Text        string    `json:"text"`
	Model       string    `json:"model"`
	ModelName   string    `json:"model_name"`
	ChunkSize   int       `json:"chunk_size"`
	Overlap     int       `json:"overlap"`
	SubmittedAt time.Time `json:"submitted_at"`
}

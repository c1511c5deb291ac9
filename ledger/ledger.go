// Package ledger tracks summarization runs through the
// created → processing → completed/failed lifecycle.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/store"
)

var (
	// ErrNotFound is returned for a process id with no record.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyTerminal is returned when a completed or failed record is
	// asked to transition again.
	ErrAlreadyTerminal = errors.New("job already in a terminal state")

	// ErrMissingResult marks a completed record whose result is absent or
	// cannot be decoded.
	ErrMissingResult = errors.New("completed but summary data is missing or invalid")
)

// Notifier is told about every record the ledger writes.
type Notifier func(rec *models.JobRecord)

// Ledger writes job records through a store.JobStore.
type Ledger struct {
	store  store.JobStore
	now    func() time.Time
	notify Notifier
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithNotifier registers a callback invoked after each successful write.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notify = n }
}

// New creates a Ledger over s.
func New(s store.JobStore, opts ...Option) *Ledger {
	l := &Ledger{store: s, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create starts a new record in the created state. An existing record with
// the same process id is replaced.
func (l *Ledger) Create(ctx context.Context, processID, meetingID string) (*models.JobRecord, error) {
	now := l.now().UTC()
	rec := &models.JobRecord{
		ProcessID: processID,
		MeetingID: meetingID,
		Status:    models.StatusCreated,
		StartTime: &now,
		UpdatedAt: now,
	}
	if err := l.store.CreateJob(ctx, rec); err != nil {
		return nil, fmt.Errorf("create job %s: %w", processID, err)
	}
	l.emit(rec)
	return rec, nil
}

// MarkProcessing moves a created record to processing and records how many
// windows the run dispatches.
func (l *Ledger) MarkProcessing(ctx context.Context, processID string, chunkCount int) error {
	return l.transition(ctx, processID, func(rec *models.JobRecord) {
		rec.Status = models.StatusProcessing
		rec.ChunkCount = chunkCount
	})
}

// Complete stores doc as the result and marks the record completed.
func (l *Ledger) Complete(ctx context.Context, processID string, doc *models.SummaryDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode summary for %s: %w", processID, err)
	}
	result := string(data)

	return l.transition(ctx, processID, func(rec *models.JobRecord) {
		end := l.now().UTC()
		rec.Status = models.StatusCompleted
		rec.EndTime = &end
		rec.Result = &result
		rec.Error = nil
	})
}

// Fail stores msg and marks the record failed.
func (l *Ledger) Fail(ctx context.Context, processID, msg string) error {
	if strings.TrimSpace(msg) == "" {
		msg = "summarization failed"
	}

	return l.transition(ctx, processID, func(rec *models.JobRecord) {
		end := l.now().UTC()
		rec.Status = models.StatusFailed
		rec.EndTime = &end
		rec.Error = &msg
		rec.Result = nil
	})
}

// Get returns the current record, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, processID string) (*models.JobRecord, error) {
	rec, err := l.store.GetJob(ctx, processID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", processID, err)
	}
	return rec, nil
}

func (l *Ledger) transition(ctx context.Context, processID string, apply func(rec *models.JobRecord)) error {
	rec, err := l.Get(ctx, processID)
	if err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, processID, rec.Status)
	}

	apply(rec)
	rec.UpdatedAt = l.now().UTC()

	if err := l.store.UpdateJob(ctx, rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update job %s: %w", processID, err)
	}
	l.emit(rec)
	return nil
}

func (l *Ledger) emit(rec *models.JobRecord) {
	if l.notify != nil {
		l.notify(rec)
	}
}

// DecodeResult returns the summary stored on a completed record. A missing
// or undecodable result yields ErrMissingResult.
func DecodeResult(rec *models.JobRecord) (*models.SummaryDocument, error) {
	if rec.Result == nil {
		return nil, ErrMissingResult
	}
	if raw := strings.TrimSpace(*rec.Result); raw == "" || raw == "{}" {
		return nil, ErrMissingResult
	}

	var doc models.SummaryDocument
	if err := json.Unmarshal([]byte(*rec.Result), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingResult, err)
	}
	return &doc, nil
}

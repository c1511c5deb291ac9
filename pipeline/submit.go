package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jupark12/meeting-minutes/chunker"
	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/queue"
	"github.com/jupark12/meeting-minutes/store"
)

// JobCreator is the subset of the job ledger used at submission time.
type JobCreator interface {
	Create(ctx context.Context, processID, meetingID string) (*models.JobRecord, error)
	Fail(ctx context.Context, processID, msg string) error
}

// TranscriptSaver keeps submitted transcripts for audit and replay.
type TranscriptSaver interface {
	SaveTranscript(ctx context.Context, rec *models.TranscriptRecord) error
}

// ModelConfigSource supplies the saved provider and model.
type ModelConfigSource interface {
	GetModelConfig(ctx context.Context) (*models.ModelConfig, error)
}

// Enqueuer hands a task to the background workers.
type Enqueuer interface {
	Enqueue(task models.SummaryTask) (*queue.Entry, error)
}

// Defaults fill in what a submission leaves unset. A zero ChunkSize or nil
// Overlap take the chunker defaults.
type Defaults struct {
	Model     string
	ModelName string
	ChunkSize int
	Overlap   *int
}

// SubmitRequest describes one summarization run. Nil ChunkSize or Overlap
// take the defaults; explicit values are validated by the run itself.
type SubmitRequest struct {
	// ProcessID defaults to MeetingID, or a new uuid when both are empty.
	ProcessID string
	MeetingID string
	Text      string
	Model     string
	ModelName string
	ChunkSize *int
	Overlap   *int
}

// Submitter records a job and queues it without waiting for the run.
type Submitter struct {
	ledger      JobCreator
	transcripts TranscriptSaver
	queue       Enqueuer
	defaults    Defaults
	overlap     int
	modelConfig ModelConfigSource
	now         func() time.Time
	log         logger.Logger
}

// NewSubmitter creates a Submitter. transcripts may be nil.
func NewSubmitter(l JobCreator, transcripts TranscriptSaver, q Enqueuer, defaults Defaults, log logger.Logger) *Submitter {
	if defaults.ChunkSize == 0 {
		defaults.ChunkSize = chunker.DefaultChunkSize
	}
	overlap := chunker.DefaultOverlap
	if defaults.Overlap != nil {
		overlap = *defaults.Overlap
	}
	return &Submitter{
		ledger:      l,
		transcripts: transcripts,
		queue:       q,
		defaults:    defaults,
		overlap:     overlap,
		now:         time.Now,
		log:         log,
	}
}

// SetModelConfig makes the saved model configuration the default for
// submissions that name no provider. Static defaults apply until one is saved.
func (s *Submitter) SetModelConfig(src ModelConfigSource) {
	s.modelConfig = src
}

// Task builds the task a submission would run, applying defaults.
func (s *Submitter) Task(ctx context.Context, req SubmitRequest) models.SummaryTask {
	task := models.SummaryTask{
		ProcessID:   req.ProcessID,
		MeetingID:   req.MeetingID,
		Text:        req.Text,
		Model:       strings.ToLower(strings.TrimSpace(req.Model)),
		ModelName:   strings.TrimSpace(req.ModelName),
		ChunkSize:   s.defaults.ChunkSize,
		Overlap:     s.overlap,
		SubmittedAt: s.now().UTC(),
	}
	if task.ProcessID == "" {
		task.ProcessID = req.MeetingID
	}
	if task.ProcessID == "" {
		task.ProcessID = uuid.New().String()
	}
	if task.Model == "" {
		provider, name := s.defaultModel(ctx)
		task.Model = provider
		if task.ModelName == "" {
			task.ModelName = name
		}
	}
	if req.ChunkSize != nil {
		task.ChunkSize = *req.ChunkSize
	}
	if req.Overlap != nil {
		task.Overlap = *req.Overlap
	}
	return task
}

func (s *Submitter) defaultModel(ctx context.Context) (provider, name string) {
	if s.modelConfig != nil {
		cfg, err := s.modelConfig.GetModelConfig(ctx)
		switch {
		case err == nil && strings.TrimSpace(cfg.Provider) != "":
			return strings.ToLower(strings.TrimSpace(cfg.Provider)), strings.TrimSpace(cfg.Model)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			s.log.Warn(ctx, "Failed to load saved model config, using defaults: %v", err)
		}
	}
	return s.defaults.Model, s.defaults.ModelName
}

// Submit creates the ledger record, stores the transcript and queues the
// run. It returns the process id as soon as the task is queued. Input
// problems such as an empty transcript are not rejected here: the run fails
// the job and the ledger reports why.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	task := s.Task(ctx, req)

	if _, err := s.ledger.Create(ctx, task.ProcessID, task.MeetingID); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if s.transcripts != nil && task.MeetingID != "" {
		err := s.transcripts.SaveTranscript(ctx, &models.TranscriptRecord{
			MeetingID: task.MeetingID,
			Text:      task.Text,
			Model:     task.Model,
			ModelName: task.ModelName,
			ChunkSize: task.ChunkSize,
			Overlap:   task.Overlap,
			CreatedAt: task.SubmittedAt,
		})
		if err != nil {
			s.log.Warn(ctx, "Failed to save transcript for %s: %v", task.MeetingID, err)
		}
	}

	if _, err := s.queue.Enqueue(task); err != nil {
		if ferr := s.ledger.Fail(ctx, task.ProcessID, "failed to queue summary: "+err.Error()); ferr != nil {
			s.log.Error(ctx, "Failed to mark %s failed: %v", task.ProcessID, ferr)
		}
		return "", fmt.Errorf("enqueue %s: %w", task.ProcessID, err)
	}

	s.log.Info(ctx, "Submitted %s (%d chars, model %s/%s)", task.ProcessID, len(task.Text), task.Model, task.ModelName)
	return task.ProcessID, nil
}

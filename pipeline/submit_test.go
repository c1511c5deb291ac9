package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupark12/meeting-minutes/chunker"
	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/queue"
)

type failingQueue struct{}

func (failingQueue) Enqueue(models.SummaryTask) (*queue.Entry, error) {
	return nil, errors.New("spool directory is read-only")
}

func intPtr(v int) *int { return &v }

func setupSubmitter(t *testing.T, f *fixture) (*Submitter, *queue.TaskQueue) {
	t.Helper()
	q, err := queue.NewTaskQueue(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	s := NewSubmitter(f.ledger, f.store, q, Defaults{Model: "ollama", ModelName: "llama3.2"}, logger.Nop())
	return s, q
}

func TestSubmitter_SubmitQueuesTask(t *testing.T) {
	f := setupFixture(t)
	s, q := setupSubmitter(t, f)
	ctx := context.Background()

	processID, err := s.Submit(ctx, SubmitRequest{
		MeetingID: "meeting-42",
		Text:      "Alice: let's ship on Friday.",
		Model:     "OpenAI",
		ModelName: "gpt-4o",
		ChunkSize: intPtr(2000),
	})
	require.NoError(t, err)
	assert.Equal(t, "meeting-42", processID)

	rec := f.job(t, processID)
	assert.Equal(t, models.StatusCreated, rec.Status)
	assert.Equal(t, "meeting-42", rec.MeetingID)
	assert.NotNil(t, rec.StartTime)

	entry, err := q.Dequeue("w")
	require.NoError(t, err)
	assert.Equal(t, "meeting-42", entry.Task.ProcessID)
	assert.Equal(t, "openai", entry.Task.Model)
	assert.Equal(t, "gpt-4o", entry.Task.ModelName)
	assert.Equal(t, 2000, entry.Task.ChunkSize)
	assert.Equal(t, 1000, entry.Task.Overlap)

	saved, err := f.store.LatestTranscript(ctx, "meeting-42")
	require.NoError(t, err)
	assert.Equal(t, "Alice: let's ship on Friday.", saved.Text)
	assert.Equal(t, 2000, saved.ChunkSize)
}

func TestSubmitter_DefaultsAndDetachedIDs(t *testing.T) {
	f := setupFixture(t)
	s, q := setupSubmitter(t, f)

	processID, err := s.Submit(context.Background(), SubmitRequest{Text: "hello"})
	require.NoError(t, err)
	_, err = uuid.Parse(processID)
	assert.NoError(t, err)

	entry, err := q.Dequeue("w")
	require.NoError(t, err)
	assert.Equal(t, "ollama", entry.Task.Model)
	assert.Equal(t, "llama3.2", entry.Task.ModelName)
	assert.Equal(t, 5000, entry.Task.ChunkSize)
	assert.Empty(t, entry.Task.MeetingID)
}

func TestSubmitter_ExplicitInvalidParamsPassThrough(t *testing.T) {
	f := setupFixture(t)
	s, _ := setupSubmitter(t, f)

	task := s.Task(context.Background(), SubmitRequest{Text: "x", ChunkSize: intPtr(0), Overlap: intPtr(-5)})
	assert.Equal(t, 0, task.ChunkSize)
	assert.Equal(t, -5, task.Overlap)
}

func TestSubmitter_EmptyTextFailsOnRun(t *testing.T) {
	f := setupFixture(t)
	s, q := setupSubmitter(t, f)
	ctx := context.Background()

	processID, err := s.Submit(ctx, SubmitRequest{MeetingID: "m", Text: ""})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, f.job(t, processID).Status)

	entry, err := q.Dequeue("w")
	require.NoError(t, err)
	o := newOrchestrator(f, nil, Config{})
	assert.ErrorIs(t, o.Run(ctx, entry.Task), chunker.ErrEmptyInput)

	rec := f.job(t, processID)
	assert.Equal(t, models.StatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Equal(t, chunker.ErrEmptyInput.Error(), *rec.Error)
}

func TestSubmitter_WhitespaceTextIsQueued(t *testing.T) {
	f := setupFixture(t)
	s, q := setupSubmitter(t, f)

	_, err := s.Submit(context.Background(), SubmitRequest{MeetingID: "m", Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Pending())
}

func TestSubmitter_EnqueueFailureFailsJob(t *testing.T) {
	f := setupFixture(t)
	s := NewSubmitter(f.ledger, nil, failingQueue{}, Defaults{Model: "ollama"}, logger.Nop())

	_, err := s.Submit(context.Background(), SubmitRequest{ProcessID: "p", Text: "hello"})
	require.Error(t, err)

	rec := f.job(t, "p")
	assert.Equal(t, models.StatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "read-only")
}

func TestSubmitter_ZeroOverlapDefault(t *testing.T) {
	f := setupFixture(t)
	q, err := queue.NewTaskQueue(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	s := NewSubmitter(f.ledger, nil, q, Defaults{Model: "ollama", ChunkSize: 3000, Overlap: intPtr(0)}, logger.Nop())

	task := s.Task(context.Background(), SubmitRequest{Text: "x"})
	assert.Equal(t, 3000, task.ChunkSize)
	assert.Equal(t, 0, task.Overlap)
}

type brokenSettings struct{}

func (brokenSettings) GetModelConfig(context.Context) (*models.ModelConfig, error) {
	return nil, errors.New("database is locked")
}

func TestSubmitter_SavedModelConfigIsDefault(t *testing.T) {
	f := setupFixture(t)
	s, _ := setupSubmitter(t, f)
	s.SetModelConfig(f.store)
	ctx := context.Background()

	task := s.Task(ctx, SubmitRequest{Text: "x"})
	assert.Equal(t, "ollama", task.Model, "static defaults apply until a config is saved")
	assert.Equal(t, "llama3.2", task.ModelName)

	require.NoError(t, f.store.SaveModelConfig(ctx, &models.ModelConfig{
		Provider: "Claude", Model: "claude-3-5-sonnet-latest", WhisperModel: "large-v3",
	}))

	tests := []struct {
		name          string
		req           SubmitRequest
		wantModel     string
		wantModelName string
	}{
		{"saved config", SubmitRequest{Text: "x"}, "claude", "claude-3-5-sonnet-latest"},
		{"saved provider, explicit name", SubmitRequest{Text: "x", ModelName: "claude-3-haiku"}, "claude", "claude-3-haiku"},
		{"explicit provider wins", SubmitRequest{Text: "x", Model: "groq"}, "groq", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := s.Task(ctx, tt.req)
			assert.Equal(t, tt.wantModel, task.Model)
			assert.Equal(t, tt.wantModelName, task.ModelName)
		})
	}
}

func TestSubmitter_ModelConfigErrorFallsBack(t *testing.T) {
	f := setupFixture(t)
	s, _ := setupSubmitter(t, f)
	s.SetModelConfig(brokenSettings{})

	task := s.Task(context.Background(), SubmitRequest{Text: "x"})
	assert.Equal(t, "ollama", task.Model)
	assert.Equal(t, "llama3.2", task.ModelName)
}

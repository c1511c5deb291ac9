package worker

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/queue"
)

type recordingRunner struct {
	mu   sync.Mutex
	ran  []string
	fn   func(task models.SummaryTask) error
	done chan string
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{done: make(chan string, 16)}
}

func (r *recordingRunner) Run(ctx context.Context, task models.SummaryTask) error {
	r.mu.Lock()
	r.ran = append(r.ran, task.ProcessID)
	r.mu.Unlock()

	var err error
	if r.fn != nil {
		err = r.fn(task)
	}
	return err
}

func waitFor(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	for len(got) < n {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d notifications", len(got), n)
		}
	}
	return got
}

func TestWorker_ProcessesQueuedTasks(t *testing.T) {
	q, err := queue.NewTaskQueue(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	runner := newRecordingRunner()
	w := NewWorker("worker-1", q, runner, logger.Nop())
	w.SetPollInterval(time.Hour)
	w.SetNotifier(func(processID string) { runner.done <- processID })

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(models.SummaryTask{ProcessID: id, Text: "x"})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, waitFor(t, runner.done, 3))

	cancel()
	w.Wait()

	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 0, q.InFlight())
	assert.False(t, w.Processing())
}

func TestWorker_SurvivesRunnerPanic(t *testing.T) {
	q, err := queue.NewTaskQueue(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	runner := newRecordingRunner()
	runner.fn = func(task models.SummaryTask) error {
		if task.ProcessID == "bad" {
			panic("boom")
		}
		return nil
	}
	w := NewWorker("worker-1", q, runner, logger.Nop())
	w.SetNotifier(func(processID string) { runner.done <- processID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	_, err = q.Enqueue(models.SummaryTask{ProcessID: "bad"})
	require.NoError(t, err)
	_, err = q.Enqueue(models.SummaryTask{ProcessID: "good"})
	require.NoError(t, err)

	assert.Equal(t, []string{"bad", "good"}, waitFor(t, runner.done, 2))
}

func TestPool_PicksUpSpooledTasks(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.NewTaskQueue(dir, logger.Nop())
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := q.Enqueue(models.SummaryTask{ProcessID: id})
		require.NoError(t, err)
	}

	restarted, err := queue.NewTaskQueue(dir, logger.Nop())
	require.NoError(t, err)
	_, err = restarted.LoadTasks()
	require.NoError(t, err)

	runner := newRecordingRunner()
	pool := NewPool(2, restarted, runner, logger.Nop())
	pool.SetNotifier(func(processID string) { runner.done <- processID })
	require.Len(t, pool.Workers(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, waitFor(t, runner.done, 4))

	cancel()
	pool.Wait()
	assert.Equal(t, 0, pool.Busy())
}

func TestWorker_LogsAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		level       string
		wantRunLogs bool
	}{
		{"info", true},
		{"error", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, tt.level)

			q, err := queue.NewTaskQueue(t.TempDir(), log)
			require.NoError(t, err)
			runner := newRecordingRunner()
			w := NewWorker("worker-1", q, runner, log)
			w.SetPollInterval(time.Hour)
			w.SetNotifier(func(processID string) { runner.done <- processID })

			ctx, cancel := context.WithCancel(context.Background())
			w.Start(ctx)
			_, err = q.Enqueue(models.SummaryTask{ProcessID: "a", Text: "x"})
			require.NoError(t, err)
			waitFor(t, runner.done, 1)
			cancel()
			w.Wait()

			out := buf.String()
			assert.Equal(t, tt.wantRunLogs, strings.Contains(out, "Worker worker-1 completed task a"), out)
			assert.NotContains(t, out, "Task enqueued", "enqueue is logged at debug")
		})
	}
}

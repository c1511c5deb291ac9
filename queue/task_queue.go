package queue

import (
	"encoding/json"
	"errors"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
)

// ErrNoPendingTasks is returned by Dequeue when the queue is empty.
var ErrNoPendingTasks = errors.New("no pending tasks available")

// EntryState is the queue-level state of a task.
type EntryState string

const (
	EntryPending  EntryState = "pending"
	EntryInFlight EntryState = "in_flight"
)

// Entry wraps a task with its queue bookkeeping.
type Entry struct {
	ID         string             `json:"id"`
	Task       models.SummaryTask `json:"task"`
	State      EntryState         `json:"state"`
	WorkerID   string             `json:"worker_id,omitempty"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
	DequeuedAt time.Time          `json:"dequeued_at,omitempty"`
}

// TaskQueue manages summary tasks waiting for a worker. Every entry is
// spooled to dataDir until Done, so tasks survive a restart.
type TaskQueue struct {
	mu       sync.RWMutex
	pending  []*Entry
	inFlight map[string]*Entry
	dataDir  string
	ready    chan struct{}
	log      logger.Logger
}

// NewTaskQueue creates a new instance of TaskQueue
func NewTaskQueue(dataDir string, log logger.Logger) (*TaskQueue, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &TaskQueue{
		pending:  make([]*Entry, 0),
		inFlight: make(map[string]*Entry),
		dataDir:  dataDir,
		ready:    make(chan struct{}, 1),
		log:      log,
	}, nil
}

// Enqueue adds a new task to the queue
func (q *TaskQueue) Enqueue(task models.SummaryTask) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := &Entry{
		ID:         uuid.New().String(),
		Task:       task,
		State:      EntryPending,
		EnqueuedAt: time.Now(),
	}

	// Persist before the task becomes visible to workers
	if err := q.persistEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	q.pending = append(q.pending, entry)
	q.signal()

	q.log.Debug(context.Background(), "Task enqueued: %s for process %s", entry.ID, task.ProcessID)
	return entry, nil
}

// Dequeue gets the next pending task and marks it in flight
func (q *TaskQueue) Dequeue(workerID string) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, ErrNoPendingTasks
	}

	// FIFO
	entry := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]

	entry.State = EntryInFlight
	entry.WorkerID = workerID
	entry.DequeuedAt = time.Now()
	q.inFlight[entry.ID] = entry

	if err := q.persistEntry(entry); err != nil {
		q.log.Warn(context.Background(), "Failed to update spool for task %s: %v", entry.ID, err)
	}

	// More work remains for other workers
	if len(q.pending) > 0 {
		q.signal()
	}

	return entry, nil
}

// Done removes a finished task from the queue and the spool
func (q *TaskQueue) Done(entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.inFlight[entryID]; !exists {
		return fmt.Errorf("task %s not found in flight", entryID)
	}
	delete(q.inFlight, entryID)

	if err := os.Remove(q.entryPath(entryID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove task file: %w", err)
	}
	return nil
}

// Ready returns a channel that receives a value whenever tasks are waiting.
func (q *TaskQueue) Ready() <-chan struct{} {
	return q.ready
}

// Pending returns the number of tasks waiting for a worker
func (q *TaskQueue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// InFlight returns the number of tasks currently being processed
func (q *TaskQueue) InFlight() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.inFlight)
}

// LoadTasks loads all spooled tasks from disk. Tasks that were in flight
// when the process stopped are queued again, oldest first.
func (q *TaskQueue) LoadTasks() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.dataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read data directory: %w", err)
	}

	known := make(map[string]bool, len(q.pending)+len(q.inFlight))
	for _, e := range q.pending {
		known[e.ID] = true
	}
	for id := range q.inFlight {
		known[id] = true
	}

	var loaded []*Entry
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		entryPath := filepath.Join(q.dataDir, file.Name())
		data, err := os.ReadFile(entryPath)
		if err != nil {
			q.log.Warn(context.Background(), "Failed to read task file %s: %v", entryPath, err)
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			q.log.Warn(context.Background(), "Failed to unmarshal task data %s: %v", entryPath, err)
			continue
		}
		if entry.ID == "" || known[entry.ID] {
			continue
		}

		entry.State = EntryPending
		entry.WorkerID = ""
		entry.DequeuedAt = time.Time{}
		loaded = append(loaded, &entry)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].EnqueuedAt.Before(loaded[j].EnqueuedAt)
	})
	q.pending = append(q.pending, loaded...)
	if len(q.pending) > 0 {
		q.signal()
	}

	q.log.Info(context.Background(), "Loaded %d tasks from disk", len(loaded))
	return len(loaded), nil
}

// signal wakes one waiting worker. Callers hold q.mu.
func (q *TaskQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *TaskQueue) entryPath(entryID string) string {
	return filepath.Join(q.dataDir, entryID+".json")
}

// persistEntry saves the entry to disk
func (q *TaskQueue) persistEntry(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task data: %w", err)
	}

	tmp := q.entryPath(entry.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}
	return os.Rename(tmp, q.entryPath(entry.ID))
}

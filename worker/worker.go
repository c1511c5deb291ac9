package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/queue"
)

// DefaultPollInterval is how often an idle worker checks the queue when no
// ready signal arrives.
const DefaultPollInterval = 5 * time.Second

// Runner executes one summary task.
type Runner interface {
	Run(ctx context.Context, task models.SummaryTask) error
}

// Worker represents a processing node that consumes tasks
type Worker struct {
	ID           string
	Queue        *queue.TaskQueue
	runner       Runner
	pollInterval time.Duration
	notify       func(processID string)
	log          logger.Logger

	mu         sync.Mutex
	processing bool
	done       chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(id string, q *queue.TaskQueue, runner Runner, log logger.Logger) *Worker {
	return &Worker{
		ID:           id,
		Queue:        q,
		runner:       runner,
		pollInterval: DefaultPollInterval,
		log:          log,
		done:         make(chan struct{}),
	}
}

// SetNotifier registers a callback invoked after every finished task.
func (w *Worker) SetNotifier(fn func(processID string)) {
	w.notify = fn
}

// SetPollInterval overrides DefaultPollInterval.
func (w *Worker) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// Processing reports whether the worker is running a task.
func (w *Worker) Processing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processing
}

// Start begins processing tasks until ctx is cancelled. A task already
// running when ctx is cancelled is finished first.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info(ctx, "Worker %s starting", w.ID)

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			// Drain the queue before waiting again
			for ctx.Err() == nil && w.processNext(ctx) {
			}

			select {
			case <-ctx.Done():
				w.log.Info(ctx, "Worker %s stopping", w.ID)
				return
			case <-w.Queue.Ready():
			case <-ticker.C:
			}
		}
	}()
}

// Wait blocks until the worker loop has exited.
func (w *Worker) Wait() {
	<-w.done
}

// processNext runs one task. It returns false when the queue was empty.
func (w *Worker) processNext(ctx context.Context) bool {
	entry, err := w.Queue.Dequeue(w.ID)
	if errors.Is(err, queue.ErrNoPendingTasks) {
		return false
	}
	if err != nil {
		w.log.Error(ctx, "Worker %s failed to dequeue: %v", w.ID, err)
		return false
	}

	w.setProcessing(true)
	defer w.setProcessing(false)

	processID := entry.Task.ProcessID
	w.log.Info(ctx, "Worker %s processing task %s", w.ID, processID)

	// Tasks run to completion once dequeued; only the job timeout stops them.
	if err := w.run(context.WithoutCancel(ctx), entry.Task); err != nil {
		w.log.Warn(ctx, "Worker %s finished task %s with error: %v", w.ID, processID, err)
	} else {
		w.log.Info(ctx, "Worker %s completed task %s", w.ID, processID)
	}

	if err := w.Queue.Done(entry.ID); err != nil {
		w.log.Error(ctx, "Worker %s failed to release task %s: %v", w.ID, entry.ID, err)
	}

	if w.notify != nil {
		w.notify(processID)
	}
	return true
}

func (w *Worker) run(ctx context.Context, task models.SummaryTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.runner.Run(ctx, task)
}

func (w *Worker) setProcessing(v bool) {
	w.mu.Lock()
	w.processing = v
	w.mu.Unlock()
}

// Pool is a fixed set of workers sharing one queue.
type Pool struct {
	workers []*Worker
}

// NewPool creates n workers named worker-1..worker-n.
func NewPool(n int, q *queue.TaskQueue, runner Runner, log logger.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{workers: make([]*Worker, n)}
	for i := 0; i < n; i++ {
		p.workers[i] = NewWorker(fmt.Sprintf("worker-%d", i+1), q, runner, log)
	}
	return p
}

// Workers returns the pool's workers.
func (p *Pool) Workers() []*Worker {
	return p.workers
}

// SetNotifier sets the notifier on every worker.
func (p *Pool) SetNotifier(fn func(processID string)) {
	for _, w := range p.workers {
		w.SetNotifier(fn)
	}
}

// Start starts every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		w.Start(ctx)
	}
}

// Wait blocks until every worker has stopped.
func (p *Pool) Wait() {
	for _, w := range p.workers {
		w.Wait()
	}
}

// Busy returns the number of workers currently running a task.
func (p *Pool) Busy() int {
	n := 0
	for _, w := range p.workers {
		if w.Processing() {
			n++
		}
	}
	return n
}

// Package pipeline runs summarization jobs: it splits a transcript into
// windows, summarizes them concurrently, merges the results in window order
// and records the outcome in the job ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jupark12/meeting-minutes/chunker"
	"github.com/jupark12/meeting-minutes/ledger"
	"github.com/jupark12/meeting-minutes/llm"
	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/summary"
)

// Defaults for Config.
const (
	DefaultMaxConcurrency = 4
	DefaultWindowTimeout  = 2 * time.Minute
	DefaultJobTimeout     = 30 * time.Minute
)

// Ledger is the subset of the job ledger the orchestrator writes to.
type Ledger interface {
	MarkProcessing(ctx context.Context, processID string, chunkCount int) error
	Complete(ctx context.Context, processID string, doc *models.SummaryDocument) error
	Fail(ctx context.Context, processID, msg string) error
}

// DisplayNamer sets a meeting's title from its summary.
type DisplayNamer interface {
	SetMeetingDisplayName(ctx context.Context, meetingID, name string) error
}

// Config bounds a run.
type Config struct {
	// MaxConcurrency caps in-flight summarization calls per job.
	MaxConcurrency int

	// WindowTimeout bounds a single summarization call.
	WindowTimeout time.Duration

	// JobTimeout bounds the whole run.
	JobTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.WindowTimeout <= 0 {
		c.WindowTimeout = DefaultWindowTimeout
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
}

// Orchestrator owns one run from windowing to the terminal ledger write.
type Orchestrator struct {
	ledger     Ledger
	port       llm.Port
	names      DisplayNamer
	aggregator *summary.Aggregator
	cfg        Config
	log        logger.Logger
}

// NewOrchestrator creates an Orchestrator. names may be nil, in which case
// meeting titles are never updated.
func NewOrchestrator(l Ledger, port llm.Port, names DisplayNamer, cfg Config, log logger.Logger) *Orchestrator {
	cfg.setDefaults()
	return &Orchestrator{
		ledger:     l,
		port:       port,
		names:      names,
		aggregator: summary.NewAggregator(log),
		cfg:        cfg,
		log:        log,
	}
}

// Run processes task to a terminal ledger state. The returned error
// describes why the job failed; it has already been written to the ledger
// unless that write failed too.
func (o *Orchestrator) Run(ctx context.Context, task models.SummaryTask) (err error) {
	processID := task.ProcessID

	// Terminal writes must land even after the job deadline expires.
	writeCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			o.log.Error(ctx, "Panic while processing %s: %v\n%s", processID, r, debug.Stack())
			err = fmt.Errorf("internal error: %v", r)
			o.fail(writeCtx, processID, err.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	windows, err := chunker.Split(task.Text, task.ChunkSize, task.Overlap)
	if err != nil {
		o.log.Warn(ctx, "Rejecting %s: %v", processID, err)
		o.fail(writeCtx, processID, err.Error())
		return err
	}

	if err := o.ledger.MarkProcessing(writeCtx, processID, len(windows)); err != nil {
		if errors.Is(err, ledger.ErrAlreadyTerminal) || errors.Is(err, ledger.ErrNotFound) {
			o.log.Warn(ctx, "Skipping %s: %v", processID, err)
			return err
		}
		o.log.Error(ctx, "Failed to mark %s processing: %v", processID, err)
	}

	o.log.Info(ctx, "Processing %s: %d windows (chunk size %d, overlap %d, model %s/%s)",
		processID, len(windows), task.ChunkSize, task.Overlap, task.Model, task.ModelName)
	started := time.Now()

	results := o.dispatch(ctx, task, windows)

	doc, stats, err := o.aggregator.Merge(ctx, processID, results)
	if err != nil {
		o.log.Error(ctx, "Summary for %s failed: %v", processID, err)
		o.fail(writeCtx, processID, err.Error())
		return err
	}

	if err := o.ledger.Complete(writeCtx, processID, doc); err != nil {
		o.log.Error(ctx, "Failed to mark %s completed: %v", processID, err)
		return fmt.Errorf("complete %s: %w", processID, err)
	}
	o.log.Info(ctx, "Completed %s in %s: %d windows merged, %d skipped",
		processID, time.Since(started).Round(time.Millisecond), stats.Parsed, stats.Skipped)

	o.propagateName(writeCtx, task.MeetingID, doc.MeetingName)
	return nil
}

// dispatch summarizes every window with at most MaxConcurrency calls in
// flight. Results are stored by window index.
func (o *Orchestrator) dispatch(ctx context.Context, task models.SummaryTask, windows []chunker.Window) []summary.WindowResult {
	results := make([]summary.WindowResult, len(windows))

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxConcurrency)

	for _, w := range windows {
		w := w
		g.Go(func() error {
			results[w.Index] = o.summarizeWindow(ctx, task, w)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) summarizeWindow(ctx context.Context, task models.SummaryTask, w chunker.Window) (result summary.WindowResult) {
	result.Index = w.Index

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.WindowTimeout)
	defer cancel()

	o.log.Debug(ctx, "Summarizing window %d of %s (%d chars)", w.Index, task.ProcessID, w.Len())

	raw, err := o.port.Summarize(ctx, llm.Request{
		Text:      w.Text,
		Model:     task.Model,
		ModelName: task.ModelName,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.Raw = raw
	return result
}

func (o *Orchestrator) fail(ctx context.Context, processID, msg string) {
	if err := o.ledger.Fail(ctx, processID, msg); err != nil {
		o.log.Error(ctx, "Failed to mark %s failed: %v", processID, err)
	}
}

func (o *Orchestrator) propagateName(ctx context.Context, meetingID, name string) {
	if o.names == nil || meetingID == "" || name == "" {
		return
	}
	if err := o.names.SetMeetingDisplayName(ctx, meetingID, name); err != nil {
		o.log.Warn(ctx, "Failed to set display name of meeting %s: %v", meetingID, err)
		return
	}
	o.log.Info(ctx, "Meeting %s renamed to %q", meetingID, name)
}

// Package inbox watches a directory for transcript files and submits each
// new file for summarization as a new meeting.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/transcript"
)

// DefaultSettleDelay is how long a new file is left alone before reading,
// so writers have a chance to finish.
const DefaultSettleDelay = 500 * time.Millisecond

// MeetingSaver creates the meeting a dropped file belongs to.
type MeetingSaver interface {
	SaveMeeting(ctx context.Context, m *models.Meeting) error
}

// Submitter queues a summary run.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (string, error)
}

// Inbox turns files created in a directory into summary jobs.
type Inbox struct {
	dir         string
	meetings    MeetingSaver
	submitter   Submitter
	log         logger.Logger
	watcher     *fsnotify.Watcher
	semaphore   chan struct{}
	settleDelay time.Duration
	now         func() time.Time
	wg          sync.WaitGroup
}

// New watches dir, creating it when missing. At most maxConcurrent files
// are handled at once.
func New(dir string, meetings MeetingSaver, submitter Submitter, log logger.Logger, maxConcurrent int) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create inbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Inbox{
		dir:         dir,
		meetings:    meetings,
		submitter:   submitter,
		log:         log,
		watcher:     watcher,
		semaphore:   make(chan struct{}, maxConcurrent),
		settleDelay: DefaultSettleDelay,
		now:         time.Now,
	}, nil
}

// SetSettleDelay changes the delay before a new file is read.
func (i *Inbox) SetSettleDelay(d time.Duration) {
	i.settleDelay = d
}

// Start handles create events until ctx is cancelled, then waits for
// in-progress files.
func (i *Inbox) Start(ctx context.Context) error {
	i.log.Info(ctx, "Inbox watching %s (max concurrent: %d)", i.dir, cap(i.semaphore))

	for {
		select {
		case <-ctx.Done():
			i.wg.Wait()
			i.log.Info(ctx, "Inbox stopped")
			return ctx.Err()

		case event, ok := <-i.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !transcript.Supported(event.Name) {
				i.log.Debug(ctx, "Ignoring unsupported file: %s", event.Name)
				continue
			}

			i.log.Info(ctx, "New transcript detected: %s", event.Name)

			select {
			case i.semaphore <- struct{}{}:
				i.wg.Add(1)
				go func(path string) {
					defer i.wg.Done()
					defer func() { <-i.semaphore }()

					if i.settleDelay > 0 {
						time.Sleep(i.settleDelay)
					}
					if _, err := i.HandleFile(ctx, path); err != nil {
						i.log.Error(ctx, "Failed to process %s: %v", path, err)
					}
				}(event.Name)
			case <-ctx.Done():
				i.wg.Wait()
				return ctx.Err()
			}

		case err, ok := <-i.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			i.log.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// Stop closes the watcher.
func (i *Inbox) Stop() error {
	return i.watcher.Close()
}

// HandleFile extracts the text of path, creates a meeting titled after the
// file and submits the text. It returns the process id.
func (i *Inbox) HandleFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	text, err := transcript.Extract(path, data)
	if err != nil {
		return "", err
	}

	now := i.now().UTC()
	base := filepath.Base(path)
	meeting := &models.Meeting{
		ID:        models.NewMeetingID(now),
		Title:     strings.TrimSuffix(base, filepath.Ext(base)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := i.meetings.SaveMeeting(ctx, meeting); err != nil {
		return "", fmt.Errorf("create meeting for %s: %w", base, err)
	}

	processID, err := i.submitter.Submit(ctx, pipeline.SubmitRequest{
		MeetingID: meeting.ID,
		Text:      text,
	})
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", base, err)
	}

	i.log.Info(ctx, "Submitted %s as meeting %s", base, meeting.ID)
	return processID, nil
}

package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/transcript"
)

type recorder struct {
	mu       sync.Mutex
	meetings []*models.Meeting
	requests []pipeline.SubmitRequest
}

func (r *recorder) SaveMeeting(_ context.Context, m *models.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings = append(r.meetings, m)
	return nil
}

func (r *recorder) Submit(_ context.Context, req pipeline.SubmitRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return req.MeetingID, nil
}

func (r *recorder) submitted() []pipeline.SubmitRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.SubmitRequest(nil), r.requests...)
}

func setupInbox(t *testing.T) (*Inbox, *recorder, string) {
	t.Helper()
	dir := t.TempDir()
	rec := &recorder{}
	in, err := New(dir, rec, rec, logger.Nop(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { in.Stop() })
	in.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return in, rec, dir
}

func TestHandleFile(t *testing.T) {
	in, rec, dir := setupInbox(t)

	path := filepath.Join(dir, "standup-notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Alice: ship it\nBob: agreed\n"), 0644))

	processID, err := in.HandleFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "meeting-1700000000000", processID)

	require.Len(t, rec.meetings, 1)
	assert.Equal(t, "standup-notes", rec.meetings[0].Title)
	assert.Equal(t, "meeting-1700000000000", rec.meetings[0].ID)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "meeting-1700000000000", rec.requests[0].MeetingID)
	assert.Contains(t, rec.requests[0].Text, "Bob: agreed")
}

func TestHandleFile_EmptyFile(t *testing.T) {
	in, rec, dir := setupInbox(t)

	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	_, err := in.HandleFile(context.Background(), path)
	assert.ErrorIs(t, err, transcript.ErrNoText)
	assert.Empty(t, rec.meetings)
	assert.Empty(t, rec.requests)
}

func TestStart_SubmitsNewFiles(t *testing.T) {
	in, rec, dir := setupInbox(t)
	in.SetSettleDelay(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Start(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.mp4"), []byte("binary"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "retro.txt"), []byte("Carol: fewer meetings"), 0644))

	assert.Eventually(t, func() bool {
		return len(rec.submitted()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	reqs := rec.submitted()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Carol: fewer meetings", reqs[0].Text)
}

package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupark12/meeting-minutes/models"
)

type initialMeetings struct {
	Type     string           `json:"type"`
	Meetings []meetingSummary `json:"meetings"`
}

func dialWebSocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestWebSocket_InitialMeetingsAndJobUpdates(t *testing.T) {
	env := setupTestServer(t, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	require.NoError(t, env.store.SaveMeeting(ctx, &models.Meeting{
		ID: "meeting-1", Title: "Standup", CreatedAt: now, UpdatedAt: now,
	}))

	env.srv.wsManager.Start(ctx)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWebSocket(t, ts)

	var initial initialMeetings
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "initial_meetings", initial.Type)
	assert.Equal(t, []meetingSummary{{ID: "meeting-1", Title: "Standup"}}, initial.Meetings)

	require.Eventually(t, func() bool { return env.srv.wsManager.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec, err := env.ledger.Create(ctx, "p-1", "meeting-1")
	require.NoError(t, err)
	env.srv.wsManager.BroadcastJobUpdate(rec)

	var update map[string]interface{}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "job_update", update["type"])
	assert.Equal(t, "p-1", update["process_id"])
	assert.Equal(t, "meeting-1", update["meeting_id"])
	assert.Equal(t, string(models.StatusCreated), update["status"])

	cancel()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "clients are closed on shutdown")
	require.Eventually(t, func() bool { return env.srv.wsManager.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Connections after shutdown get their initial data and are closed.
	late := dialWebSocket(t, ts)
	require.NoError(t, late.ReadJSON(&initial))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, env.srv.wsManager.Clients())
}

func TestWebSocket_DisconnectWithoutStart(t *testing.T) {
	env := setupTestServer(t, Config{}, nil)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dialWebSocket(t, ts)
	var initial initialMeetings
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "initial_meetings", initial.Type)
	assert.Empty(t, initial.Meetings)

	require.Eventually(t, func() bool { return env.srv.wsManager.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.srv.wsManager.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

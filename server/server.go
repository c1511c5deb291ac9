// Package server exposes meetings, summary jobs and meeting connectors over
// HTTP, with a websocket feed of job updates.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jupark12/meeting-minutes/connectors"
	"github.com/jupark12/meeting-minutes/logger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/store"
	"github.com/jupark12/meeting-minutes/worker"
)

// JobReader reads job ledger records.
type JobReader interface {
	Get(ctx context.Context, processID string) (*models.JobRecord, error)
}

// Submitter queues summary runs.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (string, error)
}

// Config holds the HTTP settings.
type Config struct {
	Addr string

	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string

	MaxUploadMB int
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Meetings   store.MeetingStore
	Jobs       JobReader
	Submitter  Submitter
	Connectors *connectors.Registry

	// Settings backs /model-config and /api-key. The routes answer 503
	// when it is nil.
	Settings store.SettingsStore

	// OnAPIKey is called after an API key is saved so running providers
	// can pick it up.
	OnAPIKey func(provider, apiKey string) error

	// Pool is started and stopped with the server when set.
	Pool *worker.Pool

	WSManager *models.WebSocketManager
	Log       logger.Logger
}

// Server handles HTTP requests for meetings and summaries
type Server struct {
	cfg        Config
	meetings   store.MeetingStore
	jobs       JobReader
	submitter  Submitter
	connectors *connectors.Registry
	settings   store.SettingsStore
	onAPIKey   func(provider, apiKey string) error
	pool       *worker.Pool
	wsManager  *models.WebSocketManager
	upgrader   websocket.Upgrader
	log        logger.Logger
	now        func() time.Time
}

// NewServer creates a new server instance
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.WSManager == nil {
		deps.WSManager = models.NewWebSocketManager(deps.Log)
	}
	if deps.Connectors == nil {
		deps.Connectors = connectors.NewRegistry()
	}

	s := &Server{
		cfg:        cfg,
		meetings:   deps.Meetings,
		jobs:       deps.Jobs,
		submitter:  deps.Submitter,
		connectors: deps.Connectors,
		settings:   deps.Settings,
		onAPIKey:   deps.OnAPIKey,
		pool:       deps.Pool,
		wsManager:  deps.WSManager,
		log:        deps.Log,
		now:        time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}

	if s.pool != nil {
		s.pool.SetNotifier(s.notifyJobUpdate)
	}
	return s
}

// notifyJobUpdate re-broadcasts a job's record once a worker is done with
// it, so clients see the final state even if a transition update was dropped.
func (s *Server) notifyJobUpdate(processID string) {
	rec, err := s.jobs.Get(context.Background(), processID)
	if err != nil {
		s.log.Warn(context.Background(), "Failed to get job %s for notification: %v", processID, err)
		return
	}
	s.wsManager.BroadcastJobUpdate(rec)
}

// Handler returns the routed handler wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /meetings", s.handleListMeetings)
	mux.HandleFunc("GET /get-meetings", s.handleListMeetings)
	mux.HandleFunc("POST /meetings", s.handleCreateMeeting)
	mux.HandleFunc("GET /meetings/{id}", s.handleGetMeeting)
	mux.HandleFunc("DELETE /meetings/{id}", s.handleDeleteMeeting)
	mux.HandleFunc("POST /delete-meeting", s.handleDeleteMeetingLegacy)
	mux.HandleFunc("POST /meetings/{id}/title", s.handleSaveTitle)
	mux.HandleFunc("POST /save-meeting-title", s.handleSaveTitleLegacy)

	mux.HandleFunc("POST /meetings/{id}/summary", s.handleProcessTranscript)
	mux.HandleFunc("POST /process-transcript", s.handleProcessTranscriptLegacy)
	mux.HandleFunc("POST /meetings/{id}/summary/regenerate", s.handleRegenerateSummary)
	mux.HandleFunc("GET /meetings/{id}/summary", s.handleGetSummary)
	mux.HandleFunc("GET /get-summary/{id}", s.handleGetSummary)
	mux.HandleFunc("POST /summary/async", s.handleAsyncSummary)
	mux.HandleFunc("GET /summary/async/{id}", s.handleGetAsyncSummary)

	mux.HandleFunc("GET /integrations", s.handleListIntegrations)
	mux.HandleFunc("GET /integrations/{provider}/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /integrations/{provider}/token", s.handleExchangeToken)
	mux.HandleFunc("POST /integrations/{provider}/join", s.handleJoinMeeting)

	mux.HandleFunc("GET /model-config", s.handleGetModelConfig)
	mux.HandleFunc("POST /model-config", s.handleSaveModelConfig)
	mux.HandleFunc("GET /api-key/{provider}", s.handleGetAPIKey)

	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.corsMiddleware(mux)
}

// Start serves HTTP and runs the worker pool until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.wsManager.Start(ctx)
	if s.pool != nil {
		s.pool.Start(ctx)
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "HTTP server listening on %s", s.cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(ctx, "Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error(ctx, "HTTP shutdown failed: %v", err)
	}

	if s.pool != nil {
		s.log.Info(ctx, "Waiting for workers to finish...")
		s.pool.Wait()
	}
	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(s.cfg.AllowedOrigins) == 0 || contains(s.cfg.AllowedOrigins, "*") {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && contains(s.cfg.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control, Pragma, Expires")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 || contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return contains(s.cfg.AllowedOrigins, origin)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError replies with {"detail": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// Package postgres implements store.Store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
    id         TEXT PRIMARY KEY,
    meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
    text       TEXT NOT NULL,
    timestamp  TEXT NOT NULL,
    seq        INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcripts_meeting ON transcripts(meeting_id, seq);

CREATE TABLE IF NOT EXISTS summary_processes (
    process_id  TEXT PRIMARY KEY,
    meeting_id  TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    start_time  TIMESTAMPTZ,
    end_time    TIMESTAMPTZ,
    error       TEXT,
    result      TEXT,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summary_processes_meeting ON summary_processes(meeting_id);

CREATE TABLE IF NOT EXISTS transcript_records (
    id         BIGSERIAL PRIMARY KEY,
    meeting_id TEXT NOT NULL,
    text       TEXT NOT NULL,
    model      TEXT NOT NULL,
    model_name TEXT NOT NULL,
    chunk_size INTEGER NOT NULL,
    overlap    INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcript_records_meeting ON transcript_records(meeting_id);

CREATE TABLE IF NOT EXISTS model_config (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    whisper_model TEXT NOT NULL DEFAULT '',
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
    provider   TEXT PRIMARY KEY,
    api_key    TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore connects to databaseURL.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreFromPool wraps an existing pool.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// CreateJob inserts or replaces the record for rec.ProcessID.
func (s *Store) CreateJob(ctx context.Context, rec *models.JobRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO summary_processes
			(process_id, meeting_id, status, start_time, end_time, error, result, chunk_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (process_id) DO UPDATE SET
			meeting_id = EXCLUDED.meeting_id,
			status = EXCLUDED.status,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			error = EXCLUDED.error,
			result = EXCLUDED.result,
			chunk_count = EXCLUDED.chunk_count,
			updated_at = EXCLUDED.updated_at
	`, rec.ProcessID, rec.MeetingID, string(rec.Status), rec.StartTime, rec.EndTime,
		rec.Error, rec.Result, rec.ChunkCount, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating job %s: %w", rec.ProcessID, err)
	}
	return nil
}

// UpdateJob overwrites the mutable fields of an existing record.
func (s *Store) UpdateJob(ctx context.Context, rec *models.JobRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE summary_processes SET
			status = $1, start_time = $2, end_time = $3, error = $4, result = $5, chunk_count = $6, updated_at = $7
		WHERE process_id = $8
	`, string(rec.Status), rec.StartTime, rec.EndTime, rec.Error, rec.Result, rec.ChunkCount, rec.UpdatedAt, rec.ProcessID)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", rec.ProcessID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetJob returns the record for processID.
func (s *Store) GetJob(ctx context.Context, processID string) (*models.JobRecord, error) {
	var (
		rec    models.JobRecord
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT process_id, meeting_id, status, start_time, end_time, error, result, chunk_count, updated_at
		FROM summary_processes WHERE process_id = $1
	`, processID).Scan(&rec.ProcessID, &rec.MeetingID, &status, &rec.StartTime, &rec.EndTime,
		&rec.Error, &rec.Result, &rec.ChunkCount, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", processID, err)
	}
	rec.Status = models.JobStatus(status)
	return &rec, nil
}

// SaveMeeting upserts m and replaces its transcript segments.
func (s *Store) SaveMeeting(ctx context.Context, m *models.Meeting) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO meetings (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = EXCLUDED.updated_at
	`, m.ID, m.Title, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving meeting %s: %w", m.ID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM transcripts WHERE meeting_id = $1", m.ID); err != nil {
		return fmt.Errorf("clearing transcripts of %s: %w", m.ID, err)
	}

	batch := &pgx.Batch{}
	for i, seg := range m.Transcripts {
		batch.Queue(`INSERT INTO transcripts (id, meeting_id, text, timestamp, seq) VALUES ($1, $2, $3, $4, $5)`,
			seg.ID, m.ID, seg.Text, seg.Timestamp, i)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("saving transcripts of %s: %w", m.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetMeeting returns the meeting with its transcript segments in order.
func (s *Store) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	var m models.Meeting
	err := s.pool.QueryRow(ctx,
		"SELECT id, title, created_at, updated_at FROM meetings WHERE id = $1", id,
	).Scan(&m.ID, &m.Title, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting meeting %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT id, text, timestamp FROM transcripts WHERE meeting_id = $1 ORDER BY seq, id", id)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts of %s: %w", id, err)
	}
	segments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TranscriptSegment, error) {
		var seg models.TranscriptSegment
		err := row.Scan(&seg.ID, &seg.Text, &seg.Timestamp)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning transcripts of %s: %w", id, err)
	}
	m.Transcripts = segments
	if m.Transcripts == nil {
		m.Transcripts = []models.TranscriptSegment{}
	}
	return &m, nil
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings(ctx context.Context) ([]models.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, title, created_at, updated_at FROM meetings ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	meetings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Meeting, error) {
		var m models.Meeting
		err := row.Scan(&m.ID, &m.Title, &m.CreatedAt, &m.UpdatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning meetings: %w", err)
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	return meetings, nil
}

// UpdateMeetingTitle renames a meeting.
func (s *Store) UpdateMeetingTitle(ctx context.Context, id, title string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE meetings SET title = $1, updated_at = $2 WHERE id = $3", title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating title of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetMeetingDisplayName sets the title derived from a summary.
func (s *Store) SetMeetingDisplayName(ctx context.Context, meetingID, name string) error {
	return s.UpdateMeetingTitle(ctx, meetingID, name)
}

// DeleteMeeting removes a meeting with its transcripts, stored transcript
// records and summary jobs.
func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "DELETE FROM meetings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting meeting %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.Exec(ctx, "DELETE FROM transcript_records WHERE meeting_id = $1", id); err != nil {
		return fmt.Errorf("deleting transcript records of %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM summary_processes WHERE meeting_id = $1", id); err != nil {
		return fmt.Errorf("deleting jobs of %s: %w", id, err)
	}

	return tx.Commit(ctx)
}

// SaveTranscriptSegment appends a segment to an existing meeting.
func (s *Store) SaveTranscriptSegment(ctx context.Context, meetingID string, seg models.TranscriptSegment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcripts (id, meeting_id, text, timestamp, seq)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(seq), -1) + 1 FROM transcripts WHERE meeting_id = $2))
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, timestamp = EXCLUDED.timestamp
	`, seg.ID, meetingID, seg.Text, seg.Timestamp)
	if err != nil {
		return fmt.Errorf("saving transcript %s: %w", seg.ID, err)
	}
	return nil
}

// SaveTranscript stores a submitted transcript with its parameters.
func (s *Store) SaveTranscript(ctx context.Context, rec *models.TranscriptRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_records (meeting_id, text, model, model_name, chunk_size, overlap, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.MeetingID, rec.Text, rec.Model, rec.ModelName, rec.ChunkSize, rec.Overlap, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving transcript for %s: %w", rec.MeetingID, err)
	}
	return nil
}

// LatestTranscript returns the most recent transcript record of a meeting.
func (s *Store) LatestTranscript(ctx context.Context, meetingID string) (*models.TranscriptRecord, error) {
	var rec models.TranscriptRecord
	err := s.pool.QueryRow(ctx, `
		SELECT meeting_id, text, model, model_name, chunk_size, overlap, created_at
		FROM transcript_records WHERE meeting_id = $1 ORDER BY id DESC LIMIT 1
	`, meetingID).Scan(&rec.MeetingID, &rec.Text, &rec.Model, &rec.ModelName, &rec.ChunkSize, &rec.Overlap, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript for %s: %w", meetingID, err)
	}
	return &rec, nil
}

// GetModelConfig returns the saved model configuration.
func (s *Store) GetModelConfig(ctx context.Context) (*models.ModelConfig, error) {
	var cfg models.ModelConfig
	err := s.pool.QueryRow(ctx,
		"SELECT provider, model, whisper_model, updated_at FROM model_config WHERE id = 1",
	).Scan(&cfg.Provider, &cfg.Model, &cfg.WhisperModel, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting model config: %w", err)
	}
	return &cfg, nil
}

// SaveModelConfig replaces the saved model configuration.
func (s *Store) SaveModelConfig(ctx context.Context, cfg *models.ModelConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO model_config (id, provider, model, whisper_model, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			whisper_model = EXCLUDED.whisper_model,
			updated_at = EXCLUDED.updated_at
	`, cfg.Provider, cfg.Model, cfg.WhisperModel, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving model config: %w", err)
	}
	return nil
}

// GetAPIKey returns the saved key of provider.
func (s *Store) GetAPIKey(ctx context.Context, provider string) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx,
		"SELECT api_key FROM api_keys WHERE provider = $1", strings.ToLower(provider),
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting api key for %s: %w", provider, err)
	}
	return key, nil
}

// SaveAPIKey stores or replaces the key of provider.
func (s *Store) SaveAPIKey(ctx context.Context, provider, apiKey string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (provider, api_key, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (provider) DO UPDATE SET api_key = EXCLUDED.api_key, updated_at = EXCLUDED.updated_at
	`, strings.ToLower(provider), apiKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving api key for %s: %w", provider, err)
	}
	return nil
}

// ListAPIKeys returns every saved key by provider.
func (s *Store) ListAPIKeys(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT provider, api_key FROM api_keys")
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var provider, key string
		if err := rows.Scan(&provider, &key); err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		keys[provider] = key
	}
	return keys, rows.Err()
}

// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/store"
	"github.com/jupark12/meeting-minutes/store/sqlite/migrations"
)

// DBFile is the database file name inside the data directory.
const DBFile = "minutes.db"

// Store is a SQLite-backed store.Store.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// NewStore opens (creating if needed) the database in dataDir and applies
// pending migrations.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = ".data"
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies every embedded *.up.sql file newer than the recorded
// schema version.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx, migrations.FS)
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Jobs ====================

// CreateJob inserts or replaces the record for rec.ProcessID.
func (s *Store) CreateJob(ctx context.Context, rec *models.JobRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summary_processes
			(process_id, meeting_id, status, start_time, end_time, error, result, chunk_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(process_id) DO UPDATE SET
			meeting_id = excluded.meeting_id,
			status = excluded.status,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			error = excluded.error,
			result = excluded.result,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`,
		rec.ProcessID, rec.MeetingID, string(rec.Status),
		formatTimePtr(rec.StartTime), formatTimePtr(rec.EndTime),
		nullString(rec.Error), nullString(rec.Result),
		rec.ChunkCount, formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating job %s: %w", rec.ProcessID, err)
	}
	return nil
}

// UpdateJob overwrites the mutable fields of an existing record.
func (s *Store) UpdateJob(ctx context.Context, rec *models.JobRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE summary_processes SET
			status = ?, start_time = ?, end_time = ?, error = ?, result = ?, chunk_count = ?, updated_at = ?
		WHERE process_id = ?
	`,
		string(rec.Status), formatTimePtr(rec.StartTime), formatTimePtr(rec.EndTime),
		nullString(rec.Error), nullString(rec.Result), rec.ChunkCount, formatTime(rec.UpdatedAt),
		rec.ProcessID,
	)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", rec.ProcessID, err)
	}
	return requireRow(res)
}

// GetJob returns the record for processID.
func (s *Store) GetJob(ctx context.Context, processID string) (*models.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT process_id, meeting_id, status, start_time, end_time, error, result, chunk_count, updated_at
		FROM summary_processes WHERE process_id = ?
	`, processID)

	var (
		rec                models.JobRecord
		status             string
		startTime, endTime sql.NullString
		errMsg, result     sql.NullString
		updatedAt          string
	)
	err := row.Scan(&rec.ProcessID, &rec.MeetingID, &status, &startTime, &endTime, &errMsg, &result, &rec.ChunkCount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", processID, err)
	}

	rec.Status = models.JobStatus(status)
	if rec.StartTime, err = parseTimePtr(startTime); err != nil {
		return nil, err
	}
	if rec.EndTime, err = parseTimePtr(endTime); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	rec.Error = stringPtr(errMsg)
	rec.Result = stringPtr(result)

	return &rec, nil
}

// ==================== Meetings ====================

// SaveMeeting upserts m and replaces its transcript segments.
func (s *Store) SaveMeeting(ctx context.Context, m *models.Meeting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meetings (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at
	`, m.ID, m.Title, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving meeting %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcripts WHERE meeting_id = ?", m.ID); err != nil {
		return fmt.Errorf("clearing transcripts of %s: %w", m.ID, err)
	}
	for i, seg := range m.Transcripts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transcripts (id, meeting_id, text, timestamp, seq) VALUES (?, ?, ?, ?, ?)
		`, seg.ID, m.ID, seg.Text, seg.Timestamp, i)
		if err != nil {
			return fmt.Errorf("saving transcript %s: %w", seg.ID, err)
		}
	}

	return tx.Commit()
}

// GetMeeting returns the meeting with its transcript segments in order.
func (s *Store) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	var (
		m                    models.Meeting
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM meetings WHERE id = ?", id,
	).Scan(&m.ID, &m.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting meeting %s: %w", id, err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, timestamp FROM transcripts WHERE meeting_id = ? ORDER BY seq, rowid", id)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts of %s: %w", id, err)
	}
	defer rows.Close()

	m.Transcripts = []models.TranscriptSegment{}
	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.Text, &seg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning transcript: %w", err)
		}
		m.Transcripts = append(m.Transcripts, seg)
	}
	return &m, rows.Err()
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings(ctx context.Context) ([]models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM meetings ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	defer rows.Close()

	meetings := []models.Meeting{}
	for rows.Next() {
		var (
			m                    models.Meeting
			createdAt, updatedAt string
		)
		if err := rows.Scan(&m.ID, &m.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning meeting: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// UpdateMeetingTitle renames a meeting.
func (s *Store) UpdateMeetingTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE meetings SET title = ?, updated_at = ? WHERE id = ?", title, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating title of %s: %w", id, err)
	}
	return requireRow(res)
}

// SetMeetingDisplayName sets the title derived from a summary.
func (s *Store) SetMeetingDisplayName(ctx context.Context, meetingID, name string) error {
	return s.UpdateMeetingTitle(ctx, meetingID, name)
}

// DeleteMeeting removes a meeting with its transcripts, stored transcript
// records and summary jobs.
func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM meetings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting meeting %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_records WHERE meeting_id = ?", id); err != nil {
		return fmt.Errorf("deleting transcript records of %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM summary_processes WHERE meeting_id = ?", id); err != nil {
		return fmt.Errorf("deleting jobs of %s: %w", id, err)
	}

	return tx.Commit()
}

// SaveTranscriptSegment appends a segment to an existing meeting.
func (s *Store) SaveTranscriptSegment(ctx context.Context, meetingID string, seg models.TranscriptSegment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, meeting_id, text, timestamp, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM transcripts WHERE meeting_id = ?))
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, timestamp = excluded.timestamp
	`, seg.ID, meetingID, seg.Text, seg.Timestamp, meetingID)
	if err != nil {
		return fmt.Errorf("saving transcript %s: %w", seg.ID, err)
	}
	return nil
}

// SaveTranscript stores a submitted transcript with its parameters.
func (s *Store) SaveTranscript(ctx context.Context, rec *models.TranscriptRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript_records (meeting_id, text, model, model_name, chunk_size, overlap, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.MeetingID, rec.Text, rec.Model, rec.ModelName, rec.ChunkSize, rec.Overlap, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving transcript for %s: %w", rec.MeetingID, err)
	}
	return nil
}

// LatestTranscript returns the most recent transcript record of a meeting.
func (s *Store) LatestTranscript(ctx context.Context, meetingID string) (*models.TranscriptRecord, error) {
	var (
		rec       models.TranscriptRecord
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT meeting_id, text, model, model_name, chunk_size, overlap, created_at
		FROM transcript_records WHERE meeting_id = ? ORDER BY id DESC LIMIT 1
	`, meetingID).Scan(&rec.MeetingID, &rec.Text, &rec.Model, &rec.ModelName, &rec.ChunkSize, &rec.Overlap, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript for %s: %w", meetingID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetModelConfig returns the saved model configuration.
func (s *Store) GetModelConfig(ctx context.Context) (*models.ModelConfig, error) {
	var (
		cfg       models.ModelConfig
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT provider, model, whisper_model, updated_at FROM model_config WHERE id = 1",
	).Scan(&cfg.Provider, &cfg.Model, &cfg.WhisperModel, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting model config: %w", err)
	}
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveModelConfig replaces the saved model configuration.
func (s *Store) SaveModelConfig(ctx context.Context, cfg *models.ModelConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_config (id, provider, model, whisper_model, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			whisper_model = excluded.whisper_model,
			updated_at = excluded.updated_at
	`, cfg.Provider, cfg.Model, cfg.WhisperModel, formatTime(cfg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving model config: %w", err)
	}
	return nil
}

// GetAPIKey returns the saved key of provider.
func (s *Store) GetAPIKey(ctx context.Context, provider string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		"SELECT api_key FROM api_keys WHERE provider = ?", strings.ToLower(provider),
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting api key for %s: %w", provider, err)
	}
	return key, nil
}

// SaveAPIKey stores or replaces the key of provider.
func (s *Store) SaveAPIKey(ctx context.Context, provider, apiKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (provider, api_key, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at
	`, strings.ToLower(provider), apiKey, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving api key for %s: %w", provider, err)
	}
	return nil
}

// ListAPIKeys returns every saved key by provider.
func (s *Store) ListAPIKeys(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT provider, api_key FROM api_keys")
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

// ==================== helpers ====================

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ytget/yt-converter/internal/model"
)

// DatabaseFile is the history database name inside the data directory
const DatabaseFile = "history.db"

// Connection pragmas, applied by the driver to every pooled connection
const (
	BusyTimeoutMillis = 5000
	JournalMode       = "WAL"
)

// DefaultListLimit is used when List is called with a non-positive limit
const DefaultListLimit = 50

// Entry is one finished job
type Entry struct {
	JobID      string
	URL        string
	Path       string
	FileType   model.FileType
	State      model.JobState
	Error      string
	FinishedAt time.Time
}

// Store keeps finished jobs in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database in dataDir
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dataSourceName(filepath.Join(dataDir, DatabaseFile)))
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.InitTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}
	return s, nil
}

// dataSourceName enables WAL mode and sets the busy timeout on each connection
func dataSourceName(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)", path, BusyTimeoutMillis, JournalMode)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// InitTable creates the history table if it doesn't exist
func (s *Store) InitTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS history (
		job_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_finished_at ON history(finished_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Record stores a terminal job. Recording the same job twice replaces the entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if !e.State.IsTerminal() {
		return fmt.Errorf("job %s is not finished: %s", e.JobID, e.State)
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	query := `INSERT OR REPLACE INTO history (job_id, url, path, file_type, state, error, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, e.JobID, e.URL, e.Path, string(e.FileType), string(e.State), e.Error, e.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("recording job %s: %w", e.JobID, err)
	}
	return nil
}

// List returns up to limit entries, newest first
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT job_id, url, path, file_type, state, error, finished_at FROM history ORDER BY finished_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			fileType   string
			state      string
			errText    sql.NullString
			finishedAt int64
		)
		if err := rows.Scan(&e.JobID, &e.URL, &e.Path, &fileType, &state, &errText, &finishedAt); err != nil {
			return nil, err
		}
		e.FileType = model.FileType(fileType)
		e.State = model.JobState(state)
		e.Error = errText.String
		e.FinishedAt = time.Unix(0, finishedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

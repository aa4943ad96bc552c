package background

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	metadata      TEXT NOT NULL,
	original_url  TEXT NOT NULL,
	state         TEXT NOT NULL,
	relative_path TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	scheduled_at  INTEGER NOT NULL,
	finished_at   INTEGER
);
CREATE INDEX IF NOT EXISTS records_state ON records(state);
`

// SQLStore keeps records in a SQLite database. WAL mode and a busy timeout
// let several processes share the file; Finish is a single conditional
// UPDATE, so a final status is written at most once.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens or creates the database at path.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("background: sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("background: create database dir: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + filepath.ToSlash(path) + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("background: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("background: ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("background: create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Create(ctx context.Context, rec *Record) error {
	meta, err := json.Marshal(&rec.Metadata)
	if err != nil {
		return fmt.Errorf("background: marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, metadata, original_url, state, scheduled_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		rec.ID, string(meta), rec.OriginalURL, StateScheduled, rec.ScheduledAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("background: insert record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, rec.ID)
	}
	return nil
}

const selectRecord = `SELECT id, metadata, original_url, state, relative_path, message, scheduled_at, finished_at FROM records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec       Record
		meta      string
		scheduled int64
		finished  sql.NullInt64
	)
	err := row.Scan(&rec.ID, &meta, &rec.OriginalURL,
		&rec.Status.State, &rec.Status.RelativePath, &rec.Status.Message,
		&scheduled, &finished)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("background: parse metadata of %s: %w", rec.ID, err)
	}
	rec.ScheduledAt = time.Unix(0, scheduled).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		rec.FinishedAt = &t
	}
	return &rec, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("background: read record: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) Finish(ctx context.Context, id string, status Status, at time.Time) (*Record, error) {
	if !status.Final() {
		return nil, fmt.Errorf("background: %q is not a final state", status.State)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET state = ?, relative_path = ?, message = ?, finished_at = ?
		 WHERE id = ? AND state = ?`,
		status.State, status.RelativePath, status.Message, at.UnixNano(), id, StateScheduled,
	)
	if err != nil {
		return nil, fmt.Errorf("background: update record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("background: update record: %w", err)
	}
	if n == 0 {
		// Either missing or already final.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFinished, id)
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY scheduled_at, id`)
	if err != nil {
		return nil, fmt.Errorf("background: list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Package history records every completed upload in a SQLite database so
// the status API can answer "what went out and when" without walking the
// event trees.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS uploads (
  video_id TEXT NOT NULL,
  ts TEXT NOT NULL,
  kind TEXT NOT NULL,
  event TEXT NOT NULL,
  title TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (video_id)
);`

const defaultListLimit = 100

// Upload is one row of the history.
type Upload struct {
	VideoID  string    `json:"video_id"`
	Ts       time.Time `json:"ts"`
	Kind     string    `json:"kind"`
	Event    string    `json:"event"`
	Title    string    `json:"title"`
	FilePath string    `json:"file_path,omitempty"`
}

// Upload kinds.
const (
	KindShort       = "short"
	KindCompilation = "compilation"
)

// Filters narrows List results.
type Filters struct {
	Kinds  []string
	Events []string
	Since  *time.Time
	Limit  int
	Asc    bool
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping() error { return s.db.Ping() }

// Record inserts one upload. A duplicate video id is ignored.
func (s *Store) Record(ctx context.Context, u Upload) error {
	const q = `INSERT INTO uploads (video_id, ts, kind, event, title, file_path)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(video_id) DO NOTHING;`
	ts := u.Ts
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, q, u.VideoID, ts.UTC().Format(time.RFC3339Nano),
		u.Kind, u.Event, u.Title, u.FilePath)
	return errors.Wrap(err, "insert upload")
}

func (s *Store) Count(ctx context.Context, filters Filters) (int64, error) {
	query, args := buildUploadQuery(filters, true)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, filters Filters) ([]Upload, error) {
	query, args := buildUploadQuery(filters, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list uploads")
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var (
			u  Upload
			ts string
		)
		if err := rows.Scan(&u.VideoID, &ts, &u.Kind, &u.Event, &u.Title, &u.FilePath); err != nil {
			return nil, errors.Wrap(err, "scan upload")
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			u.Ts = t
		}
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate uploads")
	}
	return out, nil
}

func buildUploadQuery(filters Filters, count bool) (string, []any) {
	var builder strings.Builder
	if count {
		builder.WriteString("SELECT COUNT(*) FROM uploads")
	} else {
		builder.WriteString("SELECT video_id, ts, kind, event, title, file_path FROM uploads")
	}

	var (
		conditions []string
		args       []any
	)

	if len(filters.Kinds) > 0 {
		placeholders := make([]string, 0, len(filters.Kinds))
		for _, k := range filters.Kinds {
			placeholders = append(placeholders, "?")
			args = append(args, k)
		}
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(filters.Events) > 0 {
		placeholders := make([]string, 0, len(filters.Events))
		for _, e := range filters.Events {
			placeholders = append(placeholders, "?")
			args = append(args, e)
		}
		conditions = append(conditions, fmt.Sprintf("event IN (%s)", strings.Join(placeholders, ",")))
	}

	if filters.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filters.Since.UTC().Format(time.RFC3339Nano))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	if !count {
		order := "DESC"
		if filters.Asc {
			order = "ASC"
		}
		builder.WriteString(" ORDER BY ts ")
		builder.WriteString(order)
		limit := filters.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	builder.WriteString(";")
	return builder.String(), args
}

package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// SQLiteEventStore stores runner events in SQLite.
//
// It expects an *sql.DB opened with a SQLite driver, for example
// "modernc.org/sqlite":
//
//	db, err := sql.Open("sqlite", "journal.db")
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements EventStore.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runner_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			runner_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			flow TEXT NOT NULL DEFAULT '',
			step TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runner_events_runner_id ON runner_events(runner_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.RunnerEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runner_events (runner_id, at, type, flow, step, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.RunnerID,
		at.UnixNano(),
		string(ev.Type),
		ev.Flow,
		ev.Step,
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, runnerID string) ([]api.RunnerEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT runner_id, at, type, flow, step, detail
		FROM runner_events
		WHERE runner_id = ?
		ORDER BY id ASC`, runnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteEventStore) ListRunners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT runner_id FROM runner_events ORDER BY runner_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// scanEvents reads rows of (runner_id, at, type, flow, step, detail).
func scanEvents(rows *sql.Rows) ([]api.RunnerEvent, error) {
	var out []api.RunnerEvent
	for rows.Next() {
		var (
			id     string
			atN    int64
			typ    string
			flow   string
			step   string
			detail string
		)
		if err := rows.Scan(&id, &atN, &typ, &flow, &step, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.RunnerEvent{
			RunnerID: id,
			At:       time.Unix(0, atN),
			Type:     api.EventType(typ),
			Flow:     flow,
			Step:     step,
			Detail:   detail,
		})
	}
	return out, rows.Err()
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

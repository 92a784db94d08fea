package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// PostgresEventStore is an EventStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresEventStore struct {
	db *sql.DB
}

// Ensure PostgresEventStore implements EventStore.
var _ EventStore = (*PostgresEventStore)(nil)

// NewPostgresEventStore initializes the required schema in the given
// database and returns a new PostgresEventStore.
func NewPostgresEventStore(db *sql.DB) (*PostgresEventStore, error) {
	s := &PostgresEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runner_events (
			id BIGSERIAL PRIMARY KEY,
			runner_id TEXT NOT NULL,
			at BIGINT NOT NULL,
			type TEXT NOT NULL,
			flow TEXT NOT NULL DEFAULT '',
			step TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runner_events_runner_id ON runner_events(runner_id, id);
	`)
	return err
}

func (s *PostgresEventStore) AppendEvent(ctx context.Context, ev api.RunnerEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runner_events (runner_id, at, type, flow, step, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.RunnerID,
		at.UnixNano(),
		string(ev.Type),
		ev.Flow,
		ev.Step,
		ev.Detail,
	)
	return err
}

func (s *PostgresEventStore) ListEvents(ctx context.Context, runnerID string) ([]api.RunnerEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT runner_id, at, type, flow, step, detail
		FROM runner_events
		WHERE runner_id = $1
		ORDER BY id ASC`, runnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresEventStore) ListRunners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT runner_id FROM runner_events ORDER BY runner_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

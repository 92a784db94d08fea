package cli

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/petrijr/stepflow/internal/persistence"
)

type journalFlags struct {
	sqlitePath  string
	postgresDSN string
	redisAddr   string
	redisPrefix string
}

// open returns the store selected by the flags and a function releasing it.
func (f journalFlags) open() (persistence.EventStore, func() error, error) {
	selected := 0
	for _, v := range []string{f.sqlitePath, f.postgresDSN, f.redisAddr} {
		if v != "" {
			selected++
		}
	}
	if selected != 1 {
		return nil, nil, errors.New("exactly one of --sqlite, --postgres or --redis is required")
	}

	switch {
	case f.sqlitePath != "":
		db, err := sql.Open("sqlite", f.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := persistence.NewSQLiteEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	case f.postgresDSN != "":
		db, err := sql.Open("pgx", f.postgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := persistence.NewPostgresEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		client := redis.NewClient(&redis.Options{Addr: f.redisAddr})
		return persistence.NewRedisEventStore(client, f.redisPrefix), client.Close, nil
	}
}

func newJournalCmd(outputFn func(*cobra.Command) *Output) *cobra.Command {
	var flags journalFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "journal [RUNNER_ID]",
		Short: "List journaled runners, or the events of one runner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn(cmd)

			store, closeFn, err := flags.open()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if len(args) == 0 {
				ids, err := store.ListRunners(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, len(ids))
				for i, id := range ids {
					rows[i] = []string{id}
				}
				return out.Print([]string{"RUNNER"}, rows, ids)
			}

			events, err := store.ListEvents(ctx, args[0])
			if err != nil {
				return err
			}
			type eventJSON struct {
				At     time.Time `json:"at"`
				Type   string    `json:"type"`
				Flow   string    `json:"flow"`
				Step   string    `json:"step,omitempty"`
				Detail string    `json:"detail,omitempty"`
			}
			rows := make([][]string, len(events))
			data := make([]eventJSON, len(events))
			for i, ev := range events {
				rows[i] = []string{ev.At.Format(time.RFC3339Nano), string(ev.Type), ev.Flow, ev.Step, ev.Detail}
				data[i] = eventJSON{At: ev.At, Type: string(ev.Type), Flow: ev.Flow, Step: ev.Step, Detail: ev.Detail}
			}
			return out.Print([]string{"AT", "TYPE", "FLOW", "STEP", "DETAIL"}, rows, data)
		},
	}

	cmd.Flags().StringVar(&flags.sqlitePath, "sqlite", "", "SQLite database file")
	cmd.Flags().StringVar(&flags.postgresDSN, "postgres", "", "PostgreSQL connection string")
	cmd.Flags().StringVar(&flags.redisAddr, "redis", "", "Redis address (host:port)")
	cmd.Flags().StringVar(&flags.redisPrefix, "redis-prefix", "stepflow:", "Redis key prefix")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Query timeout")
	return cmd
}

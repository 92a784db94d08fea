// Package persistence holds the append-only journals that record what
// runners did. Journals are an audit trail: runners are never restored from
// them.
package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/stepflow/pkg/api"
)

// ErrInvalidEvent is returned when an event cannot be appended.
var ErrInvalidEvent = errors.New("runner event requires a runner id and a type")

// EventStore is an append-only history store for runner events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.RunnerEvent) error
	// ListEvents returns the events of one runner in append order.
	ListEvents(ctx context.Context, runnerID string) ([]api.RunnerEvent, error)
	// ListRunners returns the ids of every runner with at least one event.
	ListRunners(ctx context.Context) ([]string, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.RunnerEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, runnerID string) ([]api.RunnerEvent, error) {
	return nil, nil
}
func (NoopEventStore) ListRunners(ctx context.Context) ([]string, error) { return nil, nil }

func validateEvent(ev api.RunnerEvent) error {
	if ev.RunnerID == "" || ev.Type == "" {
		return ErrInvalidEvent
	}
	return nil
}

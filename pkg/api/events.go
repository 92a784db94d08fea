package api

import "time"

// EventType identifies a runner journal event.
type EventType string

const (
	EventRunnerStarted   EventType = "runner.started"
	EventRunnerClosed    EventType = "runner.closed"
	EventStepEntered     EventType = "step.entered"
	EventStepTransition  EventType = "step.transitioned"
	EventStepFailed      EventType = "step.failed"
	EventActionStarted   EventType = "action.started"
	EventActionCompleted EventType = "action.completed"
)

// RunnerEvent is a minimal append-only audit record of what a runner did.
// It is intentionally small and stable; it is not a way to restore runners.
type RunnerEvent struct {
	RunnerID string
	At       time.Time
	Type     EventType

	Flow string
	Step string

	// Small, human-oriented details (e.g. target step, cause, error string).
	// Keep this low-volume: do NOT dump data partitions here.
	Detail string
}

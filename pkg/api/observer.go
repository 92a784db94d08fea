package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// RunnerInfo identifies the runner an observer callback is about.
type RunnerInfo struct {
	ID   string
	Flow string
}

// Cause names what triggered a transition.
type Cause string

const (
	CauseOutput  Cause = "output"
	CauseAction  Cause = "action"
	CauseChannel Cause = "channel"
)

// Observer receives callbacks from runners for logging and metrics.
//
// Callbacks run on the runner's loop goroutine (OnActionStart runs on the
// action goroutine). Implementations should be fast and non-blocking; heavy
// work should be done asynchronously so as not to delay the flow.
type Observer interface {
	// OnRunnerStart is called once, before the first evaluation.
	OnRunnerStart(ctx context.Context, r RunnerInfo)

	// OnStepEnter is called each time a step becomes current, including the
	// start step.
	OnStepEnter(ctx context.Context, r RunnerInfo, step string, kind StepKind)

	// OnActionStart is called before every attempt of an action body.
	OnActionStart(ctx context.Context, r RunnerInfo, step string, attempt int)

	// OnActionCompleted is called once the action body settled, after all
	// retries, for both successes and failures (err != nil).
	OnActionCompleted(ctx context.Context, r RunnerInfo, step string, err error, duration time.Duration)

	// OnTransition is called after the current step changed.
	OnTransition(ctx context.Context, r RunnerInfo, from, to string, cause Cause)

	// OnStepError is called for every StepExecutionError,
	// ChannelResolverError and UnknownStepError the runner swallows.
	OnStepError(ctx context.Context, r RunnerInfo, step string, err error)

	// OnRunnerClosed is called once from Close.
	OnRunnerClosed(ctx context.Context, r RunnerInfo)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunnerStart(ctx context.Context, r RunnerInfo)                          {}
func (NoopObserver) OnStepEnter(ctx context.Context, r RunnerInfo, step string, kind StepKind) {}
func (NoopObserver) OnActionStart(ctx context.Context, r RunnerInfo, step string, attempt int) {}
func (NoopObserver) OnActionCompleted(ctx context.Context, r RunnerInfo, step string, err error, d time.Duration) {
}
func (NoopObserver) OnTransition(ctx context.Context, r RunnerInfo, from, to string, cause Cause) {}
func (NoopObserver) OnStepError(ctx context.Context, r RunnerInfo, step string, err error)        {}
func (NoopObserver) OnRunnerClosed(ctx context.Context, r RunnerInfo)                             {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunnerStart(ctx context.Context, r RunnerInfo) {
	for _, o := range c.observers {
		o.OnRunnerStart(ctx, r)
	}
}

func (c *CompositeObserver) OnStepEnter(ctx context.Context, r RunnerInfo, step string, kind StepKind) {
	for _, o := range c.observers {
		o.OnStepEnter(ctx, r, step, kind)
	}
}

func (c *CompositeObserver) OnActionStart(ctx context.Context, r RunnerInfo, step string, attempt int) {
	for _, o := range c.observers {
		o.OnActionStart(ctx, r, step, attempt)
	}
}

func (c *CompositeObserver) OnActionCompleted(ctx context.Context, r RunnerInfo, step string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnActionCompleted(ctx, r, step, err, d)
	}
}

func (c *CompositeObserver) OnTransition(ctx context.Context, r RunnerInfo, from, to string, cause Cause) {
	for _, o := range c.observers {
		o.OnTransition(ctx, r, from, to, cause)
	}
}

func (c *CompositeObserver) OnStepError(ctx context.Context, r RunnerInfo, step string, err error) {
	for _, o := range c.observers {
		o.OnStepError(ctx, r, step, err)
	}
}

func (c *CompositeObserver) OnRunnerClosed(ctx context.Context, r RunnerInfo) {
	for _, o := range c.observers {
		o.OnRunnerClosed(ctx, r)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs runner / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunnerStart(ctx context.Context, r RunnerInfo) {
	o.Logger.InfoContext(ctx, "runner_start",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
	)
}

func (o *LoggingObserver) OnStepEnter(ctx context.Context, r RunnerInfo, step string, kind StepKind) {
	o.Logger.DebugContext(ctx, "step_enter",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
		slog.String("step", step),
		slog.String("kind", kind.String()),
	)
}

func (o *LoggingObserver) OnActionStart(ctx context.Context, r RunnerInfo, step string, attempt int) {
	o.Logger.DebugContext(ctx, "action_start",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
		slog.String("step", step),
		slog.Int("attempt", attempt),
	)
}

func (o *LoggingObserver) OnActionCompleted(ctx context.Context, r RunnerInfo, step string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "action_completed",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
		slog.String("step", step),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnTransition(ctx context.Context, r RunnerInfo, from, to string, cause Cause) {
	o.Logger.InfoContext(ctx, "step_transition",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("cause", string(cause)),
	)
}

func (o *LoggingObserver) OnStepError(ctx context.Context, r RunnerInfo, step string, err error) {
	o.Logger.ErrorContext(ctx, "step_error",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
		slog.String("step", step),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnRunnerClosed(ctx context.Context, r RunnerInfo) {
	o.Logger.InfoContext(ctx, "runner_closed",
		slog.String("flow", r.Flow),
		slog.String("runner_id", r.ID),
	)
}

// BasicMetrics collects simple counters and aggregate action durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runnersStarted      atomic.Int64
	runnersClosed       atomic.Int64
	transitions         atomic.Int64
	stepErrors          atomic.Int64
	actionsCompleted    atomic.Int64
	actionsFailed       atomic.Int64
	totalActionDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunnersStarted int64
	RunnersClosed  int64
	ActiveRunners  int64

	Transitions int64
	StepErrors  int64

	ActionsCompleted  int64
	ActionsFailed     int64
	AvgActionDuration time.Duration
}

func (m *BasicMetrics) OnRunnerStart(ctx context.Context, r RunnerInfo) {
	m.runnersStarted.Add(1)
}

func (m *BasicMetrics) OnRunnerClosed(ctx context.Context, r RunnerInfo) {
	m.runnersClosed.Add(1)
}

func (m *BasicMetrics) OnTransition(ctx context.Context, r RunnerInfo, from, to string, cause Cause) {
	m.transitions.Add(1)
}

func (m *BasicMetrics) OnStepError(ctx context.Context, r RunnerInfo, step string, err error) {
	m.stepErrors.Add(1)
}

func (m *BasicMetrics) OnActionCompleted(ctx context.Context, r RunnerInfo, step string, err error, d time.Duration) {
	// Only successful actions count toward the average duration.
	if err != nil {
		m.actionsFailed.Add(1)
		return
	}
	m.actionsCompleted.Add(1)
	m.totalActionDuration.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runnersStarted.Load()
	closed := m.runnersClosed.Load()
	completed := m.actionsCompleted.Load()
	totalNs := m.totalActionDuration.Load()

	var avg time.Duration
	if completed > 0 {
		avg = time.Duration(totalNs / completed)
	}

	return BasicMetricsSnapshot{
		RunnersStarted:    started,
		RunnersClosed:     closed,
		ActiveRunners:     started - closed,
		Transitions:       m.transitions.Load(),
		StepErrors:        m.stepErrors.Load(),
		ActionsCompleted:  completed,
		ActionsFailed:     m.actionsFailed.Load(),
		AvgActionDuration: avg,
	}
}

package stepflow

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/stepflow/internal/engine"
	"github.com/petrijr/stepflow/internal/persistence"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/channel"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Definition           = api.Definition
	Step                 = api.Step
	StepKind             = api.StepKind
	View                 = api.View
	Data                 = api.Data
	Scope                = api.Scope
	Channels             = api.Channels
	ChannelEvent         = api.ChannelEvent
	ChannelStrategy      = api.ChannelStrategy
	InputFunc            = api.InputFunc
	ActionFunc           = api.ActionFunc
	OutputFunc           = api.OutputFunc
	Resolver             = api.Resolver
	ConditionFunc        = api.ConditionFunc
	SelectorFunc         = api.SelectorFunc
	RenderPolicy         = api.RenderPolicy
	RetryPolicy          = api.RetryPolicy
	Runner               = api.Runner
	State                = api.State
	Surface              = api.Surface
	SurfaceFunc          = api.SurfaceFunc
	Frame                = api.Frame
	FrameKind            = api.FrameKind
	FallbackProps        = api.FallbackProps
	Emitter              = api.Emitter
	Observer             = api.Observer
	RunnerInfo           = api.RunnerInfo
	Cause                = api.Cause
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
	RunnerEvent          = api.RunnerEvent
	EventStore           = persistence.EventStore
)

// Channel is an observable value cell that runners can subscribe to.
type Channel[T any] = channel.Channel[T]

// NewChannel creates a Channel holding initial.
func NewChannel[T any](initial T, opts ...channel.Option) *Channel[T] {
	return channel.New(initial, opts...)
}

// Re-export common constructors.

var (
	RenderStep           = api.RenderStep
	ActionStep           = api.ActionStep
	PreservePrevious     = api.PreservePrevious
	Fallback             = api.Fallback
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export enum values for convenience.

const (
	KindRender = api.KindRender
	KindAction = api.KindAction

	FrameView      = api.FrameView
	FrameBlank     = api.FrameBlank
	FramePreserved = api.FramePreserved
	FrameFallback  = api.FrameFallback
	FrameError     = api.FrameError

	StrategySticky  = api.StrategySticky
	StrategyReplace = api.StrategyReplace
)

// Re-export the error sentinels so callers can match with errors.Is.

var (
	ErrConfiguration   = api.ErrConfiguration
	ErrUnknownStep     = api.ErrUnknownStep
	ErrStepExecution   = api.ErrStepExecution
	ErrChannelResolver = api.ErrChannelResolver
	ErrRunnerClosed    = api.ErrRunnerClosed
)

// FlowOption customizes DefineFlow.
type FlowOption func(*api.Definition)

// WithStart sets the start step. Without it DefineFlow fails.
func WithStart(step string) FlowOption {
	return func(d *api.Definition) { d.Start = step }
}

// WithChannelTransition registers the resolver invoked when the channel
// bound under key emits.
func WithChannelTransition(key string, r Resolver) FlowOption {
	return func(d *api.Definition) {
		if d.ChannelTransitions == nil {
			d.ChannelTransitions = make(map[string]api.Resolver)
		}
		d.ChannelTransitions[key] = r
	}
}

// WithInternalData sets the factory producing each runner's internal data.
func WithInternalData(factory func() Data) FlowOption {
	return func(d *api.Definition) { d.NewInternalData = factory }
}

// DefineFlow builds and validates a flow definition. The steps map is
// copied, so later edits to it do not reach the definition.
func DefineFlow(name string, steps map[string]Step, opts ...FlowOption) (Definition, error) {
	def := api.Definition{Name: name, Steps: steps}
	for _, opt := range opts {
		opt(&def)
	}
	def = def.Clone()
	if err := def.Validate(); err != nil {
		return api.Definition{}, err
	}
	return def, nil
}

// MustDefineFlow is like DefineFlow but panics on error.
func MustDefineFlow(name string, steps map[string]Step, opts ...FlowOption) Definition {
	def, err := DefineFlow(name, steps, opts...)
	if err != nil {
		panic(err)
	}
	return def
}

// RunnerOption customizes NewRunner.
type RunnerOption func(*engine.Config)

// WithChannels binds the initial channel map.
func WithChannels(c Channels) RunnerOption {
	return func(cfg *engine.Config) { cfg.Channels = c }
}

// WithChannelStrategy selects how rebinding an already bound key behaves.
// The default is StrategySticky.
func WithChannelStrategy(s ChannelStrategy) RunnerOption {
	return func(cfg *engine.Config) { cfg.Strategy = s }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(obs Observer) RunnerOption {
	return func(cfg *engine.Config) { cfg.Observer = obs }
}

// WithLogger sets the runner's logger. The default is slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(cfg *engine.Config) { cfg.Logger = l }
}

// WithID sets the runner ID. The default is a random UUID.
func WithID(id string) RunnerOption {
	return func(cfg *engine.Config) { cfg.ID = id }
}

// WithContext sets the parent context of every action the runner launches.
// Cancelling it cancels in-flight actions but does not close the runner.
func WithContext(ctx context.Context) RunnerOption {
	return func(cfg *engine.Config) { cfg.Context = ctx }
}

// WithInitialStep enters the flow at step instead of the definition's start
// step. An unknown step is rendered as a FrameError.
func WithInitialStep(step string) RunnerOption {
	return func(cfg *engine.Config) { cfg.InitialStep = step }
}

// NewRunner validates def and starts a runner that renders to surface.
// initial becomes the runner's domain data (copied).
func NewRunner(def Definition, surface Surface, initial Data, opts ...RunnerOption) (Runner, error) {
	var cfg engine.Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return engine.NewRunner(def, surface, initial, cfg)
}

// Journal constructors.
// These wrap the internal/persistence package so external callers
// never need to import internal packages.

// NewJournal returns an observer that appends every runner lifecycle event
// to store. Append failures are logged with logger (slog.Default() if nil).
func NewJournal(store EventStore, logger *slog.Logger) Observer {
	if logger == nil {
		return persistence.NewRecorder(store)
	}
	return persistence.NewRecorder(store, persistence.WithRecorderLogger(logger))
}

// NewInMemoryEventStore returns a non-durable journal store.
func NewInMemoryEventStore() EventStore {
	return persistence.NewInMemoryEventStore()
}

// NewSQLiteEventStore returns a journal store in a SQLite database.
func NewSQLiteEventStore(db *sql.DB) (EventStore, error) {
	store, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresEventStore returns a journal store in PostgreSQL.
func NewPostgresEventStore(db *sql.DB) (EventStore, error) {
	store, err := persistence.NewPostgresEventStore(db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewRedisEventStore returns a journal store in Redis under prefix
// ("stepflow:" if empty).
func NewRedisEventStore(client redis.UniversalClient, prefix string) EventStore {
	return persistence.NewRedisEventStore(client, prefix)
}

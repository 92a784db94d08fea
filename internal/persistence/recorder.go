package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/log"
)

// Recorder is an api.Observer that appends every runner callback to an
// EventStore. Append failures are logged and otherwise ignored: the
// journal never interferes with the flow.
type Recorder struct {
	store  EventStore
	logger *slog.Logger
	now    func() time.Time
}

// Ensure Recorder implements api.Observer.
var _ api.Observer = (*Recorder)(nil)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used to report append failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder returns an observer journaling into store.
func NewRecorder(store EventStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) append(ctx context.Context, info api.RunnerInfo, typ api.EventType, step, detail string) {
	ev := api.RunnerEvent{
		RunnerID: info.ID,
		At:       r.now(),
		Type:     typ,
		Flow:     info.Flow,
		Step:     step,
		Detail:   detail,
	}
	if err := r.store.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Warn("journal_append_failed",
			log.RunnerID(info.ID),
			log.FlowName(info.Flow),
			slog.String("type", string(typ)),
			log.Error(err),
		)
	}
}

func (r *Recorder) OnRunnerStart(ctx context.Context, info api.RunnerInfo) {
	r.append(ctx, info, api.EventRunnerStarted, "", "")
}

func (r *Recorder) OnStepEnter(ctx context.Context, info api.RunnerInfo, step string, kind api.StepKind) {
	r.append(ctx, info, api.EventStepEntered, step, "kind="+kind.String())
}

func (r *Recorder) OnActionStart(ctx context.Context, info api.RunnerInfo, step string, attempt int) {
	r.append(ctx, info, api.EventActionStarted, step, fmt.Sprintf("attempt=%d", attempt))
}

func (r *Recorder) OnActionCompleted(ctx context.Context, info api.RunnerInfo, step string, err error, d time.Duration) {
	detail := "duration=" + d.String()
	if err != nil {
		detail += " error=" + err.Error()
	}
	r.append(ctx, info, api.EventActionCompleted, step, detail)
}

func (r *Recorder) OnTransition(ctx context.Context, info api.RunnerInfo, from, to string, cause api.Cause) {
	r.append(ctx, info, api.EventStepTransition, from, fmt.Sprintf("to=%s cause=%s", to, cause))
}

func (r *Recorder) OnStepError(ctx context.Context, info api.RunnerInfo, step string, err error) {
	r.append(ctx, info, api.EventStepFailed, step, err.Error())
}

func (r *Recorder) OnRunnerClosed(ctx context.Context, info api.RunnerInfo) {
	r.append(ctx, info, api.EventRunnerClosed, "", "")
}

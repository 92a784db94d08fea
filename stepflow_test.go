package stepflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/internal/testutil"
)

func quiet() RunnerOption {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pages() map[string]Step {
	return map[string]Step{
		"first":  RenderStep("first-view", nil, Goto("second")),
		"second": RenderStep("second-view", nil, Stay()),
	}
}

func TestDefineFlow_Validates(t *testing.T) {
	_, err := DefineFlow("no-start", pages())
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = DefineFlow("bad-start", pages(), WithStart("missing"))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = DefineFlow("nil-resolver", pages(), WithStart("first"), WithChannelTransition("x", nil))
	require.ErrorIs(t, err, ErrConfiguration)

	def, err := DefineFlow("ok", pages(), WithStart("first"))
	require.NoError(t, err)
	assert.Equal(t, "first", def.Start)
}

func TestDefineFlow_CopiesSteps(t *testing.T) {
	steps := pages()
	def := MustDefineFlow("copy", steps, WithStart("first"))

	steps["third"] = RenderStep("third-view", nil, nil)
	delete(steps, "second")

	assert.True(t, def.HasStep("second"))
	assert.False(t, def.HasStep("third"))
}

func TestMustDefineFlow_Panics(t *testing.T) {
	assert.Panics(t, func() { MustDefineFlow("bad", pages()) })
}

func TestNewRunner_Options(t *testing.T) {
	surface := testutil.NewSurface()
	metrics := &BasicMetrics{}

	r, err := NewRunner(MustDefineFlow("opts", pages(), WithStart("first")), surface, nil,
		quiet(),
		WithID("runner-1"),
		WithInitialStep("second"),
		WithObserver(metrics),
	)
	require.NoError(t, err)
	testutil.Settle(t, r)

	assert.Equal(t, "runner-1", r.ID())
	assert.Equal(t, "second", r.CurrentStep())
	assert.Equal(t, []string{"second"}, surface.Steps())

	require.NoError(t, r.Close())
	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.RunnersStarted)
	assert.EqualValues(t, 1, snap.RunnersClosed)
}

func TestNewRunner_UnknownInitialStepRendersError(t *testing.T) {
	surface := testutil.NewSurface()
	r, err := NewRunner(MustDefineFlow("unknown", pages(), WithStart("first")), surface, nil,
		quiet(), WithInitialStep("nowhere"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	f := surface.WaitFor(t, func(f Frame) bool { return f.Kind == FrameError })
	assert.ErrorIs(t, f.Err, ErrUnknownStep)
	assert.Equal(t, "nowhere", r.CurrentStep())
}

func TestNewRunner_RequiresSurface(t *testing.T) {
	_, err := NewRunner(MustDefineFlow("s", pages(), WithStart("first")), nil, nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewRunner_ContextCancelsActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failed := make(chan error, 1)

	def := MustDefineFlow("ctx", map[string]Step{
		"wait": ActionStep(nil, Sleep(time.Hour), func(ctx context.Context, s Scope, output any) (string, error) {
			return "", nil
		}),
	}, WithStart("wait"))

	obs := &actionErrors{ch: failed}
	r, err := NewRunner(def, testutil.NewSurface(), nil, quiet(), WithContext(ctx), WithObserver(obs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.Eventually(t, r.Busy, testutil.DefaultWait, time.Millisecond)
	cancel()

	select {
	case err := <-failed:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(testutil.DefaultWait):
		t.Fatal("action was not cancelled")
	}
	require.Eventually(t, func() bool { return !r.Busy() }, testutil.DefaultWait, time.Millisecond)
}

// actionErrors forwards the error of every completed action.
type actionErrors struct {
	NoopObserver
	ch chan error
}

func (o *actionErrors) OnActionCompleted(ctx context.Context, info RunnerInfo, step string, err error, d time.Duration) {
	select {
	case o.ch <- err:
	default:
	}
}

func TestNewJournal_RecordsRunner(t *testing.T) {
	store := NewInMemoryEventStore()
	surface := testutil.NewSurface()

	r, err := NewRunner(MustDefineFlow("journaled", pages(), WithStart("first")), surface, nil,
		quiet(), WithID("j-1"), WithObserver(NewJournal(store, nil)))
	require.NoError(t, err)
	testutil.Settle(t, r)

	surface.Emit(t, "go")
	testutil.Settle(t, r)
	require.NoError(t, r.Close())

	events, err := store.ListEvents(context.Background(), "j-1")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = string(ev.Type)
	}
	assert.Equal(t, []string{
		"runner.started",
		"step.entered",
		"step.transitioned",
		"step.entered",
		"runner.closed",
	}, types)
}

package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/internal/testutil"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/channel"
)

// saveFlow renders a form, saves its output in a blocking action and thanks
// the user afterwards.
func saveFlow(policy api.RenderPolicy, release <-chan struct{}, calls *atomic.Int32) api.Definition {
	return api.Definition{
		Name:  "save",
		Start: "form",
		Steps: map[string]api.Step{
			"form": api.RenderStep("form-view", api.FromDomain("draft"), api.Store("draft", "save")),
			"save": api.ActionStep(api.FromDomain("draft"), func(ctx context.Context, input any, s api.Scope) (any, error) {
				calls.Add(1)
				select {
				case <-release:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return "saved:" + input.(string), nil
			}, api.Store("result", "thanks")).WithBusy(policy),
			"thanks": api.RenderStep("thanks-view", api.FromDomain("result"), api.Stay()),
		},
	}
}

func TestAction_RunsOncePerOccurrence(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	obs := &recordingObserver{}
	r, surface := startRunner(t, saveFlow(api.RenderPolicy{}, release, &calls), nil, Config{Observer: obs})
	testutil.Settle(t, r)

	surface.Emit(t, "draft-1")
	require.Eventually(t, r.Busy, testutil.DefaultWait, time.Millisecond)

	// Re-evaluations while busy only re-render.
	for i := 0; i < 3; i++ {
		r.Refresh()
	}
	require.Eventually(t, func() bool {
		return surface.Len() >= 5
	}, testutil.DefaultWait, time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	close(release)
	testutil.Settle(t, r)

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, "thanks", r.CurrentStep())
	require.False(t, r.Busy())

	f, _ := surface.Last()
	require.Equal(t, "saved:draft-1", f.Input)
	require.Equal(t, []transition{
		{From: "form", To: "save", Cause: api.CauseOutput},
		{From: "save", To: "thanks", Cause: api.CauseAction},
	}, obs.Transitions())
}

func TestAction_BusyNoneRendersBlank(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	r, surface := startRunner(t, saveFlow(api.RenderPolicy{}, release, &calls), nil, Config{})
	testutil.Settle(t, r)

	surface.Emit(t, "d")
	f := surface.WaitForStep(t, "save", api.FrameBlank)
	require.True(t, f.Busy)
	require.Nil(t, f.View)
	require.Nil(t, f.Emitter)

	close(release)
	testutil.Settle(t, r)
}

func TestAction_BusyPreservePrevious(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	r, surface := startRunner(t, saveFlow(api.PreservePrevious(), release, &calls), nil, Config{})
	testutil.Settle(t, r)

	surface.Emit(t, "draft")
	f := surface.WaitForStep(t, "save", api.FramePreserved)
	require.True(t, f.Busy)
	require.Equal(t, "form", f.ViewStep)
	require.Equal(t, "form-view", f.View)
	require.Equal(t, "draft", f.Input)

	// The preserved view is inert while busy.
	f.Emitter.Emit("ignored")
	r.Refresh()
	require.Eventually(t, func() bool {
		last, _ := surface.Last()
		return last.Version > f.Version
	}, testutil.DefaultWait, time.Millisecond)
	require.Equal(t, "save", r.CurrentStep())
	require.Equal(t, "draft", r.Snapshot().Domain["draft"])

	close(release)
	testutil.Settle(t, r)
	require.Equal(t, "thanks", r.CurrentStep())
	require.Equal(t, int32(1), calls.Load())
}

func TestAction_PreservePreviousWithoutRenderHistoryIsBlank(t *testing.T) {
	def := api.Definition{
		Name:  "no-history",
		Start: "load",
		Steps: map[string]api.Step{
			"load": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}, api.Stay()).WithBusy(api.PreservePrevious()),
		},
	}
	r, surface := startRunner(t, def, nil, Config{})

	f := surface.WaitForStep(t, "load", api.FrameBlank)
	require.True(t, f.Busy)
	require.NoError(t, r.Close())
}

func TestAction_BusyFallback(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	r, surface := startRunner(t, saveFlow(api.Fallback("spinner"), release, &calls), api.Data{"user": "ada"}, Config{})
	testutil.Settle(t, r)

	surface.Emit(t, "draft")
	f := surface.WaitForStep(t, "save", api.FrameFallback)
	require.True(t, f.Busy)
	require.Equal(t, "spinner", f.View)
	require.NotNil(t, f.Fallback)
	require.True(t, f.Fallback.Busy)
	require.Equal(t, "save", f.Fallback.CurrentStep)
	require.Equal(t, "draft", f.Fallback.Input)
	require.Equal(t, "ada", f.Fallback.Domain["user"])

	close(release)
	testutil.Settle(t, r)
	require.Equal(t, "thanks", r.CurrentStep())
}

func TestAction_FailureClearsBusyAndStays(t *testing.T) {
	obs := &recordingObserver{}
	def := api.Definition{
		Name:  "fail",
		Start: "charge",
		Steps: map[string]api.Step{
			"charge": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				return nil, errors.New("card declined")
			}, api.Goto("done")).WithBusy(api.Fallback("spinner")),
			"done": api.RenderStep("done-view", nil, api.Stay()),
		},
	}
	r, surface := startRunner(t, def, nil, Config{Observer: obs})
	testutil.Settle(t, r)

	require.Equal(t, "charge", r.CurrentStep())
	require.False(t, r.Busy())

	errs := obs.Errors()
	require.Len(t, errs, 1)
	var execErr *api.StepExecutionError
	require.ErrorAs(t, errs[0], &execErr)
	require.Equal(t, api.PhaseAction, execErr.Phase)
	require.EqualError(t, execErr.Err, "card declined")

	// The settled step is rendered again with busy cleared.
	f, _ := surface.Last()
	require.Equal(t, api.FrameFallback, f.Kind)
	require.False(t, f.Busy)
	require.False(t, f.Fallback.Busy)

	// No relaunch for the same occurrence.
	r.Refresh()
	testutil.Settle(t, r)
	require.Equal(t, 1, obs.completed)
}

func TestAction_InputFailureDoesNotLaunch(t *testing.T) {
	var calls atomic.Int32
	obs := &recordingObserver{}
	def := api.Definition{
		Name:  "input",
		Start: "work",
		Steps: map[string]api.Step{
			"work": api.ActionStep(func(api.Scope) (any, error) {
				return nil, errors.New("bad input")
			}, func(ctx context.Context, input any, s api.Scope) (any, error) {
				calls.Add(1)
				return nil, nil
			}, api.Stay()),
		},
	}
	r, _ := startRunner(t, def, nil, Config{Observer: obs})
	testutil.Settle(t, r)

	require.Zero(t, calls.Load())
	require.False(t, r.Busy())
	require.Len(t, obs.Errors(), 1)
	require.ErrorIs(t, obs.Errors()[0], api.ErrStepExecution)
}

func TestAction_PanicIsRecovered(t *testing.T) {
	obs := &recordingObserver{}
	def := api.Definition{
		Name:  "panic",
		Start: "work",
		Steps: map[string]api.Step{
			"work": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				panic("action bug")
			}, api.Stay()),
		},
	}
	r, _ := startRunner(t, def, nil, Config{Observer: obs})
	testutil.Settle(t, r)

	require.False(t, r.Busy())
	var panicErr *api.PanicError
	require.ErrorAs(t, obs.Errors()[0], &panicErr)
	require.Equal(t, "action bug", panicErr.Value)
}

func TestAction_RetryEventuallySucceeds(t *testing.T) {
	var calls atomic.Int32
	obs := &recordingObserver{}
	def := api.Definition{
		Name:  "retry",
		Start: "flaky",
		Steps: map[string]api.Step{
			"flaky": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				if calls.Add(1) < 3 {
					return nil, errors.New("transient")
				}
				return "ok", nil
			}, api.Store("result", "done")).WithRetry(api.RetryPolicy{
				MaxAttempts:    3,
				InitialBackoff: time.Millisecond,
			}),
			"done": api.RenderStep("done-view", api.FromDomain("result"), api.Stay()),
		},
	}
	r, _ := startRunner(t, def, nil, Config{Observer: obs})
	testutil.Settle(t, r)

	require.Equal(t, "done", r.CurrentStep())
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, []int{1, 2, 3}, obs.attempts)
	require.Empty(t, obs.Errors())
}

func TestAction_RetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	obs := &recordingObserver{}
	def := api.Definition{
		Name:  "retry",
		Start: "broken",
		Steps: map[string]api.Step{
			"broken": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				calls.Add(1)
				return nil, errors.New("permanent")
			}, api.Goto("done")).WithRetry(api.RetryPolicy{MaxAttempts: 2}),
			"done": api.RenderStep("done-view", nil, api.Stay()),
		},
	}
	r, _ := startRunner(t, def, nil, Config{Observer: obs})
	testutil.Settle(t, r)

	require.Equal(t, "broken", r.CurrentStep())
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, obs.Errors(), 1)
}

func TestAction_WritesReachRunnerData(t *testing.T) {
	def := api.Definition{
		Name:  "writes",
		Start: "work",
		Steps: map[string]api.Step{
			"work": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				s.Domain["touched"] = true
				s.Domain["items"] = []string{"a", "b"}
				s.Internal["fetched"] = 1
				delete(s.Domain, "stale")
				return s.Domain["seed"], nil
			}, func(ctx context.Context, s api.Scope, output any) (string, error) {
				// Writes are visible to the output handler.
				if s.Domain["touched"] != true {
					return "", errors.New("write not applied before output")
				}
				s.Domain["copied"] = output
				return "show", nil
			}),
			"show": api.RenderStep("show-view", api.FromDomain("items"), api.Stay()),
		},
	}
	r, surface := startRunner(t, def, api.Data{"seed": 7, "stale": "x"}, Config{})
	testutil.Settle(t, r)

	require.Equal(t, "show", r.CurrentStep())
	snap := r.Snapshot()
	require.Equal(t, true, snap.Domain["touched"])
	require.Equal(t, 7, snap.Domain["copied"])
	require.NotContains(t, snap.Domain, "stale")
	require.Equal(t, 1, snap.Internal["fetched"])

	f, _ := surface.Last()
	require.Equal(t, []string{"a", "b"}, f.Input)
}

func TestAction_FailedBodyKeepsWrites(t *testing.T) {
	def := api.Definition{
		Name:  "failed",
		Start: "work",
		Steps: map[string]api.Step{
			"work": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				s.Internal["attempted"] = true
				return nil, errors.New("boom")
			}, api.Goto("done")),
			"done": api.RenderStep("done-view", nil, api.Stay()),
		},
	}
	r, _ := startRunner(t, def, nil, Config{})
	testutil.Settle(t, r)

	require.Equal(t, "work", r.CurrentStep())
	require.Equal(t, true, r.Snapshot().Internal["attempted"])
}

func TestAction_WritesMergeWithConcurrentChanges(t *testing.T) {
	release := make(chan struct{})
	def := api.Definition{
		Name:  "merge",
		Start: "work",
		Steps: map[string]api.Step{
			"work": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				<-release
				s.Domain["fromAction"] = "a"
				return nil, nil
			}, api.Stay()),
			"edit": api.RenderStep("edit-view", nil, api.Store("fromView", "")),
		},
		ChannelTransitions: map[string]api.Resolver{
			"go": func(ctx context.Context, ev api.ChannelEvent) (string, error) {
				return "edit", nil
			},
		},
	}
	trigger := channel.New(0)
	r, surface := startRunner(t, def, api.Data{"keep": 1}, Config{
		Channels: api.Channels{"go": trigger},
	})
	require.Eventually(t, r.Busy, testutil.DefaultWait, time.Millisecond)

	trigger.Emit(1)
	surface.WaitForStep(t, "edit", api.FrameView)
	surface.Emit(t, "v")
	testutil.Settle(t, r)

	close(release)
	testutil.Settle(t, r)

	domain := r.Snapshot().Domain
	require.Equal(t, "a", domain["fromAction"])
	require.Equal(t, "v", domain["fromView"])
	require.Equal(t, 1, domain["keep"])
	require.Equal(t, "edit", r.CurrentStep())
}

func TestAction_StaleCompletionKeepsDataDropsTarget(t *testing.T) {
	release := make(chan struct{})
	obs := &recordingObserver{}

	def := api.Definition{
		Name:  "stale",
		Start: "work",
		Steps: map[string]api.Step{
			"work": api.ActionStep(nil, func(ctx context.Context, input any, s api.Scope) (any, error) {
				<-release
				s.Internal["lateWrite"] = true
				return "late", nil
			}, api.Store("result", "finished")),
			"cancelled": api.RenderStep("cancelled-view", nil, api.Stay()),
			"finished":  api.RenderStep("finished-view", nil, api.Stay()),
		},
		ChannelTransitions: map[string]api.Resolver{
			"abort": func(ctx context.Context, ev api.ChannelEvent) (string, error) {
				if ev.CurrentStep == "work" {
					return "cancelled", nil
				}
				return "", nil
			},
		},
	}

	abort := channel.New(false)
	r, surface := startRunner(t, def, nil, Config{
		Observer: obs,
		Channels: api.Channels{"abort": abort},
	})
	require.Eventually(t, r.Busy, testutil.DefaultWait, time.Millisecond)

	abort.Emit(true)
	surface.WaitForStep(t, "cancelled", api.FrameView)

	close(release)
	testutil.Settle(t, r)

	require.Equal(t, "cancelled", r.CurrentStep())
	require.Equal(t, "late", r.Snapshot().Domain["result"])
	require.Equal(t, true, r.Snapshot().Internal["lateWrite"])
	require.NotContains(t, surface.Steps(), "finished")
	require.Equal(t, []transition{{From: "work", To: "cancelled", Cause: api.CauseChannel}}, obs.Transitions())
}

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/internal/testutil"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/channel"
)

func fetchDecideFlow() api.Definition {
	return api.Definition{
		Name:  "listing",
		Start: "fetch",
		Steps: map[string]api.Step{
			"fetch": api.ActionStep(api.FromDomain("items"), func(ctx context.Context, input any, s api.Scope) (any, error) {
				return input, nil
			}, api.Store("fetched", "decide")),
			"decide": api.ActionStep(api.FromDomain("fetched"), func(ctx context.Context, input any, s api.Scope) (any, error) {
				items, _ := input.([]string)
				return len(items) > 0, nil
			}, api.BranchOnBool("show", "empty")),
			"show":  api.RenderStep("list-view", api.FromDomain("fetched"), api.Stay()),
			"empty": api.RenderStep("empty-view", nil, api.Stay()),
		},
	}
}

// Two chained action steps pick the render step from the starting data.
func TestScenario_FetchThenDecide(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{name: "no items", items: []string{}, want: "empty"},
		{name: "one item", items: []string{"x"}, want: "show"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, surface := startRunner(t, fetchDecideFlow(), api.Data{"items": tt.items}, Config{})
			testutil.Settle(t, r)

			require.Equal(t, tt.want, r.CurrentStep())
			last, ok := surface.Last()
			require.True(t, ok)
			require.Equal(t, api.FrameView, last.Kind)
			require.Equal(t, tt.want, last.Step)
		})
	}
}

// One channel bound to two independent runners reaches both.
func TestScenario_SharedCounter(t *testing.T) {
	counter := channel.New(0)
	view := func(s api.Scope) (any, error) { return s.Channels.Value("counter"), nil }
	def := api.Definition{
		Name:  "shared",
		Start: "show",
		Steps: map[string]api.Step{"show": api.RenderStep("counter-view", view, api.Stay())},
	}

	a, surfaceA := startRunner(t, def, nil, Config{Channels: api.Channels{"counter": counter}})
	b, surfaceB := startRunner(t, def, nil, Config{Channels: api.Channels{"counter": counter}})
	testutil.Settle(t, a)
	testutil.Settle(t, b)
	require.Equal(t, 2, counter.Len())

	counter.Update(func(n int) int { return n + 1 })
	testutil.Settle(t, a)
	testutil.Settle(t, b)

	for _, s := range []*testutil.Surface{surfaceA, surfaceB} {
		f, ok := s.Last()
		require.True(t, ok)
		require.Equal(t, 1, f.Input)
	}
}

// An action start step loads a user and hands over to a render step.
func TestScenario_LoadThenRender(t *testing.T) {
	def := api.Definition{
		Name:  "profile",
		Start: "load",
		Steps: map[string]api.Step{
			"load": api.ActionStep(api.FromDomain("userID"), func(ctx context.Context, input any, s api.Scope) (any, error) {
				return map[string]any{"id": input, "name": "Ada"}, nil
			}, api.Store("user", "show")).WithBusy(api.Fallback("loading")),
			"show": api.RenderStep("profile-view", api.FromDomain("user"), api.Stay()),
		},
	}
	r, surface := startRunner(t, def, api.Data{"userID": 7}, Config{})
	testutil.Settle(t, r)

	frames := surface.Frames()
	require.Equal(t, api.FrameFallback, frames[0].Kind)
	require.True(t, frames[0].Busy)

	last := frames[len(frames)-1]
	require.Equal(t, api.FrameView, last.Kind)
	require.Equal(t, "show", last.Step)
	require.Equal(t, map[string]any{"id": 7, "name": "Ada"}, last.Input)
}

// A wizard with back/next outputs and an internal visit counter.
func TestScenario_WizardNavigation(t *testing.T) {
	nav := func(prev, next string) api.OutputFunc {
		return func(ctx context.Context, s api.Scope, output any) (string, error) {
			s.Internal["moves"] = s.Internal["moves"].(int) + 1
			switch output {
			case "back":
				return prev, nil
			case "next":
				return next, nil
			}
			return "", nil
		}
	}
	def := api.Definition{
		Name:            "wizard",
		Start:           "one",
		NewInternalData: func() api.Data { return api.Data{"moves": 0} },
		Steps: map[string]api.Step{
			"one":   api.RenderStep("one-view", nil, nav("", "two")),
			"two":   api.RenderStep("two-view", nil, nav("one", "three")),
			"three": api.RenderStep("three-view", nil, nav("two", "")),
		},
	}
	r, surface := startRunner(t, def, nil, Config{})
	testutil.Settle(t, r)

	for _, out := range []string{"next", "next", "back", "next", "next"} {
		surface.Emit(t, out)
		testutil.Settle(t, r)
	}

	require.Equal(t, "three", r.CurrentStep())
	require.Equal(t, 5, r.Snapshot().Internal["moves"])
	require.Equal(t, []string{"one", "two", "three", "two", "three", "three"}, surface.Steps())
}

// A render step whose view emits from inside Render, driving a counter
// channel that in turn moves the flow.
func TestScenario_ViewDrivenChannel(t *testing.T) {
	counter := channel.New(0)
	def := counterFlow()

	surface := testutil.NewSurface()
	surface.OnRender(func(f api.Frame) {
		if f.Step == "idle" && f.Kind == api.FrameView {
			// Emitting synchronously from Render must not deadlock.
			counter.Update(func(n int) int { return n + 1 })
		}
	})

	r, err := NewRunner(def, surface, nil, Config{
		Logger:   quietLogger(),
		Channels: api.Channels{"counter": counter},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	testutil.Settle(t, r)

	require.Equal(t, "done", r.CurrentStep())
	require.Equal(t, 3, counter.Get())
}

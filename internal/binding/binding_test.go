package binding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/channel"
)

func TestResolve_NilIncoming(t *testing.T) {
	got, changed := Resolve(nil, nil, api.StrategySticky)
	require.Nil(t, got)
	require.False(t, changed)

	prev := api.Channels{"a": channel.New(0)}
	got, changed = Resolve(prev, nil, api.StrategySticky)
	require.Nil(t, got)
	require.True(t, changed)
}

func TestResolve_StickyKeepsFirstInstance(t *testing.T) {
	first := channel.New(1)

	resolved, changed := Resolve(nil, api.Channels{"counter": first}, api.StrategySticky)
	require.True(t, changed)
	require.Same(t, first, resolved["counter"])

	// Every later instance for the same key is ignored.
	for i := 0; i < 5; i++ {
		next, changed := Resolve(resolved, api.Channels{"counter": channel.New(i)}, api.StrategySticky)
		require.False(t, changed)
		require.Same(t, first, next["counter"])
		resolved = next
	}
}

func TestResolve_StickyPicksUpNewKeys(t *testing.T) {
	a := channel.New("a")
	b := channel.New("b")

	resolved, _ := Resolve(nil, api.Channels{"a": a}, api.StrategySticky)
	next, changed := Resolve(resolved, api.Channels{"a": channel.New("other"), "b": b}, api.StrategySticky)

	require.True(t, changed)
	require.Same(t, a, next["a"])
	require.Same(t, b, next["b"])
}

func TestResolve_StickyDropsRemovedKeys(t *testing.T) {
	a := channel.New("a")
	b := channel.New("b")

	resolved, _ := Resolve(nil, api.Channels{"a": a, "b": b}, api.StrategySticky)
	next, changed := Resolve(resolved, api.Channels{"a": a}, api.StrategySticky)

	require.True(t, changed)
	require.Len(t, next, 1)
	require.Same(t, a, next["a"])
}

func TestResolve_ReplaceTracksLatestInstance(t *testing.T) {
	var resolved api.Channels
	for i := 0; i < 4; i++ {
		latest := channel.New(i)
		next, changed := Resolve(resolved, api.Channels{"counter": latest}, api.StrategyReplace)
		require.True(t, changed)
		require.Same(t, latest, next["counter"])
		resolved = next
	}
}

func TestResolve_StructurallyEqualMapIsStable(t *testing.T) {
	a := channel.New(0)
	b := channel.New(0)

	for _, strategy := range []api.ChannelStrategy{api.StrategySticky, api.StrategyReplace} {
		prev, _ := Resolve(nil, api.Channels{"a": a, "b": b}, strategy)

		// A brand-new map value with identical bindings.
		next, changed := Resolve(prev, api.Channels{"a": a, "b": b}, strategy)
		require.False(t, changed, strategy.String())

		// Same map returned: callers can compare by identity.
		next["probe"] = a
		require.Contains(t, prev, "probe", strategy.String())
		delete(prev, "probe")
	}
}

func TestSubscriptions_RebindAndRelease(t *testing.T) {
	a := channel.New(0)
	b := channel.New(0)

	var notified []string
	subs := NewSubscriptions()
	subs.Rebind(api.Channels{"a": a, "b": b}, func(key string) {
		notified = append(notified, key)
	})

	require.Equal(t, 2, subs.Len())
	require.ElementsMatch(t, []string{"a", "b"}, subs.Keys())
	require.Equal(t, 1, a.Len())
	require.Equal(t, 1, b.Len())

	a.Emit(1)
	b.Emit(1)
	require.Equal(t, []string{"a", "b"}, notified)

	// Rebinding replaces every registration instead of stacking them.
	subs.Rebind(api.Channels{"a": a}, func(string) {})
	require.Equal(t, 1, a.Len())
	require.Equal(t, 0, b.Len())

	require.Equal(t, 1, subs.Release())
	require.Equal(t, 0, a.Len())
	require.Equal(t, 0, subs.Release())
}

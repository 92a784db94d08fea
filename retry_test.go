package stepflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/internal/testutil"
)

func TestRetry_Schedule(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name     string
		builder  RetryBuilder
		attempts int
		waits    []time.Duration
	}{
		{"single call", Retry(0), 1, []time.Duration{}},
		{"negative attempts", Retry(-2), 1, []time.Duration{}},
		{"no delay by default", Retry(3), 3, []time.Duration{0, 0}},
		{"backoff capped", Retry(5).Backoff(100*ms, 3, 500*ms), 5, []time.Duration{100 * ms, 300 * ms, 500 * ms, 500 * ms}},
		{"backoff default factor", Retry(4).Backoff(10*ms, 0, 0), 4, []time.Duration{10 * ms, 20 * ms, 40 * ms}},
		{"every", Retry(4).Every(250 * ms), 4, []time.Duration{250 * ms, 250 * ms, 250 * ms}},
		{"no delay clears backoff", Retry(3).Backoff(time.Second, 2, 0).NoDelay(), 3, []time.Duration{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.builder.Policy()
			assert.Equal(t, tc.attempts, p.Attempts())
			assert.Equal(t, tc.waits, tc.builder.Schedule())
		})
	}
}

func TestRetry_FallbackStaysUpAcrossAttempts(t *testing.T) {
	var calls atomic.Int32
	flaky := func(ctx context.Context, input any, s Scope) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("gateway timeout")
		}
		return "paid", nil
	}

	def := New("pay").
		Action("charge", nil, flaky, Store("receipt", "done"),
			WithBusy(Fallback("paying")),
			WithRetry(Retry(3).Every(2*time.Millisecond))).
		Render("done", "receipt", FromDomain("receipt"), Stay()).
		MustBuild()

	surface := testutil.NewSurface()
	r, err := NewRunner(def, surface, nil, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	testutil.Settle(t, r)

	require.Equal(t, "done", r.CurrentStep())
	require.EqualValues(t, 3, calls.Load())

	for _, f := range surface.Frames() {
		if f.Step == "charge" {
			assert.Equal(t, FrameFallback, f.Kind)
			assert.Equal(t, "paying", f.View)
		}
	}
	f, _ := surface.Last()
	assert.Equal(t, "paid", f.Input)
}

func TestRetry_GivesUpAfterLastAttempt(t *testing.T) {
	var calls atomic.Int32
	def := New("pay").
		Action("charge", nil, func(ctx context.Context, input any, s Scope) (any, error) {
			calls.Add(1)
			return nil, errors.New("declined")
		}, Goto("done"), WithRetry(Retry(2).NoDelay())).
		Render("done", "receipt", nil, Stay()).
		MustBuild()

	surface := testutil.NewSurface()
	r, err := NewRunner(def, surface, nil, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	testutil.Settle(t, r)

	assert.Equal(t, "charge", r.CurrentStep())
	assert.EqualValues(t, 2, calls.Load())
	assert.False(t, r.Busy())
}

// Package testutil contains helpers shared by the stepflow test suites.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/pkg/api"
)

// DefaultWait bounds every Wait* helper.
const DefaultWait = 2 * time.Second

// Surface is an api.Surface that records every frame it is asked to render.
type Surface struct {
	mu       sync.Mutex
	frames   []api.Frame
	onRender func(api.Frame)
}

// Ensure Surface implements api.Surface.
var _ api.Surface = (*Surface)(nil)

func NewSurface() *Surface {
	return &Surface{}
}

// OnRender installs a hook called from Render, on the runner's loop
// goroutine, after the frame was recorded. Hooks may emit.
func (s *Surface) OnRender(fn func(api.Frame)) {
	s.mu.Lock()
	s.onRender = fn
	s.mu.Unlock()
}

func (s *Surface) Render(ctx context.Context, f api.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	hook := s.onRender
	s.mu.Unlock()

	if hook != nil {
		hook(f)
	}
}

// Frames returns a copy of every recorded frame, oldest first.
func (s *Surface) Frames() []api.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Frame(nil), s.frames...)
}

// Len returns the number of recorded frames.
func (s *Surface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Last returns the most recent frame.
func (s *Surface) Last() (api.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return api.Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Steps returns the Step of every recorded frame.
func (s *Surface) Steps() []string {
	frames := s.Frames()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Step
	}
	return out
}

// Emit sends output through the emitter of the most recent frame.
func (s *Surface) Emit(t testing.TB, output any) {
	t.Helper()
	f, ok := s.Last()
	require.True(t, ok, "nothing rendered yet")
	require.NotNil(t, f.Emitter, "frame %s for step %q has no emitter", f.Kind, f.Step)
	f.Emitter.Emit(output)
}

// WaitFor blocks until a recorded frame satisfies match and returns the
// first such frame.
func (s *Surface) WaitFor(t testing.TB, match func(api.Frame) bool) api.Frame {
	t.Helper()
	var found api.Frame
	require.Eventually(t, func() bool {
		for _, f := range s.Frames() {
			if match(f) {
				found = f
				return true
			}
		}
		return false
	}, DefaultWait, time.Millisecond)
	return found
}

// WaitForStep blocks until a frame of kind kind was rendered for step.
func (s *Surface) WaitForStep(t testing.TB, step string, kind api.FrameKind) api.Frame {
	t.Helper()
	return s.WaitFor(t, func(f api.Frame) bool {
		return f.Step == step && f.Kind == kind
	})
}

// Settle waits for r to drain its mailbox and in-flight actions.
func Settle(t testing.TB, r api.Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultWait)
	defer cancel()
	require.NoError(t, r.Settle(ctx))
}

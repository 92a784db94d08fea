package api

import "context"

// FrameKind tells the surface what a frame contains.
type FrameKind int

const (
	// FrameBlank: nothing is rendered (busy action step with BusyNone).
	FrameBlank FrameKind = iota
	// FrameView: a render step's view with a live emitter.
	FrameView
	// FramePreserved: the previous render step's view with an inert emitter.
	FramePreserved
	// FrameFallback: a busy placeholder view.
	FrameFallback
	// FrameError: the runner is in a degraded state (e.g. unknown step).
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameBlank:
		return "blank"
	case FrameView:
		return "view"
	case FramePreserved:
		return "preserved"
	case FrameFallback:
		return "fallback"
	case FrameError:
		return "error"
	default:
		return "unknown"
	}
}

// Emitter routes an output value back to the runner. Emit never blocks.
type Emitter interface {
	Emit(output any)
}

// FallbackProps is what a fallback busy view receives.
type FallbackProps struct {
	Input       any
	Domain      Data
	Internal    Data
	Channels    Channels
	CurrentStep string
	Busy        bool
}

// Frame is one render request from a runner to its surface.
type Frame struct {
	Kind FrameKind

	// Step is the runner's current step. For FramePreserved the rendered view
	// belongs to ViewStep instead.
	Step     string
	ViewStep string

	View    View
	Input   any
	Emitter Emitter

	Fallback *FallbackProps
	Err      error

	// Busy is true while the current step's action is in flight.
	Busy bool

	// Version increases with every frame a runner renders.
	Version uint64
}

// Surface renders frames. Render is called from the runner's loop goroutine
// and must not block; emitting from inside Render is allowed.
type Surface interface {
	Render(ctx context.Context, f Frame)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, f Frame)

func (fn SurfaceFunc) Render(ctx context.Context, f Frame) {
	fn(ctx, f)
}

// NopEmitter drops every output.
type NopEmitter struct{}

func (NopEmitter) Emit(any) {}

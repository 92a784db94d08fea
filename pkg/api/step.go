package api

import (
	"context"
)

// StepKind is fixed when a step is declared; the runner never re-derives it.
type StepKind int

const (
	// KindUnknown is the zero value and never valid in a definition.
	KindUnknown StepKind = iota
	// KindRender steps render a view and wait for an output event.
	KindRender
	// KindAction steps run a task and transition on completion.
	KindAction
)

func (k StepKind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// View is an opaque rendering handle. The runner passes it to the Surface
// untouched.
type View any

// InputFunc derives a step's input from the scope.
type InputFunc func(s Scope) (any, error)

// ActionFunc is the task of an action step. It may block; ctx is cancelled
// when the runner is closed.
type ActionFunc func(ctx context.Context, input any, s Scope) (any, error)

// OutputFunc handles a step's output and returns the next step name. An
// empty name means "stay on the current step".
type OutputFunc func(ctx context.Context, s Scope, output any) (string, error)

// Resolver maps a channel emission to an optional next step name.
type Resolver func(ctx context.Context, ev ChannelEvent) (string, error)

// BusyMode selects what is rendered while an action step is in flight.
type BusyMode int

const (
	// BusyNone renders nothing for the step.
	BusyNone BusyMode = iota
	// BusyPreservePrevious re-renders the most recent render step with an
	// inert emitter.
	BusyPreservePrevious
	// BusyFallback renders a dedicated placeholder view.
	BusyFallback
)

func (m BusyMode) String() string {
	switch m {
	case BusyNone:
		return "none"
	case BusyPreservePrevious:
		return "preservePrevious"
	case BusyFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// RenderPolicy is the busy-render policy of an action step.
type RenderPolicy struct {
	Mode BusyMode
	View View // BusyFallback only
}

// PreservePrevious keeps the last render step on screen while busy.
func PreservePrevious() RenderPolicy {
	return RenderPolicy{Mode: BusyPreservePrevious}
}

// Fallback renders view while busy.
func Fallback(view View) RenderPolicy {
	return RenderPolicy{Mode: BusyFallback, View: view}
}

// Step describes one node of a flow graph.
type Step struct {
	Kind     StepKind
	Input    InputFunc
	OnOutput OutputFunc

	// Render steps.
	View View

	// Action steps.
	Action ActionFunc
	Busy   RenderPolicy
	Retry  *RetryPolicy
}

// RenderStep declares a step that renders view with the derived input and
// waits for an output event.
func RenderStep(view View, input InputFunc, onOutput OutputFunc) Step {
	return Step{
		Kind:     KindRender,
		View:     view,
		Input:    input,
		OnOutput: onOutput,
	}
}

// ActionStep declares a step that runs action as soon as it becomes current.
func ActionStep(input InputFunc, action ActionFunc, onOutput OutputFunc) Step {
	return Step{
		Kind:     KindAction,
		Input:    input,
		Action:   action,
		OnOutput: onOutput,
	}
}

// WithBusy returns a copy of s using the given busy-render policy.
func (s Step) WithBusy(p RenderPolicy) Step {
	s.Busy = p
	return s
}

// WithRetry returns a copy of s whose action is retried according to p.
func (s Step) WithRetry(p RetryPolicy) Step {
	s.Retry = &p
	return s
}

package engine

import (
	"errors"
	"log/slog"

	"github.com/petrijr/stepflow/internal/mailbox"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/log"
)

// evaluate renders the current step, launching its action when this
// occurrence of an action step has not run yet.
func (r *runner) evaluate() {
	step, ok := r.def.Steps[r.current]
	if !ok {
		err := &api.UnknownStepError{Step: r.current}
		r.reportError(r.current, err)
		r.render(api.Frame{Kind: api.FrameError, Step: r.current, Err: err})
		return
	}

	if step.Kind == api.KindAction {
		r.evaluateAction(step)
		return
	}

	input, err := callInput(step.Input, r.scope())
	if err != nil {
		r.reportError(r.current, &api.StepExecutionError{Step: r.current, Phase: api.PhaseInput, Err: err})
		return
	}
	r.lastRender = r.current
	r.render(api.Frame{
		Kind:     api.FrameView,
		Step:     r.current,
		ViewStep: r.current,
		View:     step.View,
		Input:    input,
		Emitter:  &emitter{queue: r.queue, occurrence: r.occurrence, step: r.current},
	})
}

func (r *runner) evaluateAction(step api.Step) {
	if r.launched == r.occurrence {
		// Already launched for this occurrence: only re-render.
		r.renderBusy(r.current, step, r.actionInput)
		return
	}

	r.launched = r.occurrence
	r.actionInput = nil

	input, err := callInput(step.Input, r.scope())
	if err != nil {
		r.reportError(r.current, &api.StepExecutionError{Step: r.current, Phase: api.PhaseInput, Err: err})
		r.renderBusy(r.current, step, nil)
		return
	}
	r.actionInput = input
	r.running[r.occurrence] = r.current
	r.renderBusy(r.current, step, input)

	// The body gets its own copy of each partition; runAction diffs the
	// copies against base and handleActionDone merges the writes back.
	base := api.Scope{Domain: r.domain.Clone(), Internal: r.internal.Clone()}
	scope := api.Scope{
		Domain:   base.Domain.Clone(),
		Internal: base.Internal.Clone(),
		Channels: r.channels,
	}
	go r.runAction(r.occurrence, r.current, step, input, base, scope)
}

// renderBusy renders an action step according to its busy-render policy.
// The same policy applies once the action settled without leaving the step,
// with Busy reporting false.
func (r *runner) renderBusy(name string, step api.Step, input any) {
	busy := r.busy()

	switch step.Busy.Mode {
	case api.BusyPreservePrevious:
		prevName := r.lastRender
		prev, ok := r.def.Steps[prevName]
		if prevName == "" || !ok || prev.Kind != api.KindRender {
			r.render(api.Frame{Kind: api.FrameBlank, Step: name, Busy: busy})
			return
		}
		prevInput, err := callInput(prev.Input, r.scope())
		if err != nil {
			r.reportError(prevName, &api.StepExecutionError{Step: prevName, Phase: api.PhaseInput, Err: err})
			r.render(api.Frame{Kind: api.FrameBlank, Step: name, Busy: busy})
			return
		}
		r.render(api.Frame{
			Kind:     api.FramePreserved,
			Step:     name,
			ViewStep: prevName,
			View:     prev.View,
			Input:    prevInput,
			Emitter:  inertEmitter{logger: r.logger, step: prevName},
			Busy:     busy,
		})

	case api.BusyFallback:
		r.render(api.Frame{
			Kind:    api.FrameFallback,
			Step:    name,
			View:    step.Busy.View,
			Input:   input,
			Emitter: inertEmitter{logger: r.logger, step: name},
			Fallback: &api.FallbackProps{
				Input:       input,
				Domain:      r.domain.Clone(),
				Internal:    r.internal.Clone(),
				Channels:    r.channels,
				CurrentStep: name,
				Busy:        busy,
			},
			Busy: busy,
		})

	default:
		r.render(api.Frame{Kind: api.FrameBlank, Step: name, Busy: busy})
	}
}

func (r *runner) render(f api.Frame) {
	r.version++
	f.Version = r.version

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("surface_render_panic",
				log.Step(f.Step),
				slog.String("frame", f.Kind.String()),
				slog.Any("panic", rec),
			)
		}
	}()
	r.surface.Render(r.ctx, f)
}

// handleOutput applies an output emitted by a render step's view.
func (r *runner) handleOutput(t mailbox.Task) {
	if t.Occurrence != r.occurrence {
		r.logger.Debug("stale_output_dropped", log.Step(t.Step), slog.String("current", r.current))
		return
	}
	step, ok := r.def.Steps[r.current]
	if !ok {
		return
	}

	next, err := callOutput(r.ctx, step.OnOutput, r.scope(), t.Payload)
	if err != nil {
		r.reportError(r.current, &api.StepExecutionError{Step: r.current, Phase: api.PhaseOutput, Err: err})
		return
	}
	r.advance(next, api.CauseOutput)
}

// handleActionDone applies a settled action body.
//
// The keys the body wrote are merged into the live data first, whether it
// succeeded or not. A completion from an earlier occurrence of a step still
// runs the step's output handler against the live data, but its target is
// discarded.
func (r *runner) handleActionDone(t mailbox.Task) {
	delete(r.running, t.Occurrence)
	r.observer.OnActionCompleted(r.ctx, r.info, t.Step, t.Err, t.Duration)

	res, _ := t.Payload.(actionResult)
	res.domain.applyTo(r.domain)
	res.internal.applyTo(r.internal)

	stale := t.Occurrence != r.occurrence
	if t.Err != nil {
		r.reportError(t.Step, &api.StepExecutionError{Step: t.Step, Phase: api.PhaseAction, Err: t.Err})
		if !stale {
			r.evaluate()
		}
		return
	}

	step := r.def.Steps[t.Step]
	next, err := callOutput(r.ctx, step.OnOutput, r.scope(), res.output)
	if err != nil {
		r.reportError(t.Step, &api.StepExecutionError{Step: t.Step, Phase: api.PhaseOutput, Err: err})
		if !stale {
			r.evaluate()
		}
		return
	}

	if stale {
		if next != "" {
			r.logger.Debug("stale_action_target_discarded", log.Step(t.Step), log.Target(next))
		}
		r.evaluate()
		return
	}
	r.advance(next, api.CauseAction)
}

// handleChannel reacts to an emission of the channel bound under key.
func (r *runner) handleChannel(key string) {
	if _, bound := r.channels[key]; !bound {
		// Queued before the channel was unbound.
		return
	}

	resolver, ok := r.def.ChannelTransitions[key]
	if !ok {
		r.evaluate()
		return
	}

	ev := api.ChannelEvent{Scope: r.scope(), CurrentStep: r.current, ChannelKey: key}
	next, err := callResolver(r.ctx, resolver, ev)
	if err != nil {
		r.reportError(r.current, &api.ChannelResolverError{Channel: key, Step: r.current, Err: err})
		r.evaluate()
		return
	}
	r.advance(next, api.CauseChannel)
}

// advance moves to next when it names another known step and re-renders
// the current step otherwise.
func (r *runner) advance(next string, cause api.Cause) {
	if next == "" || next == r.current {
		r.evaluate()
		return
	}
	step, ok := r.def.Steps[next]
	if !ok {
		r.logger.Warn("unknown_transition_target", log.Step(r.current), log.Target(next))
		r.evaluate()
		return
	}

	from := r.current
	r.current = next
	r.occurrence++
	r.observer.OnTransition(r.ctx, r.info, from, next, cause)
	r.observer.OnStepEnter(r.ctx, r.info, next, step.Kind)
	r.evaluate()
}

func (r *runner) scope() api.Scope {
	return api.Scope{Domain: r.domain, Internal: r.internal, Channels: r.channels}
}

func (r *runner) reportError(step string, err error) {
	attrs := []any{log.Step(step), log.Error(err)}

	var execErr *api.StepExecutionError
	if errors.As(err, &execErr) {
		attrs = append(attrs, log.Phase(execErr.Phase))
	}
	var resolverErr *api.ChannelResolverError
	if errors.As(err, &resolverErr) {
		attrs = append(attrs, log.Channel(resolverErr.Channel))
	}

	r.logger.Error("step_failed", attrs...)
	r.observer.OnStepError(r.ctx, r.info, step, err)
}

package engine

import (
	"context"
	"log/slog"

	"github.com/petrijr/stepflow/internal/mailbox"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/log"
)

// The call* helpers turn a panicking callback into an error so a single
// faulty step cannot take the runner loop down.

func callInput(fn api.InputFunc, s api.Scope) (out any, err error) {
	if fn == nil {
		return nil, nil
	}
	defer recoverInto(&err)
	return fn(s)
}

func callOutput(ctx context.Context, fn api.OutputFunc, s api.Scope, output any) (next string, err error) {
	if fn == nil {
		return "", nil
	}
	defer recoverInto(&err)
	return fn(ctx, s, output)
}

func callAction(ctx context.Context, fn api.ActionFunc, input any, s api.Scope) (out any, err error) {
	if fn == nil {
		return nil, nil
	}
	defer recoverInto(&err)
	return fn(ctx, input, s)
}

func callResolver(ctx context.Context, fn api.Resolver, ev api.ChannelEvent) (next string, err error) {
	defer recoverInto(&err)
	return fn(ctx, ev)
}

func recoverInto(err *error) {
	if rec := recover(); rec != nil {
		*err = &api.PanicError{Value: rec}
	}
}

// emitter routes outputs of one render occurrence back to the loop.
type emitter struct {
	queue      *mailbox.Queue
	occurrence uint64
	step       string
}

func (e *emitter) Emit(output any) {
	_ = e.queue.Enqueue(mailbox.Task{
		Type:       mailbox.TaskOutput,
		Occurrence: e.occurrence,
		Step:       e.step,
		Payload:    output,
	})
}

// inertEmitter is handed to preserved and fallback views; outputs are
// discarded while an action is in flight.
type inertEmitter struct {
	logger *slog.Logger
	step   string
}

func (e inertEmitter) Emit(output any) {
	e.logger.Debug("busy_output_discarded", log.Step(e.step))
}

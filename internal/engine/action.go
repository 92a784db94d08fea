package engine

import (
	"context"
	"time"

	"github.com/petrijr/stepflow/internal/mailbox"
	"github.com/petrijr/stepflow/pkg/api"
)

// runAction executes an action body off the loop goroutine and posts the
// result back. scope holds private copies of the data partitions, so the
// body never races with the loop; the keys it writes travel back in the
// task as deltas against base.
func (r *runner) runAction(occurrence uint64, name string, step api.Step, input any, base, scope api.Scope) {
	start := time.Now()
	out, err := r.execute(name, step, input, scope)

	_ = r.queue.Enqueue(mailbox.Task{
		Type:       mailbox.TaskActionDone,
		Occurrence: occurrence,
		Step:       name,
		Payload: actionResult{
			output:   out,
			domain:   diffData(base.Domain, scope.Domain),
			internal: diffData(base.Internal, scope.Internal),
		},
		Err:        err,
		Duration:   time.Since(start),
	})
}

// execute runs the action body, retrying according to the step's policy.
func (r *runner) execute(name string, step api.Step, input any, scope api.Scope) (any, error) {
	ctx := r.ctx
	attempts := step.Retry.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.observer.OnActionStart(ctx, r.info, name, attempt)
		out, err := callAction(ctx, step.Action, input, scope)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if delay := step.Retry.Delay(attempt); delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

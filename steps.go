package stepflow

import (
	"context"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// Goto returns an OutputFunc that always transitions to step.
func Goto(step string) OutputFunc {
	return api.Goto(step)
}

// Stay returns an OutputFunc that keeps the current step.
func Stay() OutputFunc {
	return api.Stay()
}

// Branch transitions to thenStep when cond holds and to elseStep otherwise.
func Branch(cond ConditionFunc, thenStep, elseStep string) OutputFunc {
	return api.Branch(cond, thenStep, elseStep)
}

// BranchOnBool is Branch for outputs that are a bool.
func BranchOnBool(thenStep, elseStep string) OutputFunc {
	return api.BranchOnBool(thenStep, elseStep)
}

// Switch dispatches to a step based on a selector.
func Switch(selector SelectorFunc, cases map[string]string, defaultStep string) OutputFunc {
	return api.Switch(selector, cases, defaultStep)
}

// Store saves the output in domain data under key, then moves to next.
func Store(key, next string) OutputFunc {
	return api.Store(key, next)
}

// FromDomain reads a step's input from domain data.
func FromDomain(key string) InputFunc {
	return api.FromDomain(key)
}

// Sleep returns an action that waits for d and passes its input through.
func Sleep(d time.Duration) ActionFunc {
	return api.Sleep(d)
}

// Parallel runs all actions concurrently and returns a []any of their
// outputs.
func Parallel(actions ...ActionFunc) ActionFunc {
	return api.Parallel(actions...)
}

// Typed wraps a strongly-typed function into an ActionFunc.
// Example:
//
//	stepflow.Typed(func(ctx context.Context, id int) (User, error) { ... })
func Typed[I, O any](fn func(context.Context, I) (O, error)) ActionFunc {
	return api.Typed(fn)
}

// TypedOutput wraps a strongly-typed output handler into an OutputFunc.
func TypedOutput[O any](fn func(ctx context.Context, s Scope, output O) (string, error)) OutputFunc {
	return api.TypedOutput(fn)
}

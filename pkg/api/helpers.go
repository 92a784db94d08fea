package api

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ConditionFunc decides a branch from a step output.
type ConditionFunc func(s Scope, output any) (bool, error)

// SelectorFunc picks a case key from a step output.
type SelectorFunc func(s Scope, output any) (string, error)

// Goto returns an OutputFunc that always transitions to step.
func Goto(step string) OutputFunc {
	return func(ctx context.Context, s Scope, output any) (string, error) {
		return step, nil
	}
}

// Stay returns an OutputFunc that never transitions.
func Stay() OutputFunc {
	return func(ctx context.Context, s Scope, output any) (string, error) {
		return "", nil
	}
}

// Branch transitions to thenStep when cond holds and to elseStep otherwise.
func Branch(cond ConditionFunc, thenStep, elseStep string) OutputFunc {
	return func(ctx context.Context, s Scope, output any) (string, error) {
		ok, err := cond(s, output)
		if err != nil {
			return "", err
		}
		if ok {
			return thenStep, nil
		}
		return elseStep, nil
	}
}

// BranchOnBool is Branch for actions that return a bool.
func BranchOnBool(thenStep, elseStep string) OutputFunc {
	return Branch(func(s Scope, output any) (bool, error) {
		b, ok := output.(bool)
		if !ok {
			return false, fmt.Errorf("expected bool output, got %T", output)
		}
		return b, nil
	}, thenStep, elseStep)
}

// Switch transitions to cases[selector(output)], or to defaultStep when the
// selected key has no case.
func Switch(selector SelectorFunc, cases map[string]string, defaultStep string) OutputFunc {
	return func(ctx context.Context, s Scope, output any) (string, error) {
		key, err := selector(s, output)
		if err != nil {
			return "", err
		}
		if step, ok := cases[key]; ok {
			return step, nil
		}
		return defaultStep, nil
	}
}

// Store returns an OutputFunc that saves the output in domain data under key
// and then transitions to next.
func Store(key, next string) OutputFunc {
	return func(ctx context.Context, s Scope, output any) (string, error) {
		s.Domain[key] = output
		return next, nil
	}
}

// FromDomain returns an InputFunc that reads key from domain data.
func FromDomain(key string) InputFunc {
	return func(s Scope) (any, error) {
		return s.Domain[key], nil
	}
}

// Sleep returns an action that waits for d and passes its input through.
//
// It is context-aware: if the runner is closed during the sleep, it returns
// ctx.Err.
func Sleep(d time.Duration) ActionFunc {
	return func(ctx context.Context, input any, s Scope) (any, error) {
		if d <= 0 {
			return input, nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return input, nil
		}
	}
}

// Parallel runs all actions concurrently with the same input and returns a
// []any of their outputs in argument order. The first error wins.
func Parallel(actions ...ActionFunc) ActionFunc {
	return func(ctx context.Context, input any, s Scope) (any, error) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := make([]any, len(actions))
		errs := make([]error, len(actions))

		var wg sync.WaitGroup
		wg.Add(len(actions))
		for i, a := range actions {
			go func(i int, a ActionFunc) {
				defer wg.Done()
				res, err := a(ctx, input, s)
				if err != nil {
					errs[i] = err
					cancel()
					return
				}
				out[i] = res
			}(i, a)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// Typed wraps a strongly-typed function into an ActionFunc.
// Example:
//
//	api.Typed(func(ctx context.Context, q Query) ([]Item, error) { ... })
func Typed[I, O any](fn func(context.Context, I) (O, error)) ActionFunc {
	return func(ctx context.Context, input any, s Scope) (any, error) {
		var in I
		if input != nil {
			v, ok := input.(I)
			if !ok {
				return nil, fmt.Errorf("expected input of type %T, got %T", in, input)
			}
			in = v
		}
		return fn(ctx, in)
	}
}

// TypedOutput wraps a strongly-typed output handler into an OutputFunc.
func TypedOutput[O any](fn func(ctx context.Context, s Scope, output O) (string, error)) OutputFunc {
	return func(ctx context.Context, s Scope, output any) (string, error) {
		var out O
		if output != nil {
			v, ok := output.(O)
			if !ok {
				return "", fmt.Errorf("expected output of type %T, got %T", out, output)
			}
			out = v
		}
		return fn(ctx, s, out)
	}
}

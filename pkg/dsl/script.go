package dsl

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/petrijr/stepflow/pkg/api"
)

// scriptAction runs a JavaScript body in a fresh goja runtime per call.
// The body sees input, domain, internal and channels and may use return:
//
//	return { total: input.price * input.qty };
func scriptAction(code string) (api.ActionFunc, error) {
	wrapped := "(function() {\n" + code + "\n})()"
	program, err := goja.Compile("action", wrapped, true)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, input any, s api.Scope) (any, error) {
		vm := goja.New()
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

		vars := map[string]any{
			"input":    input,
			"domain":   map[string]any(s.Domain),
			"internal": map[string]any(s.Internal),
			"channels": s.Channels.Values(),
		}
		for name, v := range vars {
			if err := vm.Set(name, v); err != nil {
				return nil, fmt.Errorf("failed to set %s in JavaScript runtime: %w", name, err)
			}
		}

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
			case <-done:
			}
		}()

		result, err := vm.RunProgram(program)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("JavaScript execution error: %w", err)
		}
		return result.Export(), nil
	}, nil
}

package dsl

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/petrijr/stepflow/pkg/api"
)

// Expression variables:
//
//	output    the step output (next expressions only)
//	value     the emitting channel's value (channel expressions only)
//	domain    domain data
//	internal  internal data
//	channels  current value of every bound channel
//	step      the current step name
type expression struct {
	source  string
	program *vm.Program
}

func compileExpression(source string) (*expression, error) {
	program, err := expr.Compile(source,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	return &expression{source: source, program: program}, nil
}

func (e *expression) eval(env map[string]any) (any, error) {
	return expr.Run(e.program, env)
}

// target evaluates e and interprets the result as a step name. nil and
// false mean "stay".
func (e *expression) target(env map[string]any) (string, error) {
	v, err := e.eval(env)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if !t {
			return "", nil
		}
	}
	return "", fmt.Errorf("expression %q returned %T, want a step name", e.source, v)
}

func scopeEnv(s api.Scope, step string) map[string]any {
	return map[string]any{
		"domain":   map[string]any(s.Domain),
		"internal": map[string]any(s.Internal),
		"channels": s.Channels.Values(),
		"step":     step,
		"null":     nil,
	}
}

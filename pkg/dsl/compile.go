package dsl

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/stepflow/pkg/api"
)

type compileOptions struct {
	placeholders bool
}

// CompileOption configures Compile.
type CompileOption func(*compileOptions)

// WithPlaceholderActions compiles unregistered action names to actions that
// return their input. Useful to validate a document without its runtime.
func WithPlaceholderActions() CompileOption {
	return func(o *compileOptions) { o.placeholders = true }
}

// Compile turns d into a validated api.Definition. Every problem is
// reported as an *api.ConfigurationError.
func (d *Document) Compile(reg *Registry, opts ...CompileOption) (api.Definition, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = NewRegistry()
	}

	def := api.Definition{
		Name:  d.Name,
		Start: d.Start,
		Steps: make(map[string]api.Step, len(d.Steps)),
	}
	if len(d.Internal) > 0 {
		internal := api.Data(d.Internal)
		def.NewInternalData = func() api.Data { return internal.Clone() }
	}

	for name, spec := range d.Steps {
		step, err := d.compileStep(reg, name, spec, o)
		if err != nil {
			return api.Definition{}, err
		}
		def.Steps[name] = step
	}

	if len(d.Channels) > 0 {
		def.ChannelTransitions = make(map[string]api.Resolver, len(d.Channels))
		for key, source := range d.Channels {
			resolver, err := channelResolver(key, source)
			if err != nil {
				return api.Definition{}, &api.ConfigurationError{Flow: d.Name, Reason: "channel \"" + key + "\": " + err.Error()}
			}
			def.ChannelTransitions[key] = resolver
		}
	}

	if err := def.Validate(); err != nil {
		return api.Definition{}, err
	}
	return def, nil
}

func (d *Document) compileStep(reg *Registry, name string, spec *StepSpec, o compileOptions) (api.Step, error) {
	fail := func(reason string) error {
		return &api.ConfigurationError{Flow: d.Name, Step: name, Reason: reason}
	}

	input, err := compileInput(reg, name, spec)
	if err != nil {
		return api.Step{}, fail(err.Error())
	}
	onOutput, err := compileOutput(name, spec)
	if err != nil {
		return api.Step{}, fail("next: " + err.Error())
	}

	if spec.Kind == KindRender {
		if spec.View == "" {
			return api.Step{}, fail("render step requires a view")
		}
		if spec.Action != "" || spec.Script != "" {
			return api.Step{}, fail("render step must not declare an action")
		}
		return api.RenderStep(reg.View(spec.View), input, onOutput), nil
	}

	action, err := compileAction(reg, spec, o)
	if err != nil {
		return api.Step{}, fail(err.Error())
	}
	step := api.ActionStep(input, action, onOutput)

	switch spec.Busy.Mode {
	case "preservePrevious":
		step = step.WithBusy(api.PreservePrevious())
	case "fallback":
		step = step.WithBusy(api.Fallback(reg.View(spec.Busy.View)))
	}
	if spec.Retry != nil {
		step = step.WithRetry(api.RetryPolicy{
			MaxAttempts:       spec.Retry.MaxAttempts,
			InitialBackoff:    spec.Retry.InitialBackoff,
			MaxBackoff:        spec.Retry.MaxBackoff,
			BackoffMultiplier: spec.Retry.Multiplier,
		})
	}
	return step, nil
}

func compileInput(reg *Registry, name string, spec *StepSpec) (api.InputFunc, error) {
	switch {
	case spec.Input != "" && spec.InputExpr != "":
		return nil, errors.New("input and input_expr are mutually exclusive")
	case spec.Input != "":
		fn, ok := reg.Input(spec.Input)
		if !ok {
			return nil, fmt.Errorf("input %q is not registered", spec.Input)
		}
		return fn, nil
	case spec.InputExpr != "":
		e, err := compileExpression(spec.InputExpr)
		if err != nil {
			return nil, fmt.Errorf("input_expr: %v", err)
		}
		return func(s api.Scope) (any, error) {
			return e.eval(scopeEnv(s, name))
		}, nil
	}
	return nil, nil
}

func compileOutput(name string, spec *StepSpec) (api.OutputFunc, error) {
	var next *expression
	if spec.Next != "" {
		e, err := compileExpression(spec.Next)
		if err != nil {
			return nil, err
		}
		next = e
	}
	store := spec.Store

	return func(ctx context.Context, s api.Scope, output any) (string, error) {
		if store != "" {
			s.Domain[store] = output
		}
		if next == nil {
			return "", nil
		}
		env := scopeEnv(s, name)
		env["output"] = output
		return next.target(env)
	}, nil
}

func compileAction(reg *Registry, spec *StepSpec, o compileOptions) (api.ActionFunc, error) {
	switch {
	case spec.Action != "" && spec.Script != "":
		return nil, errors.New("action and script are mutually exclusive")
	case spec.Script != "":
		fn, err := scriptAction(spec.Script)
		if err != nil {
			return nil, fmt.Errorf("script: %v", err)
		}
		return fn, nil
	case spec.Action != "":
		factory, ok := reg.Action(spec.Action)
		if !ok {
			if o.placeholders {
				return passThrough, nil
			}
			return nil, fmt.Errorf("action %q is not registered", spec.Action)
		}
		fn, err := factory(spec.Params)
		if err != nil {
			return nil, fmt.Errorf("action %q: %v", spec.Action, err)
		}
		return fn, nil
	}
	return nil, errors.New("action step requires an action or a script")
}

func passThrough(ctx context.Context, input any, s api.Scope) (any, error) {
	return input, nil
}

func channelResolver(key, source string) (api.Resolver, error) {
	e, err := compileExpression(source)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, ev api.ChannelEvent) (string, error) {
		env := scopeEnv(ev.Scope, ev.CurrentStep)
		env["value"] = ev.Channels.Value(key)
		return e.target(env)
	}, nil
}

package stepflow

import (
	"fmt"

	"github.com/petrijr/stepflow/pkg/api"
)

// FlowBuilder provides a fluent API for defining flows:
//
//	def, err := stepflow.New("Signup").
//	    Render("form", "signup-form", nil, stepflow.Goto("save")).
//	    Action("save", stepflow.FromDomain("email"), createAccount,
//	        stepflow.Store("account", "welcome"),
//	        stepflow.WithBusy(stepflow.Fallback("saving")),
//	        stepflow.WithRetry(stepflow.Retry(3).Every(time.Second))).
//	    Render("welcome", "welcome", stepflow.FromDomain("account"), stepflow.Stay()).
//	    Build()
//
// The first step added is the start step unless Start is called.
type FlowBuilder struct {
	def api.Definition
}

// StepOption adjusts a step added through FlowBuilder.Action.
type StepOption func(api.Step) api.Step

// WithBusy sets what is rendered while the action is in flight.
func WithBusy(p RenderPolicy) StepOption {
	return func(s api.Step) api.Step { return s.WithBusy(p) }
}

// WithRetry retries the action body according to the builder's policy.
func WithRetry(rb RetryBuilder) StepOption {
	return func(s api.Step) api.Step { return s.WithRetry(rb.Policy()) }
}

// New creates a new flow builder with the given name.
func New(name string) *FlowBuilder {
	return &FlowBuilder{
		def: api.Definition{
			Name:  name,
			Steps: make(map[string]api.Step),
		},
	}
}

// Name returns the flow name.
func (b *FlowBuilder) Name() string {
	return b.def.Name
}

// Start sets the start step.
func (b *FlowBuilder) Start(step string) *FlowBuilder {
	b.def.Start = step
	return b
}

// Step adds a prebuilt step.
func (b *FlowBuilder) Step(name string, s Step) *FlowBuilder {
	if name == "" {
		panic("stepflow: step name must not be empty")
	}
	if _, exists := b.def.Steps[name]; exists {
		panic(fmt.Sprintf("stepflow: step %q is defined twice", name))
	}
	if b.def.Start == "" {
		b.def.Start = name
	}
	b.def.Steps[name] = s
	return b
}

// Render adds a render step showing view.
func (b *FlowBuilder) Render(name string, view View, input InputFunc, onOutput OutputFunc) *FlowBuilder {
	if view == nil {
		panic(fmt.Sprintf("stepflow: render step %q has nil view", name))
	}
	return b.Step(name, api.RenderStep(view, input, onOutput))
}

// Action adds an action step running action.
func (b *FlowBuilder) Action(name string, input InputFunc, action ActionFunc, onOutput OutputFunc, opts ...StepOption) *FlowBuilder {
	if action == nil {
		panic(fmt.Sprintf("stepflow: action step %q has nil function", name))
	}
	s := api.ActionStep(input, action, onOutput)
	for _, opt := range opts {
		s = opt(s)
	}
	return b.Step(name, s)
}

// OnChannel registers the resolver invoked when the channel bound under key
// emits.
func (b *FlowBuilder) OnChannel(key string, r Resolver) *FlowBuilder {
	if r == nil {
		panic(fmt.Sprintf("stepflow: channel %q has nil resolver", key))
	}
	WithChannelTransition(key, r)(&b.def)
	return b
}

// InternalData sets the factory producing each runner's internal data.
func (b *FlowBuilder) InternalData(factory func() Data) *FlowBuilder {
	b.def.NewInternalData = factory
	return b
}

// Build validates and returns a copy of the definition. The builder can be
// reused afterwards without affecting the returned definition.
func (b *FlowBuilder) Build() (Definition, error) {
	def := b.def.Clone()
	if err := def.Validate(); err != nil {
		return api.Definition{}, err
	}
	return def, nil
}

// MustBuild is like Build but panics on error.
// Useful for package-level flow variables.
func (b *FlowBuilder) MustBuild() Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

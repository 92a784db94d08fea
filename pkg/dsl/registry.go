package dsl

import (
	"fmt"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"

	"github.com/petrijr/stepflow/pkg/api"
)

// ActionFactory builds an action from the params of a step.
type ActionFactory func(params map[string]any) (api.ActionFunc, error)

// Registry resolves the names a Document refers to. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	views   map[string]api.View
	inputs  map[string]api.InputFunc
	actions map[string]ActionFactory
}

// NewRegistry returns a registry holding the built-in "sleep" action.
func NewRegistry() *Registry {
	r := &Registry{
		views:   make(map[string]api.View),
		inputs:  make(map[string]api.InputFunc),
		actions: make(map[string]ActionFactory),
	}
	r.actions["sleep"] = Sleep()
	return r
}

func (r *Registry) RegisterView(name string, view api.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[name] = view
}

func (r *Registry) RegisterInput(name string, fn api.InputFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[name] = fn
}

// RegisterAction registers an action that takes no params.
func (r *Registry) RegisterAction(name string, fn api.ActionFunc) {
	r.RegisterActionFactory(name, func(map[string]any) (api.ActionFunc, error) {
		return fn, nil
	})
}

func (r *Registry) RegisterActionFactory(name string, factory ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = factory
}

// View returns the view registered under name. Unregistered names are
// returned as-is: a view is an opaque handle and a name is a valid one.
func (r *Registry) View(name string) api.View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.views[name]; ok {
		return v
	}
	return name
}

func (r *Registry) Input(name string) (api.InputFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.inputs[name]
	return fn, ok
}

func (r *Registry) Action(name string) (ActionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.actions[name]
	return f, ok
}

// Params adapts a constructor taking a typed config struct into an
// ActionFactory. The params map is decoded with mapstructure (yaml tags),
// then struct defaults are applied and the result is validated.
func Params[T any](build func(cfg T) (api.ActionFunc, error)) ActionFactory {
	return func(params map[string]any) (api.ActionFunc, error) {
		var cfg T
		if err := defaults.Set(&cfg); err != nil {
			return nil, fmt.Errorf("apply defaults: %w", err)
		}
		if len(params) > 0 {
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
		}
		if err := validate.Struct(cfg); err != nil {
			return nil, formatValidation(err)
		}
		return build(cfg)
	}
}

func decodeParams(params map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

// Sleep is an action factory for api.Sleep: params {duration: "250ms"}.
func Sleep() ActionFactory {
	type sleepParams struct {
		Duration time.Duration `yaml:"duration" default:"0s"`
	}
	return Params(func(p sleepParams) (api.ActionFunc, error) {
		return api.Sleep(p.Duration), nil
	})
}

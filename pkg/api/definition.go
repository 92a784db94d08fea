package api

// Definition is an immutable flow: a graph of named steps, the step to start
// from, optional per-channel transition resolvers and an optional factory
// for runner-local internal data.
type Definition struct {
	Name  string
	Start string
	Steps map[string]Step

	// ChannelTransitions maps a channel key to the resolver invoked when that
	// channel emits.
	ChannelTransitions map[string]Resolver

	// NewInternalData produces the initial internal data of each runner.
	NewInternalData func() Data
}

// Validate reports the first structural problem of d as a
// *ConfigurationError. Transition targets are not checked: unknown targets
// are tolerated at run time.
func (d Definition) Validate() error {
	if d.Start == "" {
		return &ConfigurationError{Flow: d.Name, Reason: "start step is required"}
	}
	if _, ok := d.Steps[d.Start]; !ok {
		return &ConfigurationError{Flow: d.Name, Reason: "start step \"" + d.Start + "\" is not defined"}
	}

	for name, s := range d.Steps {
		if name == "" {
			return &ConfigurationError{Flow: d.Name, Reason: "step name must not be empty"}
		}
		if err := validateStep(d.Name, name, s); err != nil {
			return err
		}
	}

	for key, r := range d.ChannelTransitions {
		if r == nil {
			return &ConfigurationError{Flow: d.Name, Reason: "channel \"" + key + "\" has a nil resolver"}
		}
	}
	return nil
}

func validateStep(flow, name string, s Step) error {
	fail := func(reason string) error {
		return &ConfigurationError{Flow: flow, Step: name, Reason: reason}
	}

	switch s.Kind {
	case KindRender:
		if s.View == nil {
			return fail("render step requires a view")
		}
		if s.Action != nil {
			return fail("render step must not declare an action")
		}
		if s.Busy.Mode != BusyNone || s.Retry != nil {
			return fail("busy policy and retry apply to action steps only")
		}
	case KindAction:
		if s.Action == nil {
			return fail("action step requires an action")
		}
		if s.View != nil {
			return fail("action step must not declare a view")
		}
		switch s.Busy.Mode {
		case BusyNone, BusyPreservePrevious:
		case BusyFallback:
			if s.Busy.View == nil {
				return fail("fallback busy policy requires a view")
			}
		default:
			return fail("unknown busy policy")
		}
	default:
		return fail("step kind must be render or action")
	}
	return nil
}

// Step returns the step registered under name.
func (d Definition) Step(name string) (Step, bool) {
	s, ok := d.Steps[name]
	return s, ok
}

// HasStep reports whether name is a step of d.
func (d Definition) HasStep(name string) bool {
	_, ok := d.Steps[name]
	return ok
}

// Clone copies the step and resolver maps so later edits to the caller's
// maps cannot reach d.
func (d Definition) Clone() Definition {
	out := d
	out.Steps = make(map[string]Step, len(d.Steps))
	for k, v := range d.Steps {
		out.Steps[k] = v
	}
	if d.ChannelTransitions != nil {
		out.ChannelTransitions = make(map[string]Resolver, len(d.ChannelTransitions))
		for k, v := range d.ChannelTransitions {
			out.ChannelTransitions[k] = v
		}
	}
	return out
}

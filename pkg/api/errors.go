package api

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an invalid flow definition.
	ErrConfiguration = errors.New("invalid flow configuration")

	// ErrUnknownStep marks a current step that is missing from the flow.
	ErrUnknownStep = errors.New("unknown step")

	// ErrStepExecution marks a failure inside a step callback.
	ErrStepExecution = errors.New("step execution failed")

	// ErrChannelResolver marks a failure inside a channel-transition resolver.
	ErrChannelResolver = errors.New("channel resolver failed")

	// ErrRunnerClosed is returned by runner operations after Close.
	ErrRunnerClosed = errors.New("runner closed")
)

// Phase names the step callback that failed.
type Phase string

const (
	PhaseInput  Phase = "input"
	PhaseAction Phase = "action"
	PhaseOutput Phase = "output"
)

// ConfigurationError is returned synchronously when a flow definition is
// invalid. It is the only error the engine returns to its callers.
type ConfigurationError struct {
	Flow   string
	Step   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Flow != "" && e.Step != "":
		return fmt.Sprintf("flow %q step %q: %s", e.Flow, e.Step, e.Reason)
	case e.Flow != "":
		return fmt.Sprintf("flow %q: %s", e.Flow, e.Reason)
	default:
		return e.Reason
	}
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// UnknownStepError is reported to the surface when the current step is not
// part of the flow. The runner stays usable.
type UnknownStepError struct {
	Step string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q", e.Step)
}

func (e *UnknownStepError) Is(target error) bool {
	return target == ErrUnknownStep
}

// StepExecutionError wraps an error returned (or a panic raised) by a step's
// input, action or output callback.
type StepExecutionError struct {
	Step  string
	Phase Phase
	Err   error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q %s: %v", e.Step, e.Phase, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

func (e *StepExecutionError) Is(target error) bool {
	return target == ErrStepExecution
}

// ChannelResolverError wraps an error returned (or a panic raised) by a
// channel-transition resolver.
type ChannelResolverError struct {
	Channel string
	Step    string
	Err     error
}

func (e *ChannelResolverError) Error() string {
	return fmt.Sprintf("channel %q resolver at step %q: %v", e.Channel, e.Step, e.Err)
}

func (e *ChannelResolverError) Unwrap() error {
	return e.Err
}

func (e *ChannelResolverError) Is(target error) bool {
	return target == ErrChannelResolver
}

// PanicError carries a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

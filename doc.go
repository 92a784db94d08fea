// Package stepflow provides a small, embeddable engine for declarative step
// flows: multi-step interactions such as wizards, checkouts or onboarding
// screens, where each step either shows something and waits for the user or
// runs a task and moves on by itself.
//
// The engine owns sequencing and data. Rendering is left to a Surface the
// host program supplies, so the same flow can drive a terminal UI, a web
// socket or a test recorder.
//
// # Core Concepts
//
// The stepflow programming model is intentionally small:
//
//  1. Definition
//  2. Step
//  3. Channel
//  4. Runner
//  5. Surface
//
// # Definition
//
// A Definition is an immutable graph of named steps plus a start step. It is
// built with DefineFlow, with the fluent FlowBuilder, or compiled from a YAML
// document by package pkg/dsl. Definitions are validated once, up front:
// every structural mistake is reported as a ConfigurationError. Transition
// targets are not checked; a target that names no step simply keeps the
// runner where it is.
//
// # Step
//
// A step is either a render step or an action step:
//
//   - Render steps show a view. The view receives an Emitter; whatever it
//     emits is passed to the step's OnOutput, which may return the next step.
//   - Action steps run a task exactly once each time they become current. A
//     busy policy decides what is shown meanwhile (nothing, the previous
//     view, or a fallback view). When the task completes, OnOutput picks the
//     next step.
//
// Steps read and write two partitions of data: domain data, supplied by the
// caller, and internal data, private to the runner.
//
// Example:
//
//	def := stepflow.New("Profile").
//	    Action("load", stepflow.FromDomain("userID"), loadUser,
//	        stepflow.Store("user", "show"),
//	        stepflow.WithBusy(stepflow.Fallback("spinner"))).
//	    Render("show", "profile", stepflow.FromDomain("user"), stepflow.Stay()).
//	    MustBuild()
//
// # Channel
//
// A Channel is an observable value cell. Channels bound to a runner are
// readable from every step, and an emission either re-renders the current
// step or, when the flow registers a resolver for the channel key, may move
// the flow to another step.
//
// # Runner
//
// A Runner drives one definition. All transitions and callbacks run on the
// runner's own goroutine, in arrival order; only action bodies run
// elsewhere. Runners are started by NewRunner and stopped by Close, which
// cancels in-flight actions and releases every channel subscription.
//
// Failures inside steps never escape the runner: they are logged and
// reported to the Observer, and the current step is rendered again.
//
// # Journals
//
// NewJournal turns any EventStore (in-memory, SQLite, Postgres or Redis)
// into an Observer that records what each runner did. Journals are an audit
// trail; runners are never restored from them.
//
// For examples, see the /examples directory.
package stepflow

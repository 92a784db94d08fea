// Package api contains the core building blocks of the stepflow engine: flow
// definitions, steps and their callbacks, scopes, frames and the surface
// contract, observers, errors and runner journal events.
//
// Most users interact with the higher-level stepflow package, which
// re-exports selected types and helpers from this package. The api package
// is intended for custom integrations such as surfaces, observers or flow
// compilers.
//
// # Steps
//
// A Step is a tagged variant: its Kind is fixed when it is constructed by
// RenderStep or ActionStep, and Definition.Validate rejects steps that carry
// fields of the other kind.
//
// # Frames
//
// The engine never draws anything. Each time a step is evaluated it hands a
// Frame to the Surface. The frame's Kind tells the surface what to do:
//
//   - FrameView: show the render step's view and wire its Emitter.
//   - FrameBlank: show nothing.
//   - FramePreserved: keep showing the previous view; its Emitter is inert.
//   - FrameFallback: show the busy placeholder with the FallbackProps.
//   - FrameError: the runner is degraded, e.g. its current step is unknown.
package api

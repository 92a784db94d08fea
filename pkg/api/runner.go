package api

import "context"

// Runner drives one flow definition over one pair of data partitions.
type Runner interface {
	// ID returns the runner's identifier.
	ID() string

	// CurrentStep returns the name of the current step.
	CurrentStep() string

	// Busy reports whether the current step's action is in flight.
	Busy() bool

	// Version returns the number of frames rendered so far.
	Version() uint64

	// Snapshot returns a copy of the runner's state.
	Snapshot() State

	// BindChannels runs one binding cycle with the given channel map.
	// Subscriptions change only when the resolved set of channels changes.
	BindChannels(incoming Channels)

	// Refresh re-renders the current step with the current data.
	Refresh()

	// Settle blocks until no task is queued and no action is in flight, or
	// ctx is done.
	Settle(ctx context.Context) error

	// Close releases every channel subscription, cancels in-flight actions
	// and stops the runner. It is idempotent.
	Close() error
}

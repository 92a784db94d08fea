package channel

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petrijr/stepflow/pkg/log"
)

// Handle identifies a single listener registration. Handles are unique
// across all channels in the process, so a handle from one channel never
// removes a listener from another.
type Handle uint64

var nextHandle atomic.Uint64

func newHandle() Handle {
	return Handle(nextHandle.Add(1))
}

// Source is the type-erased view of a Channel used by runners, which bind
// channels of different value types under string keys.
type Source interface {
	// Value returns the latest committed value.
	Value() any

	// Watch registers fn to be called after every commit.
	Watch(fn func()) Handle

	// Unsubscribe removes a registration made by Watch or Subscribe.
	Unsubscribe(h Handle) bool
}

// Option configures a Channel.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// WithName labels the channel in log output.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger used to report panicking listeners.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

type registration[T any] struct {
	handle Handle
	fn     func(T)
}

// Channel is a mutable value cell that notifies its listeners synchronously
// after every commit. It is safe for concurrent use; a Channel outlives the
// runners bound to it.
type Channel[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners []registration[T]

	name   string
	logger *slog.Logger
}

// Ensure Channel implements Source.
var _ Source = (*Channel[int])(nil)

// New creates a Channel holding initial.
func New[T any](initial T, opts ...Option) *Channel[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Channel[T]{
		value:  initial,
		name:   o.name,
		logger: o.logger,
	}
}

// Get returns the latest committed value.
func (c *Channel[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Value implements Source.
func (c *Channel[T]) Value() any {
	return c.Get()
}

// Emit commits v and notifies every listener registered at the time of the
// commit. Listeners registered or removed while the notification pass is
// running do not affect it.
func (c *Channel[T]) Emit(v T) {
	c.mu.Lock()
	c.value = v
	snapshot := make([]registration[T], len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	c.notify(snapshot, v)
}

// Update computes the next value from the previous one and commits it like
// Emit. fn runs while the channel is locked and must not call back into it.
// If fn panics, nothing is committed and the channel stays usable.
func (c *Channel[T]) Update(fn func(prev T) T) {
	next, snapshot := c.commit(fn)
	c.notify(snapshot, next)
}

func (c *Channel[T]) commit(fn func(prev T) T) (T, []registration[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fn(c.value)
	c.value = next
	snapshot := make([]registration[T], len(c.listeners))
	copy(snapshot, c.listeners)
	return next, snapshot
}

// Subscribe registers l. Every call is an independent registration with its
// own handle, even for the same function.
func (c *Channel[T]) Subscribe(l func(T)) Handle {
	if l == nil {
		panic("channel: nil listener")
	}
	h := newHandle()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, registration[T]{handle: h, fn: l})
	return h
}

// Watch implements Source.
func (c *Channel[T]) Watch(fn func()) Handle {
	if fn == nil {
		panic("channel: nil watcher")
	}
	return c.Subscribe(func(T) { fn() })
}

// Unsubscribe removes the registration identified by h. It is idempotent and
// reports whether a registration was removed.
func (c *Channel[T]) Unsubscribe(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.listeners {
		if r.handle == h {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of live registrations.
func (c *Channel[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

func (c *Channel[T]) notify(snapshot []registration[T], v T) {
	for _, r := range snapshot {
		c.call(r, v)
	}
}

func (c *Channel[T]) call(r registration[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("channel_listener_panic",
				log.Channel(c.name),
				slog.Uint64("handle", uint64(r.handle)),
				log.Error(fmt.Errorf("%v", rec)),
			)
		}
	}()
	r.fn(v)
}

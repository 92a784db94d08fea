package binding

import (
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/channel"
)

type subscription struct {
	src    channel.Source
	handle channel.Handle
}

// Subscriptions holds one registration per bound channel key.
// It is not safe for concurrent use; the owning runner serializes access.
type Subscriptions struct {
	subs map[string]subscription
}

// NewSubscriptions returns an empty set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{subs: make(map[string]subscription)}
}

// Rebind drops every existing registration and subscribes to each channel in
// resolved. notify is called with the channel key on every emission; it runs
// inside Channel.Emit and must not block.
func (s *Subscriptions) Rebind(resolved api.Channels, notify func(key string)) {
	s.Release()
	for key, src := range resolved {
		if src == nil {
			continue
		}
		k := key
		h := src.Watch(func() { notify(k) })
		s.subs[key] = subscription{src: src, handle: h}
	}
}

// Release unsubscribes from every channel and returns how many registrations
// were removed.
func (s *Subscriptions) Release() int {
	n := 0
	for key, sub := range s.subs {
		if sub.src.Unsubscribe(sub.handle) {
			n++
		}
		delete(s.subs, key)
	}
	return n
}

// Len returns the number of live registrations.
func (s *Subscriptions) Len() int {
	return len(s.subs)
}

// Keys returns the subscribed channel keys.
func (s *Subscriptions) Keys() []string {
	out := make([]string, 0, len(s.subs))
	for k := range s.subs {
		out = append(out, k)
	}
	return out
}

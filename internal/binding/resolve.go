// Package binding reconciles the channel maps a runner is given with the
// channels it has already bound, and owns the resulting subscriptions.
package binding

import (
	"github.com/petrijr/stepflow/pkg/api"
)

// Resolve computes the channel set a runner should be bound to after being
// handed incoming, given the previously resolved set prev.
//
// When the candidate set has the same keys bound to the same channel
// instances as prev, prev itself is returned with changed == false, so
// callers can skip resubscribing. Channel identity is interface equality,
// which for *channel.Channel is pointer identity.
func Resolve(prev, incoming api.Channels, strategy api.ChannelStrategy) (resolved api.Channels, changed bool) {
	if incoming == nil {
		return nil, prev != nil
	}

	candidate := make(api.Channels, len(incoming))
	switch strategy {
	case api.StrategyReplace:
		for k, src := range incoming {
			candidate[k] = src
		}
	default:
		for k, src := range incoming {
			if bound, ok := prev[k]; ok {
				candidate[k] = bound
				continue
			}
			candidate[k] = src
		}
	}

	if prev != nil && sameBindings(prev, candidate) {
		return prev, false
	}
	return candidate, true
}

func sameBindings(a, b api.Channels) bool {
	if len(a) != len(b) {
		return false
	}
	for k, src := range a {
		other, ok := b[k]
		if !ok || other != src {
			return false
		}
	}
	return true
}

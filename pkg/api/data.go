package api

import "github.com/petrijr/stepflow/pkg/channel"

// Data is a flow data partition: the caller-supplied domain data or the
// flow-owned internal data of a runner.
type Data map[string]any

// Clone returns a shallow copy of d. A nil Data clones to an empty one.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Channels is the resolved set of channels bound to a runner, keyed by
// channel key. Callbacks must treat it as read-only.
type Channels map[string]channel.Source

// Value returns the current value of the channel bound under key, or nil
// when no channel is bound.
func (c Channels) Value(key string) any {
	src, ok := c[key]
	if !ok || src == nil {
		return nil
	}
	return src.Value()
}

// Keys returns the bound channel keys in no particular order.
func (c Channels) Keys() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	return out
}

// Values returns a key -> current value map, convenient for expressions and
// templates.
func (c Channels) Values() map[string]any {
	out := make(map[string]any, len(c))
	for k, src := range c {
		if src != nil {
			out[k] = src.Value()
		}
	}
	return out
}

// ChannelValue returns the value of the channel bound under key as a T.
func ChannelValue[T any](c Channels, key string) (T, bool) {
	v, ok := c.Value(key).(T)
	return v, ok
}

// Scope is what every step callback receives: the two data partitions and
// the bound channels. The runner is the sole owner of Domain and Internal and
// hands them to one callback at a time.
type Scope struct {
	Domain   Data
	Internal Data
	Channels Channels
}

// ChannelEvent is passed to a channel-transition resolver when a bound
// channel emits.
type ChannelEvent struct {
	Scope
	CurrentStep string
	ChannelKey  string
}

// ChannelStrategy decides how a runner reconciles a newly supplied channel
// map with the channels it already bound.
type ChannelStrategy int

const (
	// StrategySticky keeps the first channel bound under a key; later
	// instances for the same key are ignored. New keys are picked up.
	StrategySticky ChannelStrategy = iota
	// StrategyReplace binds whatever instance was supplied last.
	StrategyReplace
)

func (s ChannelStrategy) String() string {
	switch s {
	case StrategySticky:
		return "sticky"
	case StrategyReplace:
		return "replace"
	default:
		return "unknown"
	}
}

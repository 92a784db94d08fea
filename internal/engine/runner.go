package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/petrijr/stepflow/internal/binding"
	"github.com/petrijr/stepflow/internal/mailbox"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/log"
)

// Config describes how to construct a runner.
// Only used inside this module; external callers use the stepflow options.
type Config struct {
	ID          string
	InitialStep string
	Channels    api.Channels
	Strategy    api.ChannelStrategy
	Observer    api.Observer
	Logger      *slog.Logger
	Context     context.Context
}

// runner is the stateful engine instance bound to one flow definition and
// one pair of data partitions.
//
// Every field below "loop-owned" is read and written only by the loop
// goroutine; other goroutines talk to the runner through the mailbox.
type runner struct {
	def     api.Definition
	surface api.Surface

	id       string
	info     api.RunnerInfo
	strategy api.ChannelStrategy
	observer api.Observer
	logger   *slog.Logger

	queue  *mailbox.Queue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once

	// loop-owned
	current     string
	occurrence  uint64
	domain      api.Data
	internal    api.Data
	lastRender  string
	channels    api.Channels
	subs        *binding.Subscriptions
	launched    uint64
	actionInput any
	running     map[uint64]string
	waiters     []chan struct{}
	version     uint64

	// published copy of the loop-owned state for readers on other goroutines
	mu    sync.RWMutex
	state api.State
}

// Ensure runner implements api.Runner.
var _ api.Runner = (*runner)(nil)

// NewRunner validates def, builds a runner over a shallow copy of initial
// and schedules its first evaluation.
func NewRunner(def api.Definition, surface api.Surface, initial api.Data, cfg Config) (api.Runner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, &api.ConfigurationError{Flow: def.Name, Reason: "a surface is required"}
	}

	r := newRunner(def.Clone(), surface, initial, cfg)
	r.start()
	return r, nil
}

func newRunner(def api.Definition, surface api.Surface, initial api.Data, cfg Config) *runner {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	internal := api.Data{}
	if def.NewInternalData != nil {
		internal = def.NewInternalData().Clone()
	}

	current := def.Start
	if cfg.InitialStep != "" {
		current = cfg.InitialStep
	}

	r := &runner{
		def:      def,
		surface:  surface,
		id:       id,
		info:     api.RunnerInfo{ID: id, Flow: def.Name},
		strategy: cfg.Strategy,
		observer: obs,
		logger:   logger.With(log.RunnerID(id), log.FlowName(def.Name)),
		queue:    mailbox.New(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		current:  current,
		domain:   initial.Clone(),
		internal: internal,
		subs:     binding.NewSubscriptions(),
		running:  make(map[uint64]string),
	}
	r.occurrence = 1

	if resolved, changed := binding.Resolve(nil, cfg.Channels, r.strategy); changed {
		r.channels = resolved
		r.subs.Rebind(resolved, r.notifyChannel)
	}
	r.publish()
	return r
}

func (r *runner) start() {
	r.observer.OnRunnerStart(r.ctx, r.info)
	if step, ok := r.def.Steps[r.current]; ok {
		r.observer.OnStepEnter(r.ctx, r.info, r.current, step.Kind)
	}
	_ = r.queue.Enqueue(mailbox.Task{Type: mailbox.TaskEvaluate})
	go r.loop()
}

func (r *runner) loop() {
	defer close(r.done)
	for {
		// The loop outlives r.ctx: only Close, which closes the queue, stops it.
		task, err := r.queue.Dequeue(context.Background())
		if err != nil {
			return
		}
		r.handle(task)
		r.publish()
		r.releaseWaiters()
	}
}

func (r *runner) handle(t mailbox.Task) {
	switch t.Type {
	case mailbox.TaskEvaluate:
		r.evaluate()
	case mailbox.TaskOutput:
		r.handleOutput(t)
	case mailbox.TaskChannel:
		r.handleChannel(t.ChannelKey)
	case mailbox.TaskActionDone:
		r.handleActionDone(t)
	case mailbox.TaskBind:
		incoming, _ := t.Payload.(api.Channels)
		r.bind(incoming)
	case mailbox.TaskBarrier:
		if ch, ok := t.Payload.(chan struct{}); ok {
			r.waiters = append(r.waiters, ch)
		}
	case mailbox.TaskInspect:
		if fn, ok := t.Payload.(func()); ok {
			fn()
		}
	default:
		r.logger.Warn("unknown_task", slog.String("type", string(t.Type)))
	}
}

// releaseWaiters wakes Settle callers once nothing is queued or in flight.
func (r *runner) releaseWaiters() {
	if len(r.waiters) == 0 || len(r.running) > 0 || r.queue.Len() > 0 {
		return
	}
	for _, ch := range r.waiters {
		close(ch)
	}
	r.waiters = nil
}

func (r *runner) publish() {
	st := api.State{
		RunnerID:       r.id,
		Flow:           r.def.Name,
		CurrentStep:    r.current,
		LastRenderStep: r.lastRender,
		Busy:           r.busy(),
		Domain:         r.domain.Clone(),
		Internal:       r.internal.Clone(),
		ChannelKeys:    r.channels.Keys(),
		Version:        r.version,
	}
	r.mu.Lock()
	r.state = st
	r.mu.Unlock()
}

func (r *runner) busy() bool {
	_, ok := r.running[r.occurrence]
	return ok
}

func (r *runner) notifyChannel(key string) {
	_ = r.queue.Enqueue(mailbox.Task{Type: mailbox.TaskChannel, ChannelKey: key})
}

func (r *runner) bind(incoming api.Channels) {
	resolved, changed := binding.Resolve(r.channels, incoming, r.strategy)
	if !changed {
		return
	}
	r.channels = resolved
	r.subs.Rebind(resolved, r.notifyChannel)
	r.logger.Debug("channels_bound", slog.Int("count", r.subs.Len()))
	r.evaluate()
}

func (r *runner) ID() string {
	return r.id
}

func (r *runner) CurrentStep() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.CurrentStep
}

func (r *runner) Busy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Busy
}

func (r *runner) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Version
}

func (r *runner) Snapshot() api.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.state
	st.Domain = st.Domain.Clone()
	st.Internal = st.Internal.Clone()
	st.ChannelKeys = append([]string(nil), st.ChannelKeys...)
	return st
}

func (r *runner) BindChannels(incoming api.Channels) {
	var payload api.Channels
	if incoming != nil {
		payload = make(api.Channels, len(incoming))
		for k, v := range incoming {
			payload[k] = v
		}
	}
	_ = r.queue.Enqueue(mailbox.Task{Type: mailbox.TaskBind, Payload: payload})
}

func (r *runner) Refresh() {
	_ = r.queue.Enqueue(mailbox.Task{Type: mailbox.TaskEvaluate})
}

// Settle must not be called from a step callback or from Surface.Render:
// the loop would wait on itself.
func (r *runner) Settle(ctx context.Context) error {
	ch := make(chan struct{})
	if err := r.queue.Enqueue(mailbox.Task{Type: mailbox.TaskBarrier, Payload: ch}); err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return api.ErrRunnerClosed
		}
		return err
	}
	select {
	case <-ch:
		return nil
	case <-r.done:
		return api.ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inspect runs fn on the loop goroutine and waits for it to return.
func (r *runner) inspect(ctx context.Context, fn func()) error {
	ch := make(chan struct{})
	err := r.queue.Enqueue(mailbox.Task{Type: mailbox.TaskInspect, Payload: func() {
		defer close(ch)
		fn()
	}})
	if err != nil {
		return api.ErrRunnerClosed
	}
	select {
	case <-ch:
		return nil
	case <-r.done:
		return api.ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close must not be called from a step callback or from Surface.Render.
func (r *runner) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.queue.Close()
		<-r.done

		released := r.subs.Release()
		r.channels = nil
		r.publish()
		r.logger.Debug("runner_closed", slog.Int("released_subscriptions", released))
		r.observer.OnRunnerClosed(context.WithoutCancel(r.ctx), r.info)
	})
	return nil
}

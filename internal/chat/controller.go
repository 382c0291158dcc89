package chat

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/hooks"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/soyeahso/botkit/internal/vec"
)

// Controller owns one conversation. Every mutation goes through the
// controller, which applies it and notifies plugins while holding a gate so
// plugins observe mutations one batch at a time and in dispatch order.
type Controller struct {
	client  llm.Client
	hooks   *hooks.Manager
	log     *logging.Logger
	plugins plugins

	// gate is held for apply + notify.
	gate sync.Mutex

	// stateMu guards writes to state against concurrent State calls.
	stateMu sync.RWMutex
	state   State

	queueMu sync.Mutex
	queue   [][]StateMutation
}

// Option configures a Controller.
type Option func(*Controller)

// WithHooks emits lifecycle events to m.
func WithHooks(m *hooks.Manager) Option {
	return func(c *Controller) { c.hooks = m }
}

// WithPlugins appends plugins in order.
func WithPlugins(ps ...Plugin) Option {
	return func(c *Controller) {
		for _, p := range ps {
			c.plugins.add(p, false)
		}
	}
}

// WithState seeds the initial state.
func WithState(s State) Option {
	return func(c *Controller) { c.state = s.Clone() }
}

func NewController(client llm.Client, log *logging.Logger, opts ...Option) *Controller {
	log = log.Sub("chat")
	c := &Controller{client: client, log: log}
	c.plugins.log = log
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client returns the backend replies are requested from.
func (c *Controller) Client() llm.Client { return c.client }

// AppendPlugin registers p to be notified after the existing plugins.
func (c *Controller) AppendPlugin(p Plugin) PluginID { return c.plugins.add(p, false) }

// PrependPlugin registers p to be notified before the existing plugins.
func (c *Controller) PrependPlugin(p Plugin) PluginID { return c.plugins.add(p, true) }

func (c *Controller) RemovePlugin(id PluginID) bool { return c.plugins.remove(id) }

// State returns a copy of the current state. It is safe to call from plugin
// hooks.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state.Clone()
}

// Read calls fn with the current state without copying it. fn must not
// retain the state or dispatch.
func (c *Controller) Read(fn func(*State)) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	fn(&c.state)
}

// DispatchMutation applies m and notifies plugins.
func (c *Controller) DispatchMutation(m StateMutation) {
	c.DispatchMutations(m)
}

// DispatchMutations applies muts as one batch. Plugins see a single
// notification for the batch. Mutations deferred by plugins meanwhile are
// dispatched before this returns. It must not be called from plugin hooks.
func (c *Controller) DispatchMutations(muts ...StateMutation) {
	if len(muts) == 0 {
		return
	}
	c.enqueue(muts)
	c.gate.Lock()
	c.drain()
}

// Defer queues muts as one batch. Called from a plugin hook, the batch is
// dispatched after the current one. Called from anywhere else, it is
// dispatched right away unless a dispatch is already running, in which case
// that dispatch picks it up.
func (c *Controller) Defer(muts ...StateMutation) {
	if len(muts) == 0 {
		return
	}
	c.enqueue(muts)
	if c.gate.TryLock() {
		c.drain()
	}
}

// DispatchFunc dispatches the batch fn computes from the current state, with
// no other dispatch in between. Like DispatchMutations it must not be called
// from plugin hooks.
func (c *Controller) DispatchFunc(fn func(*State) []StateMutation) {
	c.gate.Lock()
	if muts := fn(&c.state); len(muts) > 0 {
		c.queueMu.Lock()
		c.queue = append([][]StateMutation{slices.Clone(muts)}, c.queue...)
		c.queueMu.Unlock()
	}
	c.drain()
}

func (c *Controller) enqueue(muts []StateMutation) {
	c.queueMu.Lock()
	c.queue = append(c.queue, slices.Clone(muts))
	c.queueMu.Unlock()
}

func (c *Controller) dequeue() ([]StateMutation, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	batch := c.queue[0]
	c.queue = c.queue[1:]
	return batch, true
}

func (c *Controller) queued() bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue) > 0
}

// drain runs with the gate held and releases it. After unlocking it checks
// the queue once more, so a batch deferred by another goroutine between the
// last dequeue and the unlock is not left behind.
func (c *Controller) drain() {
	for {
		var recent []StateMutation
		for {
			batch, ok := c.dequeue()
			if !ok {
				break
			}
			c.dispatch(batch)
			recent = append(recent, batch...)
		}
		if len(recent) > 0 {
			for _, p := range c.plugins.snapshot() {
				p.OnStateReady(&c.state, recent)
			}
		}
		if c.queued() {
			continue
		}
		c.gate.Unlock()
		if !c.queued() || !c.gate.TryLock() {
			return
		}
	}
}

func (c *Controller) dispatch(batch []StateMutation) {
	change := Change{
		Mutations: batch,
		Effects:   make([][]vec.Effect[domain.Message], len(batch)),
	}

	c.stateMu.Lock()
	for i, m := range batch {
		if m.Kind == MutMessages {
			change.Effects[i] = m.Messages.Effects(c.state.Messages)
		}
		c.state.apply(m)
	}
	c.stateMu.Unlock()

	if e := c.log.Trace(); e.Enabled() {
		kinds := make([]string, len(batch))
		for i, m := range batch {
			kinds[i] = m.Kind.String()
		}
		e.Strs("mutations", kinds).Int("messages", len(c.state.Messages)).Msg("dispatch")
	}

	for _, p := range c.plugins.snapshot() {
		p.OnStateMutation(change, &c.state)
	}
}

// Load fetches the bot roster and stores it with any partial errors.
func (c *Controller) Load(ctx context.Context) llm.Result[[]domain.Bot] {
	r := c.client.Bots(ctx)
	bots, _ := r.Value()
	c.DispatchMutations(SetBots(bots), SetLoadErrors(r.Errors()))

	for _, err := range r.Errors() {
		c.log.Warn().Err(err).Msg("bot listing failed")
	}
	c.hooks.Emit(ctx, hooks.EventBotsLoaded, map[string]any{
		"bots":   len(bots),
		"errors": len(r.Errors()),
	})
	return r
}

// Send asks the selected bot to reply to the conversation. The reply is
// streamed into a bot message appended to the conversation; errors are
// appended as app messages after it. The returned result is the last
// snapshot received.
func (c *Controller) Send(ctx context.Context, tools []domain.Tool) llm.Result[domain.MessageContent] {
	// The placeholder index and the history are read under the gate, so a
	// batch queued by another producer lands either before both or after.
	var (
		st    State
		reply domain.Message
		index int
	)
	c.DispatchFunc(func(s *State) []StateMutation {
		st = s.Clone()
		if st.BotID == "" {
			return nil
		}
		reply = domain.NewMessage(domain.FromBot(st.BotID), domain.MessageContent{})
		reply.Metadata.IsWriting = true
		index = len(st.Messages)
		return []StateMutation{PushMessage(reply), SetStreaming(true)}
	})
	if st.BotID == "" {
		err := llm.NewError(llm.ErrUnknown, "No bot selected")
		c.DispatchMutation(PushMessage(domain.AppErrorMessage(err)))
		return llm.Err[domain.MessageContent](err)
	}

	log := c.log.With("bot", st.BotID.String())
	log.Debug().Int("history", len(st.Messages)).Msg("send started")
	c.hooks.Emit(ctx, hooks.EventSendStart, map[string]any{"bot": st.BotID.String()})

	var last llm.Result[domain.MessageContent]
	seen := false
	for r := range c.client.Send(ctx, st.BotID, st.Messages, tools) {
		last, seen = r, true
		if content, ok := r.Value(); ok {
			reply.SetContent(content)
			c.DispatchMutation(UpdateMessage(index, reply))
		}
	}
	if !seen {
		last = llm.Err[domain.MessageContent](streamEndError(ctx))
	}

	reply.Metadata.IsWriting = false
	final := []StateMutation{}
	if reply.Content.IsEmpty() {
		final = append(final, MutateMessages(vec.RemoveAt[domain.Message](index)))
	} else {
		final = append(final, UpdateMessage(index, reply))
	}
	final = append(final, SetStreaming(false))
	if !errors.Is(ctx.Err(), context.Canceled) {
		for _, err := range last.Errors() {
			final = append(final, PushMessage(domain.AppErrorMessage(err)))
		}
	}
	c.DispatchMutations(final...)

	for _, err := range last.Errors() {
		log.Warn().Err(err).Msg("reply failed")
	}
	log.Debug().Int("chars", len(reply.Content.Text)).Msg("send finished")
	c.hooks.Emit(ctx, hooks.EventSendDone, map[string]any{
		"bot":    st.BotID.String(),
		"errors": len(last.Errors()),
	})
	return last
}

func streamEndError(ctx context.Context) *llm.ClientError {
	if err := ctx.Err(); err != nil {
		return llm.NewErrorWithSource(llm.ErrNetwork, "Request cancelled", err)
	}
	return llm.NewError(llm.ErrUnknown, "Stream ended without a reply")
}

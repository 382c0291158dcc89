package publish

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/soyeahso/botkit/internal/vec"
)

// TypeMutation is the envelope type of published changes.
const TypeMutation = "chat.mutation"

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// Change is the data of a TypeMutation envelope.
type Change struct {
	Mutations []Mutation `json:"mutations"`
	Messages  int        `json:"messages"`
	Streaming bool       `json:"streaming"`
}

// Mutation describes one state mutation. Effects are set for message
// mutations and carry the messages inserted or updated.
type Mutation struct {
	Kind      string       `json:"kind"`
	BotID     domain.BotID `json:"bot_id,omitempty"`
	Streaming *bool        `json:"streaming,omitempty"`
	Bots      []string     `json:"bots,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
	Effects   []Effect     `json:"effects,omitempty"`
}

// Effect is one concrete change to the message list.
type Effect struct {
	Kind     string           `json:"kind"` // insert, update or remove
	Index    int              `json:"index"`
	End      int              `json:"end,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
}

// Plugin is a chat plugin publishing every change of one conversation.
// Hooks only queue envelopes; a background worker publishes them, so a slow
// broker never holds up the conversation. When the queue is full, changes
// are dropped and logged.
type Plugin struct {
	chat.BasePlugin
	pub    Publisher
	chatID string
	log    *logging.Logger

	// mu guards queue sends against Close.
	mu     sync.Mutex
	closed bool
	queue  chan Envelope
	seq    uint64
	done   chan struct{}
}

// NewPlugin starts the publishing worker. Close stops it.
func NewPlugin(pub Publisher, chatID string, log *logging.Logger) *Plugin {
	p := &Plugin{
		pub:    pub,
		chatID: chatID,
		log:    log.Sub("publish").With("chat", chatID),
		queue:  make(chan Envelope, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// RoutingKey is the key changes of chatID are published under.
func RoutingKey(chatID string) string {
	return "chat." + chatID + ".mutation"
}

func (p *Plugin) OnStateMutation(change chat.Change, state *chat.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Debug().Msg("plugin closed, dropping change")
		return
	}
	p.seq++
	env := Envelope{
		Meta: Meta{
			ID:        uuid.NewString(),
			ChatID:    p.chatID,
			Seq:       p.seq,
			Timestamp: time.Now().UTC(),
		},
		Type: TypeMutation,
		Data: summarize(change, state),
	}
	select {
	case p.queue <- env:
	default:
		p.log.Warn().Uint64("seq", p.seq).Msg("publish queue full, dropping change")
	}
}

func (p *Plugin) run() {
	defer close(p.done)
	for env := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.pub.Publish(ctx, RoutingKey(p.chatID), env); err != nil {
			p.log.Error().Err(err).Uint64("seq", env.Meta.Seq).Msg("publishing change failed")
		}
		cancel()
	}
}

// Close publishes what is queued and stops the worker. Changes notified
// afterwards are dropped.
func (p *Plugin) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

func summarize(change chat.Change, state *chat.State) Change {
	out := Change{
		Messages:  len(state.Messages),
		Streaming: state.IsStreaming,
	}
	for i, m := range change.Mutations {
		pm := Mutation{Kind: m.Kind.String()}
		switch m.Kind {
		case chat.MutSetBotID:
			pm.BotID = m.BotID
		case chat.MutSetStreaming:
			streaming := m.Streaming
			pm.Streaming = &streaming
		case chat.MutSetBots:
			for _, b := range m.Bots {
				pm.Bots = append(pm.Bots, b.ID.String())
			}
		case chat.MutSetLoadErrors:
			for _, e := range m.Errors {
				pm.Errors = append(pm.Errors, e.Error())
			}
		case chat.MutMessages:
			for _, e := range change.Effects[i] {
				pm.Effects = append(pm.Effects, effectOf(e))
			}
		}
		out.Mutations = append(out.Mutations, pm)
	}
	return out
}

func effectOf(e vec.Effect[domain.Message]) Effect {
	switch e.Kind {
	case vec.EffectInsert:
		return Effect{Kind: "insert", Index: e.Index, Messages: e.Items}
	case vec.EffectUpdate:
		return Effect{Kind: "update", Index: e.Index, Messages: []domain.Message{e.To}}
	default:
		return Effect{Kind: "remove", Index: e.Index, End: e.End}
	}
}

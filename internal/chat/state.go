// Package chat owns the state of one conversation and notifies plugins of
// every change to it.
package chat

import (
	"slices"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/vec"
)

// State is the canonical conversation state held by a Controller.
type State struct {
	Messages    []domain.Message
	BotID       domain.BotID // empty when no bot is selected
	IsStreaming bool
	Bots        []domain.Bot
	LoadErrors  []*llm.ClientError
}

// Clone copies the slices of s.
func (s *State) Clone() State {
	out := *s
	out.Messages = slices.Clone(s.Messages)
	out.Bots = slices.Clone(s.Bots)
	out.LoadErrors = slices.Clone(s.LoadErrors)
	return out
}

// Bot looks up a bot of the roster.
func (s *State) Bot(id domain.BotID) (domain.Bot, bool) {
	for _, b := range s.Bots {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bot{}, false
}

// SelectedBot returns the selected bot if it is in the roster.
func (s *State) SelectedBot() (domain.Bot, bool) {
	if s.BotID == "" {
		return domain.Bot{}, false
	}
	return s.Bot(s.BotID)
}

// MutationKind enumerates state mutations.
type MutationKind uint8

const (
	MutSetBotID MutationKind = iota + 1
	MutMessages
	MutSetStreaming
	MutSetBots
	MutSetLoadErrors
)

func (k MutationKind) String() string {
	switch k {
	case MutSetBotID:
		return "set_bot_id"
	case MutMessages:
		return "mutate_messages"
	case MutSetStreaming:
		return "set_streaming"
	case MutSetBots:
		return "set_bots"
	case MutSetLoadErrors:
		return "set_load_errors"
	}
	return "invalid"
}

// StateMutation is one change to State. Only the field matching Kind is used.
type StateMutation struct {
	Kind      MutationKind
	BotID     domain.BotID
	Messages  vec.Mutation[domain.Message]
	Streaming bool
	Bots      []domain.Bot
	Errors    []*llm.ClientError
}

func SetBotID(id domain.BotID) StateMutation {
	return StateMutation{Kind: MutSetBotID, BotID: id}
}

func MutateMessages(m vec.Mutation[domain.Message]) StateMutation {
	return StateMutation{Kind: MutMessages, Messages: m}
}

func SetStreaming(streaming bool) StateMutation {
	return StateMutation{Kind: MutSetStreaming, Streaming: streaming}
}

func SetBots(bots []domain.Bot) StateMutation {
	return StateMutation{Kind: MutSetBots, Bots: bots}
}

func SetLoadErrors(errs []*llm.ClientError) StateMutation {
	return StateMutation{Kind: MutSetLoadErrors, Errors: errs}
}

// PushMessage appends messages.
func PushMessage(msgs ...domain.Message) StateMutation {
	return MutateMessages(vec.PushItems(msgs...))
}

// UpdateMessage replaces the message at index.
func UpdateMessage(index int, msg domain.Message) StateMutation {
	return MutateMessages(vec.UpdateAt(index, msg))
}

func (s *State) apply(m StateMutation) {
	switch m.Kind {
	case MutSetBotID:
		s.BotID = m.BotID
	case MutMessages:
		s.Messages = m.Messages.Apply(s.Messages)
	case MutSetStreaming:
		s.IsStreaming = m.Streaming
	case MutSetBots:
		s.Bots = slices.Clone(m.Bots)
	case MutSetLoadErrors:
		s.LoadErrors = slices.Clone(m.Errors)
	}
}

// Change is what plugins receive for one dispatch. Effects[i] holds the
// message effects of Mutations[i], computed against the messages as they
// were right before that mutation was applied.
type Change struct {
	Mutations []StateMutation
	Effects   [][]vec.Effect[domain.Message]
}

// MessageEffects flattens the message effects in dispatch order.
func (c Change) MessageEffects() []vec.Effect[domain.Message] {
	var out []vec.Effect[domain.Message]
	for _, e := range c.Effects {
		out = append(out, e...)
	}
	return out
}

// Has reports whether the change contains a mutation of kind k.
func (c Change) Has(k MutationKind) bool {
	for _, m := range c.Mutations {
		if m.Kind == k {
			return true
		}
	}
	return false
}

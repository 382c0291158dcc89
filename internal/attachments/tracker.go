// Package attachments persists the attachments of a conversation outside of
// it and deletes them once no message refers to them anymore.
package attachments

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/soyeahso/botkit/internal/vec"
)

const persistTimeout = 30 * time.Second

// Persister stores attachment contents under keys of its choosing.
type Persister interface {
	Persist(ctx context.Context, a domain.Attachment) (key string, err error)
	Delete(ctx context.Context, key string) error
}

// Tracker is a chat plugin. New attachments without a persistence key are
// persisted in the background and the messages holding them are updated
// with the key. Removed attachments that have a key are deleted once the
// conversation settles without them.
type Tracker struct {
	chat.BasePlugin
	c         *chat.Controller
	persister Persister
	log       *logging.Logger
	wg        sync.WaitGroup

	mu         sync.Mutex
	persisting map[string]struct{} // attachment ids
	marked     map[string]domain.Attachment
}

func NewTracker(c *chat.Controller, p Persister, log *logging.Logger) *Tracker {
	return &Tracker{
		c:          c,
		persister:  p,
		log:        log.Sub("attachments"),
		persisting: make(map[string]struct{}),
		marked:     make(map[string]domain.Attachment),
	}
}

func (t *Tracker) OnStateMutation(change chat.Change, _ *chat.State) {
	var persist, remove []domain.Attachment
	for _, e := range change.MessageEffects() {
		switch e.Kind {
		case vec.EffectInsert:
			persist = append(persist, attachmentsOf(e.Items)...)
		case vec.EffectRemove:
			remove = append(remove, attachmentsOf(e.Items)...)
		case vec.EffectUpdate:
			from, to := e.From.Content.Attachments, e.To.Content.Attachments
			remove = append(remove, difference(from, to)...)
			persist = append(persist, difference(to, from)...)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range persist {
		if a.HasPersistenceKey() {
			continue
		}
		if _, busy := t.persisting[a.ID]; busy {
			continue
		}
		t.persisting[a.ID] = struct{}{}
		t.wg.Add(1)
		go t.persist(a)
	}
	for _, a := range remove {
		if a.HasPersistenceKey() {
			t.marked[a.PersistenceKey] = a
		}
	}
}

func (t *Tracker) OnStateReady(state *chat.State, _ []chat.StateMutation) {
	t.mu.Lock()
	if len(t.marked) == 0 {
		t.mu.Unlock()
		return
	}
	for _, m := range state.Messages {
		for _, a := range m.Content.Attachments {
			delete(t.marked, a.PersistenceKey)
		}
	}
	sweep := t.marked
	t.marked = make(map[string]domain.Attachment)
	t.mu.Unlock()

	for key, a := range sweep {
		t.wg.Add(1)
		go t.delete(key, a)
	}
}

// Wait blocks until background persistence and deletion are done.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) persist(a domain.Attachment) {
	defer t.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	key, err := t.persister.Persist(ctx, a)
	if err != nil {
		// The attachment stays in persisting so it is not retried.
		t.log.Error().Err(err).Str("name", a.Name).Msg("persisting attachment failed")
		return
	}
	t.log.Info().Str("name", a.Name).Str("key", key).Msg("attachment persisted")

	t.c.DispatchFunc(func(s *chat.State) []chat.StateMutation {
		var updates []chat.StateMutation
		for i, m := range s.Messages {
			changed := false
			atts := append([]domain.Attachment(nil), m.Content.Attachments...)
			for j := range atts {
				if atts[j].ID == a.ID {
					atts[j].PersistenceKey = key
					changed = true
				}
			}
			if changed {
				m.Content.Attachments = atts
				updates = append(updates, chat.UpdateMessage(i, m))
			}
		}
		return updates
	})

	t.mu.Lock()
	delete(t.persisting, a.ID)
	t.mu.Unlock()
}

func (t *Tracker) delete(key string, a domain.Attachment) {
	defer t.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	t.log.Info().Str("name", a.Name).Str("key", key).Msg("sweeping attachment")
	if err := t.persister.Delete(ctx, key); err != nil {
		t.log.Error().Err(err).Str("name", a.Name).Str("key", key).Msg("sweeping attachment failed")
	}
}

func attachmentsOf(msgs []domain.Message) []domain.Attachment {
	var out []domain.Attachment
	for _, m := range msgs {
		out = append(out, m.Content.Attachments...)
	}
	return out
}

// difference returns the attachments of a that are not in b.
func difference(a, b []domain.Attachment) []domain.Attachment {
	var out []domain.Attachment
	for _, x := range a {
		found := false
		for _, y := range b {
			if x.ID == y.ID && x.PersistenceKey == y.PersistenceKey {
				found = true
				break
			}
		}
		if !found {
			out = append(out, x)
		}
	}
	return out
}

package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/logging"
)

// MultiClient routes calls to one of several registered clients. Bot ids it
// returns are namespaced with the registration key as provider, and Send
// uses that provider to pick the client.
type MultiClient struct {
	state *multiState
}

type multiState struct {
	mu      sync.RWMutex
	clients map[string]Client // routing key → client
	log     *logging.Logger
}

// NewMultiClient creates an empty router.
func NewMultiClient(log *logging.Logger) *MultiClient {
	return &MultiClient{state: &multiState{
		clients: make(map[string]Client),
		log:     log.Sub("llm.multi"),
	}}
}

// Register adds or replaces the client under key.
func (m *MultiClient) Register(key string, client Client) {
	s := m.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[key] = client
	s.log.Info().Str("provider", key).Msg("registered bot client")
}

// Remove drops the client under key. It reports whether one was registered.
func (m *MultiClient) Remove(key string) bool {
	s := m.state
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[key]
	delete(s.clients, key)
	return ok
}

// Resolve returns the client registered under key.
func (m *MultiClient) Resolve(key string) (Client, error) {
	s := m.state
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no client registered for provider %q", key)
}

// Keys returns the registered routing keys in sorted order.
func (m *MultiClient) Keys() []string {
	s := m.state
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.clients))
	for k := range s.clients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prefix namespaces a bot id of the client registered under key.
func Prefix(key string, id domain.BotID) domain.BotID {
	return domain.NewBotID(string(id), key)
}

// Bots queries every client concurrently. Failing clients contribute their
// errors while the bots of the others are still returned.
func (m *MultiClient) Bots(ctx context.Context) Result[[]domain.Bot] {
	keys := m.Keys()
	results := make([]Result[[]domain.Bot], len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		client, err := m.Resolve(key)
		if err != nil {
			// removed since Keys was taken
			results[i] = Ok[[]domain.Bot](nil)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = client.Bots(ctx)
		}()
	}
	wg.Wait()

	var (
		bots []domain.Bot
		errs []*ClientError
	)
	for i, r := range results {
		if list, ok := r.Value(); ok {
			for _, b := range list {
				b.ID = Prefix(keys[i], b.ID)
				bots = append(bots, b)
			}
		}
		if r.HasErrors() {
			m.state.log.Warn().Str("provider", keys[i]).Int("errors", len(r.Errors())).
				Msg("bot enumeration failed")
			errs = append(errs, r.Errors()...)
		}
	}

	switch {
	case len(errs) == 0:
		if bots == nil {
			bots = []domain.Bot{}
		}
		return Ok(bots)
	case len(bots) == 0:
		return Err[[]domain.Bot](errs...)
	default:
		return OkAndErr(bots, errs...)
	}
}

// Send forwards to the client named by the provider part of bot, passing the
// un-prefixed id. An unknown provider fails before any I/O.
func (m *MultiClient) Send(ctx context.Context, bot domain.BotID, messages []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent] {
	inner, key, err := bot.Split()
	if err != nil {
		return Single(Err[domain.MessageContent](NewErrorWithSource(ErrResponse, err.Error(), err)))
	}
	client, err := m.Resolve(key)
	if err != nil {
		return Single(Err[domain.MessageContent](
			NewErrorWithSource(ErrResponse, fmt.Sprintf("Client not found for provider %q", key), err)))
	}
	m.state.log.Debug().Str("provider", key).Str("bot", inner).Msg("routing message")
	return client.Send(ctx, domain.BotID(inner), messages, tools)
}

// Clone shares the routing table with m.
func (m *MultiClient) Clone() Client {
	return &MultiClient{state: m.state}
}

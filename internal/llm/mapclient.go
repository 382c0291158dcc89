package llm

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/botkit/internal/domain"
)

// BotMap transforms a bot list. It must not retain or mutate its input.
type BotMap func([]domain.Bot) []domain.Bot

// MapClient wraps one client and rewrites the bots it enumerates. The map
// runs after every Bots call; Send is forwarded unchanged.
type MapClient struct {
	inner Client
	state *mapState
}

type mapState struct {
	mu sync.RWMutex
	fn BotMap
}

// NewMapClient wraps inner. A nil fn leaves bots untouched.
func NewMapClient(inner Client, fn BotMap) *MapClient {
	return &MapClient{inner: inner, state: &mapState{fn: fn}}
}

// SetMapBots replaces the transform for this client and its clones.
func (c *MapClient) SetMapBots(fn BotMap) {
	c.state.mu.Lock()
	c.state.fn = fn
	c.state.mu.Unlock()
}

// Inner returns the wrapped client.
func (c *MapClient) Inner() Client { return c.inner }

func (c *MapClient) Bots(ctx context.Context) Result[[]domain.Bot] {
	r := c.inner.Bots(ctx)

	c.state.mu.RLock()
	fn := c.state.fn
	c.state.mu.RUnlock()
	if fn == nil {
		return r
	}
	return MapResult(r, func(bots []domain.Bot) []domain.Bot {
		return fn(slices.Clone(bots))
	})
}

func (c *MapClient) Send(ctx context.Context, bot domain.BotID, messages []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent] {
	return c.inner.Send(ctx, bot, messages, tools)
}

func (c *MapClient) Clone() Client {
	return &MapClient{inner: c.inner.Clone(), state: c.state}
}

// ChainBotMaps applies the maps in order.
func ChainBotMaps(maps ...BotMap) BotMap {
	return func(bots []domain.Bot) []domain.Bot {
		for _, m := range maps {
			if m != nil {
				bots = m(bots)
			}
		}
		return bots
	}
}

// FilterBots keeps the bots for which keep returns true.
func FilterBots(keep func(domain.Bot) bool) BotMap {
	return func(bots []domain.Bot) []domain.Bot {
		out := bots[:0:0]
		for _, b := range bots {
			if keep(b) {
				out = append(out, b)
			}
		}
		return out
	}
}

// NonChatKeywords mark models of OpenAI-compatible APIs that cannot chat.
var NonChatKeywords = []string{
	"dall-e",
	"whisper",
	"tts",
	"davinci",
	"audio",
	"babbage",
	"moderation",
	"embedding",
}

// DenyBotKeywords drops bots whose id contains any of the keywords.
func DenyBotKeywords(keywords ...string) BotMap {
	return FilterBots(func(b domain.Bot) bool {
		for _, k := range keywords {
			if strings.Contains(string(b.ID), k) {
				return false
			}
		}
		return true
	})
}

// AllowBotNames keeps only bots whose provider-local id or name is listed.
// An empty list allows everything.
func AllowBotNames(names ...string) BotMap {
	if len(names) == 0 {
		return nil
	}
	return FilterBots(func(b domain.Bot) bool {
		return slices.Contains(names, b.ID.ID()) || slices.Contains(names, b.Name)
	})
}

// SetBotAvatar replaces the avatar of every bot.
func SetBotAvatar(avatar domain.EntityAvatar) BotMap {
	return func(bots []domain.Bot) []domain.Bot {
		for i := range bots {
			bots[i].Avatar = avatar
		}
		return bots
	}
}

// AddBotCapability adds c to every bot.
func AddBotCapability(c domain.BotCapability) BotMap {
	return func(bots []domain.Bot) []domain.Bot {
		for i := range bots {
			bots[i].Capabilities.Add(c)
		}
		return bots
	}
}

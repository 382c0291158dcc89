package chat

import (
	"sync"

	"github.com/soyeahso/botkit/internal/logging"
)

// Plugin observes a Controller. Hooks run synchronously while the
// controller is locked, so they see mutations in dispatch order and must
// not call DispatchMutation; use Controller.Defer to queue follow-ups.
type Plugin interface {
	// OnStateMutation is called once per dispatch with the whole batch and
	// the state after it was applied.
	OnStateMutation(change Change, state *State)

	// OnStateReady is called once the controller has no more queued
	// mutations, with every mutation applied since the lock was taken.
	OnStateReady(state *State, recent []StateMutation)
}

// BasePlugin has no-op hooks for embedding.
type BasePlugin struct{}

func (BasePlugin) OnStateMutation(Change, *State) {}
func (BasePlugin) OnStateReady(*State, []StateMutation) {}

// PluginID identifies a registered plugin for removal.
type PluginID uint64

type pluginEntry struct {
	id     PluginID
	plugin Plugin
}

// plugins keeps registered plugins in notification order.
type plugins struct {
	mu      sync.RWMutex
	entries []pluginEntry
	next    PluginID
	log     *logging.Logger
}

func (p *plugins) add(pl Plugin, front bool) PluginID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	e := pluginEntry{id: p.next, plugin: pl}
	if front {
		p.entries = append([]pluginEntry{e}, p.entries...)
	} else {
		p.entries = append(p.entries, e)
	}
	p.log.Debug().Uint64("id", uint64(e.id)).Bool("prepend", front).Msg("plugin registered")
	return e.id
}

func (p *plugins) remove(id PluginID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if e.id == id {
			p.entries = append(p.entries[:i:i], p.entries[i+1:]...)
			p.log.Debug().Uint64("id", uint64(id)).Msg("plugin removed")
			return true
		}
	}
	return false
}

// snapshot returns the plugins in order. Registration during a dispatch
// takes effect from the next one.
func (p *plugins) snapshot() []Plugin {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Plugin, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.plugin
	}
	return out
}

func (p *plugins) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

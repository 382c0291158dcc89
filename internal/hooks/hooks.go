// Package hooks lets callers observe controller lifecycle events such as a
// reply starting or finishing. Unlike chat plugins, hooks run outside the
// controller lock and never see individual mutations.
package hooks

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/botkit/internal/logging"
)

// Event names.
const (
	EventBotsLoaded = "bots_loaded"
	EventSendStart  = "send_start"
	EventSendDone   = "send_done"
)

// Payload carries event data to handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles one event. A returned error is logged and does not stop
// the remaining handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager keeps handlers per event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a named handler for event.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes the handlers registered under name for event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(slices.Clone(m.handlers[event]), func(h namedHandler) bool {
		return h.name == name
	})
}

func (m *Manager) handlersFor(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

// Emit runs the handlers of event in registration order. A nil Manager
// ignores events.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	p := Payload{Event: event, Data: data}
	for _, h := range m.handlersFor(event) {
		if err := h.handler(ctx, p); err != nil {
			m.log.Warn().Err(err).Str("event", event).Str("handler", h.name).Msg("hook failed")
		}
	}
}

// Count returns the number of handlers for event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

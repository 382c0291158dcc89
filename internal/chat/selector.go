package chat

import "sync/atomic"

// DefaultBotSelector selects the first bot of the roster the first time the
// controller settles with bots available and nothing selected. It does so at
// most once, so a later deselection by the user sticks.
type DefaultBotSelector struct {
	BasePlugin
	c    *Controller
	done atomic.Bool
}

func NewDefaultBotSelector(c *Controller) *DefaultBotSelector {
	return &DefaultBotSelector{c: c}
}

func (s *DefaultBotSelector) OnStateReady(state *State, _ []StateMutation) {
	if s.done.Load() || len(state.Bots) == 0 {
		return
	}
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	if state.BotID != "" {
		return
	}
	s.c.Defer(SetBotID(state.Bots[0].ID))
}

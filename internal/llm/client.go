// Package llm defines the client contract shared by every bot backend and
// the wrappers that compose several backends into one.
//
// A backend streams snapshots rather than deltas: every item sent on the
// channel returned by Send is the complete content of the reply so far, so
// consumers can always replace their previous view with the latest item.
package llm

import (
	"context"

	"github.com/soyeahso/botkit/internal/domain"
)

// Client is implemented by every bot backend.
type Client interface {
	// Bots enumerates the bots offered by the backend.
	Bots(ctx context.Context) Result[[]domain.Bot]

	// Send delivers a conversation to a bot and streams reply snapshots.
	// The channel is closed when the reply is complete, failed, or ctx is
	// cancelled. Cancelling ctx releases the underlying transport.
	Send(ctx context.Context, bot domain.BotID, messages []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent]

	// Clone returns another handle to the same backend state.
	Clone() Client
}

// Stream is the snapshot channel returned by Client.Send.
type Stream = <-chan Result[domain.MessageContent]

// Single returns a closed stream holding r only.
func Single(r Result[domain.MessageContent]) Stream {
	ch := make(chan Result[domain.MessageContent], 1)
	ch <- r
	close(ch)
	return ch
}

// Collect drains s and returns its last snapshot. A stream that ends without
// items yields an unknown error.
func Collect(s Stream) Result[domain.MessageContent] {
	last, seen := Result[domain.MessageContent]{}, false
	for r := range s {
		last, seen = r, true
	}
	if !seen {
		return Err[domain.MessageContent](NewError(ErrUnknown, "stream ended without a reply"))
	}
	return last
}

// Emit sends r unless ctx is done first. It reports whether r was sent.
func Emit[T any](ctx context.Context, ch chan<- Result[T], r Result[T]) bool {
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

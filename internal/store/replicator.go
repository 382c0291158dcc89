package store

import (
	"context"
	"time"

	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/logging"
)

const replicateTimeout = 10 * time.Second

// Replicator is a chat plugin mirroring one conversation into the database.
// Write failures are logged and leave the conversation untouched.
type Replicator struct {
	chat.BasePlugin
	db     *DB
	chatID string
	log    *logging.Logger
}

// NewReplicator creates the chat row if needed and returns the plugin.
func NewReplicator(ctx context.Context, db *DB, chatID string) (*Replicator, error) {
	if err := db.EnsureChat(ctx, chatID); err != nil {
		return nil, err
	}
	return &Replicator{db: db, chatID: chatID, log: db.log.With("chat", chatID)}, nil
}

func (r *Replicator) OnStateMutation(change chat.Change, _ *chat.State) {
	ctx, cancel := context.WithTimeout(context.Background(), replicateTimeout)
	defer cancel()

	for _, m := range change.Mutations {
		switch m.Kind {
		case chat.MutMessages:
			retitled, err := r.db.ApplyMessages(ctx, r.chatID, m.Messages)
			if err != nil {
				r.log.Error().Err(err).Str("mutation", m.Messages.Kind.String()).Msg("replicating messages failed")
				continue
			}
			if retitled {
				r.log.Debug().Msg("chat title updated")
			}
		case chat.MutSetBotID:
			// Clearing the selection, e.g. when the bot went away, keeps the
			// last bot so the chat can restore it.
			if m.BotID == "" {
				continue
			}
			if err := r.db.SetChatBot(ctx, r.chatID, m.BotID); err != nil {
				r.log.Error().Err(err).Msg("replicating bot selection failed")
			}
		}
	}
}

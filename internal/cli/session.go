package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/soyeahso/botkit/internal/attachments"
	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/config"
	"github.com/soyeahso/botkit/internal/hooks"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/publish"
	"github.com/soyeahso/botkit/internal/store"
)

// session is one conversation with its observers wired up: the SQLite
// replica, attachment persistence, AMQP publishing and the stream printer.
type session struct {
	chatID  string
	ctl     *chat.Controller
	hooks   *hooks.Manager
	printer *streamPrinter

	db        *store.DB
	replicaID chat.PluginID
	tracker   *attachments.Tracker
	trackerID chat.PluginID
	publisher *publish.AMQPPublisher
	relay     *publish.Plugin
	relayID   chat.PluginID
}

type sessionOptions struct {
	chatID  string
	noStore bool
	out     io.Writer
}

func openSession(ctx context.Context, c *config.Config, client llm.Client, opts sessionOptions) (_ *session, err error) {
	s := &session{chatID: opts.chatID, hooks: hooks.NewManager(log)}
	if s.chatID == "" {
		s.chatID = uuid.NewString()
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var initial chat.State
	if !opts.noStore && !c.Store.Disabled {
		if err := paths.EnsureDirs(); err != nil {
			return nil, err
		}
		s.db, err = store.Open(paths.StorePath(c), log)
		if err != nil {
			return nil, err
		}
		initial, err = storedState(ctx, s.db, s.chatID)
		if err != nil {
			return nil, err
		}
	}

	s.ctl = chat.NewController(client, log, chat.WithHooks(s.hooks), chat.WithState(initial))
	s.printer = newStreamPrinter(opts.out)
	s.ctl.AppendPlugin(s.printer)
	s.hooks.On(hooks.EventSendDone, "cli.printer", func(context.Context, hooks.Payload) error {
		s.printer.finish()
		return nil
	})

	if s.db != nil {
		rep, err := store.NewReplicator(ctx, s.db, s.chatID)
		if err != nil {
			return nil, err
		}
		s.replicaID = s.ctl.AppendPlugin(rep)
		s.tracker = attachments.NewTracker(s.ctl, store.NewBlobPersister(s.db), log)
		s.trackerID = s.ctl.AppendPlugin(s.tracker)
	}

	if c.Publish.URL != "" {
		s.publisher, err = publish.Dial(ctx, c.Publish.URL, c.Publish.Exchange, c.Publish.Attempts, log)
		if err != nil {
			return nil, fmt.Errorf("publishing: %w", err)
		}
		s.relay = publish.NewPlugin(s.publisher, s.chatID, log)
		s.relayID = s.ctl.AppendPlugin(s.relay)
	}
	return s, nil
}

// storedState restores the messages and bot of a chat kept in db.
func storedState(ctx context.Context, db *store.DB, chatID string) (chat.State, error) {
	row, err := db.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrChatNotFound) {
		return chat.State{}, nil
	}
	if err != nil {
		return chat.State{}, err
	}
	msgs, err := db.Messages(ctx, chatID)
	if err != nil {
		return chat.State{}, err
	}
	log.Debug().Str("chat", chatID).Int("messages", len(msgs)).Msg("chat restored")
	return chat.State{Messages: msgs, BotID: row.BotID}, nil
}

// Close waits for background attachment work and releases the session's
// connections. Observers are detached before what they write to is closed.
func (s *session) Close() {
	if s.tracker != nil {
		// Removed first so no new work starts; the replicator stays until
		// the stamping dispatches of pending work are done.
		s.ctl.RemovePlugin(s.trackerID)
		s.tracker.Wait()
	}
	if s.db != nil && s.ctl != nil {
		s.ctl.RemovePlugin(s.replicaID)
	}
	if s.relay != nil {
		s.ctl.RemovePlugin(s.relayID)
		s.relay.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing publisher")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing store")
		}
	}
}

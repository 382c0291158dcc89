package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/vec"
)

// ErrChatNotFound is returned for unknown chat ids.
var ErrChatNotFound = errors.New("chat not found")

const (
	defaultTitle  = "New Chat"
	maxTitleRunes = 60
)

// Chat is a stored conversation without its messages.
type Chat struct {
	ID        string
	Title     string
	BotID     domain.BotID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnsureChat creates the chat if it does not exist yet.
func (db *DB) EnsureChat(ctx context.Context, id string) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO chats (id, title) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, id, defaultTitle)
	if err != nil {
		return fmt.Errorf("creating chat %s: %w", id, err)
	}
	return nil
}

// GetChat returns the chat or ErrChatNotFound.
func (db *DB) GetChat(ctx context.Context, id string) (Chat, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT id, title, bot_id, created_at, updated_at FROM chats WHERE id = ?`, id)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrChatNotFound
	}
	return c, err
}

// ListChats returns all chats, most recently updated first.
func (db *DB) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, title, bot_id, created_at, updated_at FROM chats ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChat removes the chat and its messages.
func (db *DB) DeleteChat(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting chat %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(s scanner) (Chat, error) {
	var c Chat
	var bot, created, updated string
	if err := s.Scan(&c.ID, &c.Title, &bot, &created, &updated); err != nil {
		return Chat{}, err
	}
	c.BotID = domain.BotID(bot)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.DateTime, s)
	return t
}

// SetChatBot records the bot last selected in the chat.
func (db *DB) SetChatBot(ctx context.Context, chatID string, bot domain.BotID) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE chats SET bot_id = ?, updated_at = datetime('now') WHERE id = ?`, string(bot), chatID)
	if err != nil {
		return fmt.Errorf("setting bot of chat %s: %w", chatID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Messages returns the messages of the chat in order.
func (db *DB) Messages(ctx context.Context, chatID string) ([]domain.Message, error) {
	return queryMessages(ctx, db.sql, chatID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryMessages(ctx context.Context, q querier, chatID string) ([]domain.Message, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT body FROM messages WHERE chat_id = ? ORDER BY position`, chatID)
	if err != nil {
		return nil, fmt.Errorf("loading messages of %s: %w", chatID, err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var m domain.Message
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, fmt.Errorf("decoding message of %s: %w", chatID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ApplyMessages replays a message mutation on the stored copy of the chat in
// one transaction. When an effect touches the first message, the title is
// derived again from whatever message is first afterwards. It reports
// whether that happened.
func (db *DB) ApplyMessages(ctx context.Context, chatID string, m vec.Mutation[domain.Message]) (retitled bool, err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	base, err := queryMessages(ctx, tx, chatID)
	if err != nil {
		return false, err
	}

	effects := m.Effects(base)
	if len(effects) == 0 {
		return false, tx.Rollback()
	}

	from := len(base)
	for _, e := range effects {
		retitled = retitled || e.Index == 0
		from = min(from, e.Index)
	}
	next := m.Apply(base)

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM messages WHERE chat_id = ? AND position >= ?`, chatID, from); err != nil {
		return false, fmt.Errorf("replacing messages: %w", err)
	}
	for i := from; i < len(next); i++ {
		body, err := json.Marshal(next[i])
		if err != nil {
			return false, fmt.Errorf("encoding message %d: %w", i, err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO messages (chat_id, position, body) VALUES (?, ?, ?)`, chatID, i, string(body)); err != nil {
			return false, fmt.Errorf("writing message %d: %w", i, err)
		}
	}

	if retitled {
		_, err = tx.ExecContext(ctx,
			`UPDATE chats SET title = ?, updated_at = datetime('now') WHERE id = ?`, titleFrom(next), chatID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE chats SET updated_at = datetime('now') WHERE id = ?`, chatID)
	}
	if err != nil {
		return false, fmt.Errorf("touching chat: %w", err)
	}
	return retitled, tx.Commit()
}

// titleFrom derives a title from the first line of the first message.
func titleFrom(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return defaultTitle
	}
	title, _, _ := strings.Cut(strings.TrimSpace(msgs[0].Content.Text), "\n")
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
	}
	return title
}

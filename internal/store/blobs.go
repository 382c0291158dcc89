package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/soyeahso/botkit/internal/domain"
)

// ErrBlobNotFound is returned for unknown persistence keys.
var ErrBlobNotFound = errors.New("attachment blob not found")

// BlobPersister stores attachment contents in the attachments table, keyed
// by a persistence key it generates.
type BlobPersister struct {
	db *DB
}

func NewBlobPersister(db *DB) *BlobPersister {
	return &BlobPersister{db: db}
}

// Persist writes the attachment content and returns its new key.
func (p *BlobPersister) Persist(ctx context.Context, a domain.Attachment) (string, error) {
	key := "blob/" + uuid.NewString()
	content := a.Content
	if content == nil {
		content = []byte{}
	}
	_, err := p.db.sql.ExecContext(ctx,
		`INSERT INTO attachments (key, name, content_type, content) VALUES (?, ?, ?, ?)`,
		key, a.Name, a.ContentType, content)
	if err != nil {
		return "", fmt.Errorf("persisting attachment %s: %w", a.Name, err)
	}
	return key, nil
}

// Load reads the content stored under key.
func (p *BlobPersister) Load(ctx context.Context, key string) ([]byte, error) {
	var content []byte
	err := p.db.sql.QueryRowContext(ctx, `SELECT content FROM attachments WHERE key = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading attachment %s: %w", key, err)
	}
	return content, nil
}

// Delete removes the content stored under key. Unknown keys are ignored.
func (p *BlobPersister) Delete(ctx context.Context, key string) error {
	if _, err := p.db.sql.ExecContext(ctx, `DELETE FROM attachments WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting attachment %s: %w", key, err)
	}
	return nil
}

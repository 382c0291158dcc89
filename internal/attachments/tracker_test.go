package attachments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/soyeahso/botkit/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	deleted []string
	calls   int
	fail    bool
}

func newMemPersister() *memPersister {
	return &memPersister{blobs: make(map[string][]byte)}
}

func (p *memPersister) Persist(_ context.Context, a domain.Attachment) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return "", errors.New("disk full")
	}
	key := fmt.Sprintf("key-%d", p.calls)
	p.blobs[key] = a.Content
	return key, nil
}

func (p *memPersister) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blobs, key)
	p.deleted = append(p.deleted, key)
	return nil
}

func setup(t *testing.T) (*chat.Controller, *Tracker, *memPersister) {
	t.Helper()
	log := logging.New(nil, "silent")
	c := chat.NewController(&llm.MockClient{}, log)
	p := newMemPersister()
	tr := NewTracker(c, p, log)
	c.AppendPlugin(tr)
	return c, tr, p
}

func withAttachment(text string, a domain.Attachment) domain.Message {
	return domain.NewMessage(domain.FromUser, domain.MessageContent{
		Text:        text,
		Attachments: []domain.Attachment{a},
	})
}

func TestTrackerPersistsAndStampsKey(t *testing.T) {
	c, tr, p := setup(t)
	a := domain.NewAttachment("cat.png", "image/png", []byte("meow"))

	c.DispatchMutation(chat.PushMessage(withAttachment("look", a)))
	tr.Wait()

	st := c.State()
	require.Len(t, st.Messages, 1)
	got := st.Messages[0].Content.Attachments[0]
	assert.Equal(t, "key-1", got.PersistenceKey)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, []byte("meow"), p.blobs["key-1"])

	// The stamping update does not persist again.
	assert.Equal(t, 1, p.calls)
}

func TestTrackerSweepsRemovedAttachments(t *testing.T) {
	c, tr, p := setup(t)
	a := domain.NewAttachment("a.txt", "text/plain", []byte("a"))
	b := domain.NewAttachment("b.txt", "text/plain", []byte("b"))

	c.DispatchMutation(chat.PushMessage(withAttachment("a", a), withAttachment("b", b)))
	tr.Wait()
	require.Len(t, p.blobs, 2)

	st := c.State()
	keyA := st.Messages[0].Content.Attachments[0].PersistenceKey

	c.DispatchMutation(chat.MutateMessages(vec.RemoveAt[domain.Message](0)))
	tr.Wait()

	assert.Equal(t, []string{keyA}, p.deleted)
	assert.Len(t, p.blobs, 1)
}

func TestTrackerKeepsMovedAttachments(t *testing.T) {
	c, tr, p := setup(t)
	a := domain.NewAttachment("a.txt", "text/plain", []byte("a"))

	c.DispatchMutation(chat.PushMessage(withAttachment("a", a)))
	tr.Wait()

	// Removed and inserted again within one dispatch.
	moved := c.State().Messages[0]
	c.DispatchMutations(
		chat.MutateMessages(vec.ClearAll[domain.Message]()),
		chat.PushMessage(domain.NewMessage(domain.FromUser, domain.MessageContent{Text: "first"}), moved),
	)
	tr.Wait()

	assert.Empty(t, p.deleted)
	assert.Len(t, p.blobs, 1)
}

func TestTrackerUpdateReplacingAttachment(t *testing.T) {
	c, tr, p := setup(t)
	a := domain.NewAttachment("a.txt", "text/plain", []byte("a"))
	c.DispatchMutation(chat.PushMessage(withAttachment("m", a)))
	tr.Wait()

	old := c.State().Messages[0]
	oldKey := old.Content.Attachments[0].PersistenceKey
	b := domain.NewAttachment("b.txt", "text/plain", []byte("b"))
	old.Content.Attachments = []domain.Attachment{b}
	c.DispatchMutation(chat.UpdateMessage(0, old))
	tr.Wait()

	assert.Equal(t, []string{oldKey}, p.deleted)
	assert.Equal(t, "key-2", c.State().Messages[0].Content.Attachments[0].PersistenceKey)
}

func TestTrackerPersistFailureNotRetried(t *testing.T) {
	c, tr, p := setup(t)
	p.fail = true
	a := domain.NewAttachment("a.txt", "text/plain", []byte("a"))

	c.DispatchMutation(chat.PushMessage(withAttachment("m", a)))
	tr.Wait()
	assert.False(t, c.State().Messages[0].Content.Attachments[0].HasPersistenceKey())

	// Another insert of the same attachment is skipped.
	c.DispatchMutation(chat.PushMessage(withAttachment("again", a)))
	tr.Wait()
	assert.Equal(t, 1, p.calls)
}

func TestDifference(t *testing.T) {
	a := domain.NewAttachment("a", "", nil)
	b := domain.NewAttachment("b", "", nil)
	keyed := a
	keyed.PersistenceKey = "k"

	assert.Equal(t, []domain.Attachment{b}, difference([]domain.Attachment{a, b}, []domain.Attachment{a}))
	assert.Len(t, difference([]domain.Attachment{a}, []domain.Attachment{keyed}), 1)
	assert.Empty(t, difference(nil, []domain.Attachment{a}))
}

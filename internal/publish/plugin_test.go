package publish

import (
	"context"
	"encoding/json"
	"errors"
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

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	envs []Envelope
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, key string, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.envs = append(f.envs, env)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func TestPluginPublishesChanges(t *testing.T) {
	pub := &fakePublisher{}
	p := NewPlugin(pub, "c1", silentLog())
	c := chat.NewController(&llm.MockClient{}, silentLog(), chat.WithPlugins(p))

	bot := domain.NewBotID("m", "p")
	first := domain.NewMessage(domain.FromUser, domain.MessageContent{Text: "hi"})
	c.DispatchMutations(chat.SetBotID(bot), chat.PushMessage(first))
	c.DispatchMutations(
		chat.UpdateMessage(0, domain.NewMessage(domain.FromUser, domain.MessageContent{Text: "hey"})),
		chat.SetStreaming(true),
	)
	c.DispatchMutation(chat.MutateMessages(vec.RemoveAt[domain.Message](0)))
	p.Close()

	require.Len(t, pub.envs, 3)
	assert.Equal(t, []string{"chat.c1.mutation", "chat.c1.mutation", "chat.c1.mutation"}, pub.keys)

	env := pub.envs[0]
	assert.Equal(t, TypeMutation, env.Type)
	assert.Equal(t, "c1", env.Meta.ChatID)
	assert.Equal(t, uint64(1), env.Meta.Seq)
	assert.NotEmpty(t, env.Meta.ID)

	data := env.Data.(Change)
	require.Len(t, data.Mutations, 2)
	assert.Equal(t, "set_bot_id", data.Mutations[0].Kind)
	assert.Equal(t, bot, data.Mutations[0].BotID)
	require.Len(t, data.Mutations[1].Effects, 1)
	assert.Equal(t, "insert", data.Mutations[1].Effects[0].Kind)
	assert.Equal(t, "hi", data.Mutations[1].Effects[0].Messages[0].Content.Text)
	assert.Equal(t, 1, data.Messages)

	data = pub.envs[1].Data.(Change)
	assert.Equal(t, "update", data.Mutations[0].Effects[0].Kind)
	assert.Equal(t, "hey", data.Mutations[0].Effects[0].Messages[0].Content.Text)
	require.NotNil(t, data.Mutations[1].Streaming)
	assert.True(t, *data.Mutations[1].Streaming)
	assert.True(t, data.Streaming)

	data = pub.envs[2].Data.(Change)
	assert.Equal(t, Effect{Kind: "remove", Index: 0, End: 1}, data.Mutations[0].Effects[0])
	assert.Equal(t, 0, data.Messages)
}

func TestPluginEnvelopeJSON(t *testing.T) {
	pub := &fakePublisher{}
	p := NewPlugin(pub, "c2", silentLog())
	c := chat.NewController(&llm.MockClient{}, silentLog(), chat.WithPlugins(p))

	c.DispatchMutations(
		chat.SetBots([]domain.Bot{{ID: domain.NewBotID("a", "p")}}),
		chat.SetLoadErrors([]*llm.ClientError{llm.NewError(llm.ErrNetwork, "down")}),
	)
	p.Close()

	require.Len(t, pub.envs, 1)
	raw, err := json.Marshal(pub.envs[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "chat.mutation", decoded["type"])
	muts := decoded["data"].(map[string]any)["mutations"].([]any)
	assert.Equal(t, []any{"1;a@p"}, muts[0].(map[string]any)["bots"])
	assert.Equal(t, []any{"Network error: down"}, muts[1].(map[string]any)["errors"])
}

func TestPluginPublishErrorsAreLogged(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewPlugin(pub, "c3", silentLog())
	c := chat.NewController(&llm.MockClient{}, silentLog(), chat.WithPlugins(p))

	c.DispatchMutation(chat.SetStreaming(true))
	c.DispatchMutation(chat.SetStreaming(false))
	p.Close()

	assert.Len(t, pub.envs, 2)
	assert.False(t, c.State().IsStreaming)
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewPlugin(&fakePublisher{}, "c", silentLog())
	p.Close()
	assert.NotPanics(t, p.Close)
}

func TestChangesAfterCloseAreDropped(t *testing.T) {
	pub := &fakePublisher{}
	p := NewPlugin(pub, "c4", silentLog())
	c := chat.NewController(&llm.MockClient{}, silentLog(), chat.WithPlugins(p))

	c.DispatchMutation(chat.SetStreaming(true))
	p.Close()

	assert.NotPanics(t, func() { c.DispatchMutation(chat.SetStreaming(false)) })
	assert.Len(t, pub.envs, 1)
	assert.False(t, c.State().IsStreaming)
}

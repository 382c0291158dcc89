package llm

import (
	"context"

	"github.com/soyeahso/botkit/internal/domain"
)

// MockClient is a test double for Client.
type MockClient struct {
	BotsFunc func(ctx context.Context) Result[[]domain.Bot]
	SendFunc func(ctx context.Context, bot domain.BotID, messages []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent]
}

func (m *MockClient) Bots(ctx context.Context) Result[[]domain.Bot] {
	if m.BotsFunc != nil {
		return m.BotsFunc(ctx)
	}
	return Ok([]domain.Bot{{ID: domain.NewBotID("mock", "mock"), Name: "mock"}})
}

func (m *MockClient) Send(ctx context.Context, bot domain.BotID, messages []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent] {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, bot, messages, tools)
	}
	ch := make(chan Result[domain.MessageContent], 2)
	ch <- Ok(domain.MessageContent{Text: "mock "})
	ch <- Ok(domain.MessageContent{Text: "mock response"})
	close(ch)
	return ch
}

func (m *MockClient) Clone() Client { return m }

// StaticBots returns a BotsFunc that always answers with bots.
func StaticBots(bots ...domain.Bot) func(context.Context) Result[[]domain.Bot] {
	return func(context.Context) Result[[]domain.Bot] { return Ok(bots) }
}

// SnapshotStream returns a SendFunc replaying the given results.
func SnapshotStream(results ...Result[domain.MessageContent]) func(context.Context, domain.BotID, []domain.Message, []domain.Tool) <-chan Result[domain.MessageContent] {
	return func(context.Context, domain.BotID, []domain.Message, []domain.Tool) <-chan Result[domain.MessageContent] {
		ch := make(chan Result[domain.MessageContent], len(results))
		for _, r := range results {
			ch <- r
		}
		close(ch)
		return ch
	}
}

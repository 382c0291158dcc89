package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testBot(id, provider string) domain.Bot {
	return domain.Bot{ID: domain.NewBotID(id, provider), Name: id}
}

// --- Result tests ---

func TestResultConstructorsNeverEmpty(t *testing.T) {
	r := Err[int]()
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, ErrUnknown, r.Errors()[0].Kind())
	assert.False(t, r.HasValue())

	r = OkAndErr(7)
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, ErrUnknown, r.Errors()[0].Kind())
	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	for _, r := range []Result[string]{
		Ok("x"),
		Ok(""),
		Err[string](NewError(ErrNetwork, "down")),
		OkAndErr("partial", NewError(ErrResponse, "cut")),
		OkAndErr[string]("partial"),
		Err[string](),
	} {
		assert.True(t, r.HasValue() || r.HasErrors())
	}
}

func TestResultUnwrap(t *testing.T) {
	v, err := Ok(3).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = OkAndErr(3, NewError(ErrFormat, "bad")).Unwrap()
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrFormat))

	var errs Errors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 1)
}

func TestResultUncheckedInvalidPanics(t *testing.T) {
	r := Unchecked[int](nil, nil)
	assert.False(t, r.HasValue() || r.HasErrors())
	assert.Panics(t, func() { _, _ = r.Unwrap() })

	v := 5
	r = Unchecked(&v, nil)
	got, err := r.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestMapResultClonesErrors(t *testing.T) {
	orig := OkAndErr(2, NewError(ErrNetwork, "lost"))
	mapped := MapResult(orig, func(n int) string { return string(rune('a' + n)) })

	v, ok := mapped.Value()
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	require.Len(t, mapped.Errors(), 1)
	assert.Same(t, orig.Errors()[0], mapped.Errors()[0])

	mapped.Errors()[0] = nil
	assert.NotNil(t, orig.Errors()[0])

	failed := MapResult(Err[int](NewError(ErrFormat, "x")), func(int) string { return "never" })
	assert.False(t, failed.HasValue())
	assert.Equal(t, "fallback", failed.ValueOr("fallback"))
}

// --- ClientError tests ---

func TestClientErrorFormatting(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrNetwork, "Network error: boom"},
		{ErrResponse, "Remote error: boom"},
		{ErrFormat, "Format error: boom"},
		{ErrUnknown, "Unknown error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e := NewError(tt.kind, "boom")
			assert.Equal(t, tt.want, e.Error())
			assert.Equal(t, "boom", e.Message())
		})
	}
}

func TestClientErrorSourceIsShared(t *testing.T) {
	cause := errors.New("connection refused")
	a := NewErrorWithSource(ErrNetwork, "first", cause)
	b := NewErrorWithSource(ErrNetwork, "second", cause)
	assert.ErrorIs(t, a, cause)
	assert.ErrorIs(t, b, cause)
	assert.ErrorIs(t, Errors{a, b}, cause)
	assert.Equal(t, "Network error: first; Network error: second", Errors{a, b}.Error())
}

// --- Stream helper tests ---

func TestSingleAndCollect(t *testing.T) {
	r := Collect(Single(Ok(domain.MessageContent{Text: "hi"})))
	v, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, "hi", v.Text)

	ch := make(chan Result[domain.MessageContent])
	close(ch)
	assert.True(t, Collect(ch).HasErrors())
}

func TestEmitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan Result[int])
	assert.False(t, Emit(ctx, ch, Ok(1)))
}

// --- MultiClient tests ---

func TestMultiClientBotsUnion(t *testing.T) {
	multi := NewMultiClient(silentLog())
	multi.Register("a", &MockClient{BotsFunc: StaticBots(testBot("m1", "https://a.example"))})
	multi.Register("b", &MockClient{BotsFunc: StaticBots(testBot("m2", "https://b.example"), testBot("m3", "https://b.example"))})

	r := multi.Bots(context.Background())
	assert.False(t, r.HasErrors())
	bots, ok := r.Value()
	require.True(t, ok)
	require.Len(t, bots, 3)

	assert.Equal(t, "a", bots[0].ID.Provider())
	assert.Equal(t, domain.NewBotID("m1", "https://a.example"), domain.BotID(bots[0].ID.ID()))
	assert.Equal(t, "b", bots[1].ID.Provider())
	assert.Equal(t, "b", bots[2].ID.Provider())
}

func TestMultiClientPartialFailure(t *testing.T) {
	multi := NewMultiClient(silentLog())
	multi.Register("a", &MockClient{BotsFunc: func(context.Context) Result[[]domain.Bot] {
		return Err[[]domain.Bot](NewError(ErrNetwork, "a is down"))
	}})
	multi.Register("b", &MockClient{BotsFunc: StaticBots(testBot("m2", "b.example"))})

	r := multi.Bots(context.Background())
	assert.True(t, r.HasValue())
	assert.True(t, r.HasErrors())
	bots, _ := r.Value()
	require.Len(t, bots, 1)
	assert.Equal(t, "b", bots[0].ID.Provider())
	assert.Equal(t, "a is down", r.Errors()[0].Message())
}

func TestMultiClientAllFail(t *testing.T) {
	multi := NewMultiClient(silentLog())
	multi.Register("a", &MockClient{BotsFunc: func(context.Context) Result[[]domain.Bot] {
		return Err[[]domain.Bot](NewError(ErrResponse, "401"))
	}})
	r := multi.Bots(context.Background())
	assert.False(t, r.HasValue())
	assert.True(t, r.HasErrors())
}

func TestMultiClientEmpty(t *testing.T) {
	r := NewMultiClient(silentLog()).Bots(context.Background())
	bots, ok := r.Value()
	assert.True(t, ok)
	assert.Empty(t, bots)
}

func TestMultiClientSendRoutesUnprefixed(t *testing.T) {
	inner := domain.NewBotID("gpt-4o", "https://api.openai.com/v1")
	var got domain.BotID
	multi := NewMultiClient(silentLog())
	multi.Register("openai", &MockClient{
		SendFunc: func(ctx context.Context, bot domain.BotID, _ []domain.Message, _ []domain.Tool) <-chan Result[domain.MessageContent] {
			got = bot
			return Single(Ok(domain.MessageContent{Text: "routed"}))
		},
	})

	r := Collect(multi.Send(context.Background(), Prefix("openai", inner), nil, nil))
	v, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, "routed", v.Text)
	assert.Equal(t, inner, got)
}

func TestMultiClientSendUnknownProvider(t *testing.T) {
	called := false
	multi := NewMultiClient(silentLog())
	multi.Register("a", &MockClient{SendFunc: func(context.Context, domain.BotID, []domain.Message, []domain.Tool) <-chan Result[domain.MessageContent] {
		called = true
		return Single(Ok(domain.MessageContent{}))
	}})

	ch := multi.Send(context.Background(), domain.NewBotID("x", "nope"), nil, nil)
	select {
	case r := <-ch:
		require.True(t, r.HasErrors())
		assert.Equal(t, ErrResponse, r.Errors()[0].Kind())
		assert.Contains(t, r.Errors()[0].Message(), `"nope"`)
	default:
		t.Fatal("unknown provider error must be ready immediately")
	}
	assert.False(t, called)
}

func TestMultiClientRegistry(t *testing.T) {
	multi := NewMultiClient(silentLog())
	multi.Register("b", &MockClient{})
	multi.Register("a", &MockClient{})
	assert.Equal(t, []string{"a", "b"}, multi.Keys())

	_, err := multi.Resolve("a")
	require.NoError(t, err)
	assert.True(t, multi.Remove("a"))
	assert.False(t, multi.Remove("a"))
	_, err = multi.Resolve("a")
	assert.Error(t, err)

	clone := multi.Clone().(*MultiClient)
	clone.Register("c", &MockClient{})
	assert.Equal(t, []string{"b", "c"}, multi.Keys())
}

func TestMultiClientNestedComposition(t *testing.T) {
	inner := NewMultiClient(silentLog())
	inner.Register("x", &MockClient{BotsFunc: StaticBots(testBot("m", "p"))})

	outer := NewMultiClient(silentLog())
	outer.Register("group", NewMapClient(inner, SetBotAvatar(domain.TextAvatar("G"))))

	bots, ok := outer.Bots(context.Background()).Value()
	require.True(t, ok)
	require.Len(t, bots, 1)
	assert.Equal(t, "group", bots[0].ID.Provider())
	assert.Equal(t, "x", domain.BotID(bots[0].ID.ID()).Provider())
	assert.Equal(t, "G", bots[0].Avatar.Value)
}

// --- MapClient tests ---

func TestMapClientAppliesOnEveryCall(t *testing.T) {
	available := []domain.Bot{testBot("gpt-4o", "p"), testBot("whisper-1", "p"), testBot("text-embedding-3", "p")}
	mock := &MockClient{BotsFunc: func(context.Context) Result[[]domain.Bot] { return Ok(available) }}
	client := NewMapClient(mock, DenyBotKeywords(NonChatKeywords...))

	bots, _ := client.Bots(context.Background()).Value()
	require.Len(t, bots, 1)
	assert.Equal(t, "gpt-4o", bots[0].Name)

	available = append(available, testBot("o3", "p"))
	bots, _ = client.Bots(context.Background()).Value()
	assert.Len(t, bots, 2)
	assert.Len(t, available, 4, "the inner list must not be modified")
}

func TestMapClientKeepsErrorsAndSend(t *testing.T) {
	mock := &MockClient{BotsFunc: func(context.Context) Result[[]domain.Bot] {
		return OkAndErr([]domain.Bot{testBot("a", "p")}, NewError(ErrNetwork, "flaky"))
	}}
	client := NewMapClient(mock, AllowBotNames("b"))

	r := client.Bots(context.Background())
	bots, ok := r.Value()
	assert.True(t, ok)
	assert.Empty(t, bots)
	assert.True(t, r.HasErrors())

	v, _ := Collect(client.Send(context.Background(), "1;a@p", nil, nil)).Value()
	assert.Equal(t, "mock response", v.Text)
}

func TestMapClientSetMapBotsSharedWithClones(t *testing.T) {
	client := NewMapClient(&MockClient{BotsFunc: StaticBots(testBot("a", "p"))}, nil)
	clone := client.Clone()

	client.SetMapBots(ChainBotMaps(
		SetBotAvatar(domain.ImageAvatar("icon.png")),
		AddBotCapability(domain.CapAttachments),
	))

	bots, _ := clone.Bots(context.Background()).Value()
	require.Len(t, bots, 1)
	assert.Equal(t, domain.ImageAvatar("icon.png"), bots[0].Avatar)
	assert.True(t, bots[0].Capabilities.SupportsAttachments())
}

func TestAllowBotNames(t *testing.T) {
	assert.Nil(t, AllowBotNames())
	bots := AllowBotNames("gpt-4o", "Fancy")([]domain.Bot{
		testBot("gpt-4o", "p"),
		{ID: domain.NewBotID("x", "p"), Name: "Fancy"},
		testBot("o1", "p"),
	})
	assert.Len(t, bots, 2)
}

// --- MockClient tests ---

func TestMockClientDefaults(t *testing.T) {
	m := &MockClient{}
	bots, ok := m.Bots(context.Background()).Value()
	require.True(t, ok)
	assert.Len(t, bots, 1)

	var texts []string
	for r := range m.Send(context.Background(), "", nil, nil) {
		v, _ := r.Value()
		texts = append(texts, v.Text)
	}
	assert.Equal(t, []string{"mock ", "mock response"}, texts)
	assert.Same(t, m, m.Clone())
}

func waitClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream was not closed")
		}
	}
}

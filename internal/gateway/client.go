// Package gateway talks to an OpenClaw gateway: a local agent runtime reached
// over a JSON WebSocket protocol of requests, responses and events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/botkit/internal/delta"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/soyeahso/botkit/internal/version"
)

const (
	// BotName is the local id of the single bot a gateway offers.
	BotName = "openclaw/assistant"

	defaultAgentID          = "main"
	defaultHandshakeTimeout = 10 * time.Second
	maxHistoryMessages      = 32
)

// Client implements llm.Client for one gateway. Every Send opens its own
// connection, which is closed when the reply ends or ctx is cancelled.
type Client struct {
	state *clientState
}

type clientState struct {
	mu               sync.RWMutex
	url              string
	token            string
	agentID          string
	handshakeTimeout time.Duration
	log              *logging.Logger
}

type clientConfig struct {
	url, token, agentID string
	handshakeTimeout    time.Duration
}

func NewClient(url string, log *logging.Logger) *Client {
	return &Client{state: &clientState{
		url:              url,
		agentID:          defaultAgentID,
		handshakeTimeout: defaultHandshakeTimeout,
		log:              log.Sub("gateway"),
	}}
}

// SetToken sets the token sent with connect requests.
func (c *Client) SetToken(token string) error {
	if strings.ContainsAny(token, "\r\n") {
		return fmt.Errorf("invalid gateway token: contains line breaks")
	}
	c.state.mu.Lock()
	c.state.token = token
	c.state.mu.Unlock()
	return nil
}

// SetAgentID selects the gateway agent that answers. Empty restores "main".
func (c *Client) SetAgentID(id string) {
	if id == "" {
		id = defaultAgentID
	}
	c.state.mu.Lock()
	c.state.agentID = id
	c.state.mu.Unlock()
}

func (c *Client) config() clientConfig {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return clientConfig{
		url:              c.state.url,
		token:            c.state.token,
		agentID:          c.state.agentID,
		handshakeTimeout: c.state.handshakeTimeout,
	}
}

func (c *Client) Clone() llm.Client { return &Client{state: c.state} }

// Bots returns the gateway assistant. It does not contact the gateway.
func (c *Client) Bots(context.Context) llm.Result[[]domain.Bot] {
	return llm.Ok([]domain.Bot{{
		ID:     domain.NewBotID(BotName, c.config().url),
		Name:   "OpenClaw Assistant",
		Avatar: domain.TextAvatar("🦞"),
	}})
}

func (c *Client) Send(ctx context.Context, _ domain.BotID, messages []domain.Message, _ []domain.Tool) <-chan llm.Result[domain.MessageContent] {
	ch := make(chan llm.Result[domain.MessageContent])
	go c.stream(ctx, c.config(), historyMessage(messages), ch)
	return ch
}

// historyMessage flattens the tail of the conversation into one prompt,
// since the gateway keeps no history of its own for this client.
func historyMessage(messages []domain.Message) string {
	var b strings.Builder
	for _, m := range messages[max(0, len(messages)-maxHistoryMessages):] {
		var role string
		switch m.From.Kind {
		case domain.EntityUser:
			role = "user"
		case domain.EntitySystem:
			role = "system"
		case domain.EntityBot:
			role = "assistant"
		default:
			continue
		}
		text := strings.TrimSpace(m.Content.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(text)
	}
	if b.Len() > 0 {
		return b.String()
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].From.Kind == domain.EntityUser {
			return strings.TrimSpace(messages[i].Content.Text)
		}
	}
	return ""
}

type action int

const (
	actContinue action = iota
	actYield
	actFail
	actSendConnect
	actSendAgent
	actDone
)

// session is the state of one Send: Connect, Connected, Streaming, then
// Done or an error.
type session struct {
	text      delta.Text
	seqs      delta.SeqSet
	connected bool
	err       *llm.ClientError
}

func (s *session) content() domain.MessageContent {
	return domain.MessageContent{Text: s.text.String()}
}

func (s *session) fail(format string, args ...any) action {
	s.err = llm.NewError(llm.ErrResponse, fmt.Sprintf(format, args...))
	return actFail
}

func (s *session) merge(fragment string, ok bool) action {
	if ok && s.text.Add(fragment) {
		return actYield
	}
	return actContinue
}

func (s *session) handle(f Frame) action {
	switch f.Type {
	case FrameTypeEvent:
		if f.Seq != nil && !s.seqs.Observe(*f.Seq) {
			return actContinue
		}
		return s.handleEvent(f.Event, decodePayload(f.Payload))
	case FrameTypeResponse:
		return s.handleResponse(f)
	}
	return actContinue
}

func (s *session) handleEvent(event string, p payload) action {
	switch event {
	case "connect.challenge":
		if s.connected {
			return actContinue
		}
		return actSendConnect
	case "agent.text", "agent.content":
		return s.merge(p.str("text"))
	case "agent.text.delta", "agent.content.delta":
		return s.merge(p.first("delta", "text"))
	case "agent":
		return s.merge(p.first("data.delta", "data.text", "delta", "text"))
	case "chat":
		if state, _ := p.str("state"); state == "done" || state == "complete" {
			return actDone
		}
	case "agent.error":
		msg, ok := p.first("message", "error")
		if !ok {
			msg = "Unknown error"
		}
		return s.fail("OpenClaw error: %s", msg)
	}
	return actContinue
}

func (s *session) handleResponse(f Frame) action {
	if f.OK == nil || !*f.OK {
		return s.fail("OpenClaw error: %s", f.ErrorMessage())
	}
	p := decodePayload(f.Payload)
	if p == nil {
		return actContinue
	}
	if typ, _ := p.str("type"); typ == "hello-ok" && !s.connected {
		s.connected = true
		return actSendAgent
	}

	status, _ := p.str("status")
	if status != "ok" && status != "completed" {
		return actContinue
	}
	if s.text.String() != "" {
		return actDone
	}
	if summary, ok := p.first("summary", "result.summary", "result.text"); ok {
		s.text.Add(summary)
		return actDone
	}
	var joined strings.Builder
	if result, ok := p["result"].(map[string]any); ok {
		items, _ := result["payloads"].([]any)
		for _, item := range items {
			if text, ok := payload(asMap(item)).str("text"); ok {
				joined.WriteString(text)
			}
		}
	}
	if joined.Len() > 0 {
		s.text.Add(joined.String())
		return actDone
	}
	return actContinue
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func (c *Client) stream(ctx context.Context, cfg clientConfig, history string, ch chan<- llm.Result[domain.MessageContent]) {
	defer close(ch)
	log := c.state.log

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	emit := func(r llm.Result[domain.MessageContent]) { llm.Emit(ctx, ch, r) }

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	log.Debug().Str("url", cfg.url).Msg("connecting")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.url, header)
	if err != nil {
		emit(llm.Err[domain.MessageContent](llm.NewErrorWithSource(llm.ErrNetwork,
			fmt.Sprintf("Failed to connect to OpenClaw Gateway: %v", err), err)))
		return
	}

	frames := make(chan Frame)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	defer func() {
		cancel()
		conn.Close()
		<-readerDone
	}()

	go func() {
		defer close(readerDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				log.Trace().Err(err).Msg("ignoring unparsable frame")
				continue
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	request := func(method string, params any) bool {
		req, err := NewRequest(method, params)
		if err != nil {
			emit(llm.Err[domain.MessageContent](llm.NewErrorWithSource(llm.ErrFormat,
				fmt.Sprintf("Failed to serialize request: %v", err), err)))
			return false
		}
		if err := conn.WriteJSON(req); err != nil {
			emit(llm.Err[domain.MessageContent](llm.NewErrorWithSource(llm.ErrNetwork,
				fmt.Sprintf("Failed to send request: %v", err), err)))
			return false
		}
		return true
	}

	if !request("connect", connectParams(cfg.token)) {
		return
	}

	timer := time.NewTimer(cfg.handshakeTimeout)
	defer timer.Stop()
	handshake := timer.C

	s := &session{}
	for {
		var f Frame
		select {
		case <-ctx.Done():
			return
		case <-handshake:
			if !s.connected {
				emit(llm.Err[domain.MessageContent](llm.NewError(llm.ErrNetwork, "Timed out waiting for OpenClaw handshake")))
				return
			}
			handshake = nil
			continue
		case err := <-readErr:
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				log.Debug().Int("code", closeErr.Code).Msg("connection closed")
				if s.text.String() != "" {
					emit(llm.Ok(s.content()))
				}
				return
			}
			ce := llm.NewErrorWithSource(llm.ErrNetwork, fmt.Sprintf("WebSocket error: %v", err), err)
			if s.text.String() != "" {
				emit(llm.OkAndErr(s.content(), ce))
			} else {
				emit(llm.Err[domain.MessageContent](ce))
			}
			return
		case f = <-frames:
		}

		switch s.handle(f) {
		case actYield:
			emit(llm.Ok(s.content()))
		case actFail:
			emit(llm.Err[domain.MessageContent](s.err))
			return
		case actSendConnect:
			log.Debug().Msg("received connect.challenge")
			if !request("connect", connectParams(cfg.token)) {
				return
			}
		case actSendAgent:
			log.Debug().Msg("connected, sending agent request")
			handshake = nil
			params := AgentParams{Message: history, IdempotencyKey: uuid.NewString(), AgentID: cfg.agentID}
			if !request("agent", params) {
				return
			}
		case actDone:
			emit(llm.Ok(s.content()))
			return
		}
	}
}

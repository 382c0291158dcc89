package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/kaptinlin/jsonrepair"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/version"
)

const (
	modelsTimeout   = 30 * time.Second
	maxErrorBodyLen = 64 << 10
)

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	state *openAIState
}

type openAIState struct {
	mu           sync.RWMutex
	url          string
	key          string
	headers      map[string]string
	toolsEnabled bool
	http         *http.Client
}

// openAIConfig is a consistent copy of the client settings taken before I/O.
type openAIConfig struct {
	url          string
	key          string
	headers      map[string]string
	toolsEnabled bool
}

// NewOpenAIClient creates a client for the API rooted at url,
// e.g. "https://api.openai.com/v1".
func NewOpenAIClient(url string) *OpenAIClient {
	return &OpenAIClient{state: &openAIState{
		url:          strings.TrimSuffix(url, "/"),
		headers:      make(map[string]string),
		toolsEnabled: true,
		http:         &http.Client{},
	}}
}

// SetKey sets the bearer token sent with every request.
func (c *OpenAIClient) SetKey(key string) error {
	if strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("invalid API key: contains line breaks")
	}
	c.state.mu.Lock()
	c.state.key = key
	c.state.mu.Unlock()
	return nil
}

// SetHeader adds an extra header to every request.
func (c *OpenAIClient) SetHeader(name, value string) error {
	if strings.ContainsAny(name+value, "\r\n") {
		return fmt.Errorf("invalid header %q: contains line breaks", name)
	}
	c.state.mu.Lock()
	c.state.headers[name] = value
	c.state.mu.Unlock()
	return nil
}

// SetToolsEnabled controls whether tools are offered to the model.
func (c *OpenAIClient) SetToolsEnabled(enabled bool) {
	c.state.mu.Lock()
	c.state.toolsEnabled = enabled
	c.state.mu.Unlock()
}

func (c *OpenAIClient) config() openAIConfig {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	headers := make(map[string]string, len(c.state.headers))
	for k, v := range c.state.headers {
		headers[k] = v
	}
	return openAIConfig{
		url:          c.state.url,
		key:          c.state.key,
		headers:      headers,
		toolsEnabled: c.state.toolsEnabled,
	}
}

func (c *OpenAIClient) Clone() Client {
	return &OpenAIClient{state: c.state}
}

func (c *OpenAIClient) newRequest(ctx context.Context, cfg openAIConfig, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.url+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.key != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.key)
	}
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Bots lists the models of the API.
func (c *OpenAIClient) Bots(ctx context.Context) Result[[]domain.Bot] {
	cfg := c.config()
	models, cerr := c.fetchModels(ctx, cfg)
	if cerr != nil {
		return Err[[]domain.Bot](cerr)
	}

	caps := domain.NewBotCapabilities(domain.CapAttachments)
	if cfg.toolsEnabled {
		caps.Add(domain.CapFunctionCalling)
	}
	bots := make([]domain.Bot, 0, len(models))
	for _, m := range models {
		bots = append(bots, modelBot(m, cfg.url, caps))
	}
	return Ok(bots)
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// fetchModels returns the sorted model ids served at cfg.url.
func (c *OpenAIClient) fetchModels(ctx context.Context, cfg openAIConfig) ([]string, *ClientError) {
	ctx, cancel := context.WithTimeout(ctx, modelsTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, cfg, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, NewErrorWithSource(ErrUnknown, err.Error(), err)
	}
	resp, err := c.state.http.Do(req)
	if err != nil {
		return nil, NewErrorWithSource(ErrNetwork,
			fmt.Sprintf("Could not send request to %s. Verify your connection and the server status.", cfg.url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, NewErrorWithSource(ErrFormat,
			fmt.Sprintf("Could not parse the models response from %s.", cfg.url), err)
	}
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func modelBot(model, provider string, caps domain.BotCapabilities) domain.Bot {
	avatar, ok := domain.AvatarFromFirstGrapheme(strings.ToUpper(model))
	if !ok {
		avatar = domain.TextAvatar("?")
	}
	return domain.Bot{
		ID:           domain.NewBotID(model, provider),
		Name:         model,
		Avatar:       avatar,
		Capabilities: caps,
	}
}

// responseError turns a non-2xx response into a Response error. HTML error
// pages from proxies are converted to markdown so they stay readable.
func responseError(resp *http.Response) *ClientError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	detail := strings.TrimSpace(string(body))

	var apiErr struct {
		Error json.RawMessage `json:"error"`
	}
	switch {
	case strings.Contains(resp.Header.Get("Content-Type"), "html") || strings.HasPrefix(detail, "<"):
		if md, err := htmltomarkdown.ConvertString(detail); err == nil {
			detail = strings.TrimSpace(md)
		}
	case json.Unmarshal(body, &apiErr) == nil && len(apiErr.Error) > 0:
		if msg := errorMessage(apiErr.Error); msg != "" {
			detail = msg
		}
	}

	msg := fmt.Sprintf("Request failed with status %d", resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return NewError(ErrResponse, msg)
}

// errorMessage extracts a message from an error field that is either a
// string or an object with a message.
func errorMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Message
	}
	return ""
}

// --- chat completions ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content          string         `json:"content"`
			ReasoningContent string         `json:"reasoning_content"`
			Reasoning        string         `json:"reasoning"`
			ToolCalls        []chatToolCall `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Citations []string        `json:"citations"`
	Error     json.RawMessage `json:"error"`
}

// chatMessages converts a conversation to the wire format. App messages are
// local only and never sent.
func chatMessages(messages []domain.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.From.Kind {
		case domain.EntityApp:
			continue
		case domain.EntityTool:
			for _, r := range m.Content.ToolResults {
				out = append(out, chatMessage{Role: "tool", Content: r.Content, ToolCallID: r.ToolCallID})
			}
		case domain.EntityBot:
			msg := chatMessage{Role: "assistant", Content: m.Content.Text}
			for _, call := range m.Content.ToolCalls {
				args, _ := json.Marshal(call.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
					ID:       call.ID,
					Type:     "function",
					Function: chatFunction{Name: call.Name, Arguments: string(args)},
				})
			}
			out = append(out, msg)
		case domain.EntitySystem:
			out = append(out, chatMessage{Role: "system", Content: m.Content.Text})
		default:
			out = append(out, chatMessage{Role: "user", Content: userContent(m.Content)})
		}
	}
	return out
}

func userContent(c domain.MessageContent) any {
	var images []domain.Attachment
	for _, a := range c.Attachments {
		if a.IsImage() && len(a.Content) > 0 {
			images = append(images, a)
		}
	}
	if len(images) == 0 {
		return c.Text
	}
	parts := []contentPart{{Type: "text", Text: c.Text}}
	for _, a := range images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: a.DataURL()}})
	}
	return parts
}

func chatTools(tools []domain.Tool) []chatTool {
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		fn := toolFunction{Name: t.Name, Parameters: t.InputSchema}
		if t.Description != nil {
			fn.Description = *t.Description
		}
		if fn.Parameters == nil {
			fn.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, chatTool{Type: "function", Function: fn})
	}
	return out
}

// Send streams a chat completion.
func (c *OpenAIClient) Send(ctx context.Context, bot domain.BotID, messages []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent] {
	model := bot.ID()
	if model == "" {
		return Single(Err[domain.MessageContent](NewError(ErrResponse, fmt.Sprintf("Invalid bot id %q", bot))))
	}

	cfg := c.config()
	body := chatRequest{Model: model, Messages: chatMessages(messages), Stream: true}
	if cfg.toolsEnabled && len(tools) > 0 {
		body.Tools = chatTools(tools)
	}

	ch := make(chan Result[domain.MessageContent])
	go c.stream(ctx, cfg, body, ch)
	return ch
}

func (c *OpenAIClient) stream(ctx context.Context, cfg openAIConfig, body chatRequest, ch chan<- Result[domain.MessageContent]) {
	defer close(ch)

	req, err := c.newRequest(ctx, cfg, http.MethodPost, "/chat/completions", body)
	if err != nil {
		Emit(ctx, ch, Err[domain.MessageContent](NewErrorWithSource(ErrUnknown, err.Error(), err)))
		return
	}
	resp, err := c.state.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		Emit(ctx, ch, Err[domain.MessageContent](NewErrorWithSource(ErrNetwork,
			fmt.Sprintf("Could not send request to %s. Verify your connection and the server status.", cfg.url), err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		Emit(ctx, ch, Err[domain.MessageContent](responseError(resp)))
		return
	}

	acc := &completionAccumulator{}
	scanner := newEventScanner(resp.Body)
	for scanner.Scan() {
		data := strings.TrimSpace(scanner.Data())
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			Emit(ctx, ch, acc.fail(NewErrorWithSource(ErrFormat,
				"Could not parse the SSE message from the server.", err)))
			return
		}
		if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
			Emit(ctx, ch, acc.fail(NewError(ErrResponse, errorMessage(chunk.Error))))
			return
		}
		if !acc.add(chunk) {
			continue
		}
		if !Emit(ctx, ch, Ok(acc.snapshot())) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() == nil {
			Emit(ctx, ch, acc.fail(NewErrorWithSource(ErrNetwork, "The response stream was interrupted.", err)))
		}
		return
	}

	final := acc.snapshot()
	if errs := acc.argumentErrors(); len(errs) > 0 {
		Emit(ctx, ch, OkAndErr(final, errs...))
		return
	}
	Emit(ctx, ch, Ok(final))
}

// completionAccumulator folds streamed chunks into message content.
type completionAccumulator struct {
	content domain.MessageContent
	calls   []*pendingCall
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// add folds one chunk and reports whether anything changed.
func (a *completionAccumulator) add(chunk chatChunk) bool {
	changed := false
	if len(chunk.Citations) > 0 {
		a.content.Citations = chunk.Citations
		changed = true
	}
	for _, choice := range chunk.Choices {
		d := choice.Delta
		if d.Content != "" {
			a.content.Text += d.Content
			changed = true
		}
		if r := d.ReasoningContent + d.Reasoning; r != "" {
			a.content.Reasoning += r
			changed = true
		}
		for _, tc := range d.ToolCalls {
			idx := len(a.calls)
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(a.calls) <= idx {
				a.calls = append(a.calls, &pendingCall{})
			}
			call := a.calls[idx]
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name += tc.Function.Name
			}
			call.args.WriteString(tc.Function.Arguments)
			changed = true
		}
	}
	return changed
}

// snapshot returns a copy of the current content. Partial tool arguments are
// repaired so every snapshot carries usable JSON objects.
func (a *completionAccumulator) snapshot() domain.MessageContent {
	c := a.content.Clone()
	c.ToolCalls = nil
	for _, call := range a.calls {
		args, _ := parseArguments(call.args.String())
		c.ToolCalls = append(c.ToolCalls, domain.ToolCall{
			ID:               call.id,
			Name:             call.name,
			Arguments:        args,
			PermissionStatus: domain.PermissionPending,
		})
	}
	return c
}

func (a *completionAccumulator) argumentErrors() []*ClientError {
	var errs []*ClientError
	for _, call := range a.calls {
		if _, err := parseArguments(call.args.String()); err != nil {
			errs = append(errs, NewErrorWithSource(ErrFormat,
				fmt.Sprintf("Could not parse the arguments of tool call %q.", call.name), err))
		}
	}
	return errs
}

func (a *completionAccumulator) fail(err *ClientError) Result[domain.MessageContent] {
	c := a.snapshot()
	if c.IsEmpty() {
		return Err[domain.MessageContent](err)
	}
	return OkAndErr(c, err)
}

// parseArguments decodes tool call arguments, repairing truncated or
// slightly malformed JSON. Empty input is an empty object.
func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return map[string]any{}, fmt.Errorf("failed to repair arguments: %w", err)
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return map[string]any{}, fmt.Errorf("failed to parse arguments: %w", err)
	}
	return args, nil
}

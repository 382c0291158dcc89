package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/soyeahso/botkit/internal/version"
)

const (
	defaultVoice              = "alloy"
	defaultTranscriptionModel = "whisper-1"
)

// RealtimeClient opens OpenAI realtime audio sessions. Send answers with a
// single snapshot whose Upgrade carries the live session channel.
type RealtimeClient struct {
	state *realtimeState
}

type realtimeState struct {
	mu           sync.RWMutex
	url          string // wss://host/v1/realtime
	key          string
	systemPrompt string
	voice        string
	log          *logging.Logger
}

type realtimeConfig struct {
	url, key, systemPrompt, voice string
}

func NewRealtimeClient(url string, log *logging.Logger) *RealtimeClient {
	return &RealtimeClient{state: &realtimeState{
		url:   strings.TrimSuffix(url, "/"),
		voice: defaultVoice,
		log:   log.Sub("llm.realtime"),
	}}
}

func (c *RealtimeClient) SetKey(key string) error {
	if strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("invalid API key: contains line breaks")
	}
	c.state.mu.Lock()
	c.state.key = key
	c.state.mu.Unlock()
	return nil
}

// SetSystemPrompt sets the instructions sent when a session starts.
func (c *RealtimeClient) SetSystemPrompt(prompt string) {
	c.state.mu.Lock()
	c.state.systemPrompt = prompt
	c.state.mu.Unlock()
}

func (c *RealtimeClient) SetVoice(voice string) {
	c.state.mu.Lock()
	c.state.voice = voice
	c.state.mu.Unlock()
}

func (c *RealtimeClient) config() realtimeConfig {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return realtimeConfig{url: c.state.url, key: c.state.key, systemPrompt: c.state.systemPrompt, voice: c.state.voice}
}

func (c *RealtimeClient) Clone() Client { return &RealtimeClient{state: c.state} }

// restBase maps the realtime socket URL to the REST root serving /models.
func restBase(wsURL string) string {
	base := strings.TrimSuffix(wsURL, "/realtime")
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}

// Bots lists the realtime models served next to the socket endpoint.
func (c *RealtimeClient) Bots(ctx context.Context) Result[[]domain.Bot] {
	cfg := c.config()
	api := NewOpenAIClient(restBase(cfg.url))
	if err := api.SetKey(cfg.key); err != nil {
		return Err[[]domain.Bot](NewErrorWithSource(ErrUnknown, err.Error(), err))
	}
	models, cerr := api.fetchModels(ctx, api.config())
	if cerr != nil {
		return Err[[]domain.Bot](cerr)
	}
	caps := domain.NewBotCapabilities(domain.CapRealtime, domain.CapFunctionCalling)
	bots := []domain.Bot{}
	for _, m := range models {
		if strings.Contains(m, "realtime") {
			bots = append(bots, modelBot(m, cfg.url, caps))
		}
	}
	return Ok(bots)
}

// Send starts a session for the bot. The session ends when ctx is done, the
// caller sends CmdStopSession or closes Commands, or the remote hangs up.
func (c *RealtimeClient) Send(ctx context.Context, bot domain.BotID, _ []domain.Message, tools []domain.Tool) <-chan Result[domain.MessageContent] {
	model := bot.ID()
	if model == "" {
		return Single(Err[domain.MessageContent](NewError(ErrResponse, fmt.Sprintf("Invalid bot id %q", bot))))
	}

	events := make(chan domain.RealtimeEvent, 64)
	commands := make(chan domain.RealtimeCommand, 16)
	go c.run(ctx, c.config(), model, tools, events, commands)

	return Single(Ok(domain.MessageContent{
		Upgrade: &domain.Upgrade{Realtime: &domain.RealtimeChannel{Events: events, Commands: commands}},
	}))
}

type realtimeSession struct {
	Modalities              []string           `json:"modalities"`
	Instructions            string             `json:"instructions,omitempty"`
	Voice                   string             `json:"voice,omitempty"`
	InputAudioFormat        string             `json:"input_audio_format"`
	OutputAudioFormat       string             `json:"output_audio_format"`
	InputAudioTranscription *transcriptionConf `json:"input_audio_transcription,omitempty"`
	TurnDetection           map[string]any     `json:"turn_detection,omitempty"`
	Tools                   []realtimeTool     `json:"tools,omitempty"`
}

type transcriptionConf struct {
	Model string `json:"model"`
}

type realtimeTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type serverEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta"`
	Transcript string          `json:"transcript"`
	ItemID     string          `json:"item_id"`
	Name       string          `json:"name"`
	CallID     string          `json:"call_id"`
	Arguments  string          `json:"arguments"`
	Error      json.RawMessage `json:"error"`
}

func sessionConfig(cfg realtimeConfig, voice, transcription string, tools []domain.Tool) realtimeSession {
	s := realtimeSession{
		Modalities:              []string{"text", "audio"},
		Instructions:            cfg.systemPrompt,
		Voice:                   voice,
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: &transcriptionConf{Model: transcription},
		TurnDetection:           map[string]any{"type": "server_vad"},
	}
	for _, t := range tools {
		rt := realtimeTool{Type: "function", Name: t.Name, Parameters: t.InputSchema}
		if t.Description != nil {
			rt.Description = *t.Description
		}
		if rt.Parameters == nil {
			rt.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		s.Tools = append(s.Tools, rt)
	}
	return s
}

// translate maps a server event to what callers see. The second return is
// false for events callers do not care about.
func translate(ev serverEvent) (domain.RealtimeEvent, bool) {
	switch ev.Type {
	case "session.updated":
		return domain.RealtimeEvent{Kind: domain.EventSessionReady}, true
	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return domain.RealtimeEvent{Kind: domain.EventError, Message: "invalid audio payload"}, true
		}
		return domain.RealtimeEvent{Kind: domain.EventAudioData, Audio: audio}, true
	case "response.audio_transcript.delta":
		return domain.RealtimeEvent{Kind: domain.EventAudioTranscript, Transcript: ev.Delta}, true
	case "response.audio_transcript.done":
		return domain.RealtimeEvent{Kind: domain.EventAudioTranscriptCompleted, Transcript: ev.Transcript, ItemID: ev.ItemID}, true
	case "conversation.item.input_audio_transcription.completed":
		return domain.RealtimeEvent{Kind: domain.EventUserTranscriptCompleted, Transcript: ev.Transcript, ItemID: ev.ItemID}, true
	case "input_audio_buffer.speech_started":
		return domain.RealtimeEvent{Kind: domain.EventSpeechStarted}, true
	case "input_audio_buffer.speech_stopped":
		return domain.RealtimeEvent{Kind: domain.EventSpeechStopped}, true
	case "response.done":
		return domain.RealtimeEvent{Kind: domain.EventResponseCompleted}, true
	case "response.function_call_arguments.done":
		return domain.RealtimeEvent{Kind: domain.EventFunctionCallRequest, Name: ev.Name, CallID: ev.CallID, Arguments: ev.Arguments}, true
	case "error":
		msg := errorMessage(ev.Error)
		if msg == "" {
			msg = "unknown realtime error"
		}
		return domain.RealtimeEvent{Kind: domain.EventError, Message: msg}, true
	}
	return domain.RealtimeEvent{}, false
}

// frames returns the client events that carry out cmd.
func frames(cfg realtimeConfig, cmd domain.RealtimeCommand, tools []domain.Tool) []map[string]any {
	switch cmd.Kind {
	case domain.CmdSendAudio:
		return []map[string]any{{
			"type":  "input_audio_buffer.append",
			"audio": base64.StdEncoding.EncodeToString(cmd.Audio),
		}}
	case domain.CmdSendText:
		return []map[string]any{{
			"type": "conversation.item.create",
			"item": map[string]any{
				"type":    "message",
				"role":    "user",
				"content": []map[string]any{{"type": "input_text", "text": cmd.Text}},
			},
		}, {"type": "response.create"}}
	case domain.CmdInterrupt:
		return []map[string]any{{"type": "response.cancel"}}
	case domain.CmdUpdateSessionConfig:
		voice, transcription := cmd.Voice, cmd.TranscriptionModel
		if voice == "" {
			voice = cfg.voice
		}
		if transcription == "" {
			transcription = defaultTranscriptionModel
		}
		return []map[string]any{{"type": "session.update", "session": sessionConfig(cfg, voice, transcription, tools)}}
	case domain.CmdCreateGreetingResponse:
		return []map[string]any{{
			"type": "response.create",
			"response": map[string]any{
				"modalities":   []string{"text", "audio"},
				"instructions": "Greet the user briefly and ask how you can help.",
			},
		}}
	case domain.CmdSendFunctionCallResult:
		return []map[string]any{{
			"type": "conversation.item.create",
			"item": map[string]any{"type": "function_call_output", "call_id": cmd.CallID, "output": cmd.Output},
		}, {"type": "response.create"}}
	}
	return nil
}

func (c *RealtimeClient) run(ctx context.Context, cfg realtimeConfig, model string, tools []domain.Tool, events chan<- domain.RealtimeEvent, commands <-chan domain.RealtimeCommand) {
	defer close(events)
	log := c.state.log.With("model", model)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	publish := func(ev domain.RealtimeEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	header.Set("OpenAI-Beta", "realtime=v1")
	if cfg.key != "" {
		header.Set("Authorization", "Bearer "+cfg.key)
	}
	target := cfg.url + "?model=" + url.QueryEscape(model)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		log.Warn().Err(err).Msg("realtime dial failed")
		publish(domain.RealtimeEvent{Kind: domain.EventError, Message: fmt.Sprintf("could not connect to %s: %v", cfg.url, err)})
		return
	}

	readerDone := make(chan struct{})
	defer func() {
		cancel()
		conn.Close()
		<-readerDone
	}()

	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					publish(domain.RealtimeEvent{Kind: domain.EventError, Message: err.Error()})
				}
				return
			}
			var ev serverEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Debug().Err(err).Msg("ignoring unparsable realtime frame")
				continue
			}
			if out, ok := translate(ev); ok && !publish(out) {
				return
			}
		}
	}()

	start := sessionConfig(cfg, cfg.voice, defaultTranscriptionModel, tools)
	if err := conn.WriteJSON(map[string]any{"type": "session.update", "session": start}); err != nil {
		publish(domain.RealtimeEvent{Kind: domain.EventError, Message: err.Error()})
		return
	}
	log.Info().Msg("realtime session started")

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-commands:
			if !ok || cmd.Kind == domain.CmdStopSession {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"))
				log.Info().Msg("realtime session stopped")
				return
			}
			for _, f := range frames(cfg, cmd, tools) {
				if err := conn.WriteJSON(f); err != nil {
					publish(domain.RealtimeEvent{Kind: domain.EventError, Message: err.Error()})
					return
				}
			}
		}
	}
}

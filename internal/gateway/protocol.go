package gateway

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/soyeahso/botkit/internal/version"
)

// Values of Frame.Type.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Frame is one gateway message. Which of the optional fields are set
// depends on Type.
type Frame struct {
	Type string `json:"type"`

	// req; a res echoes the ID
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// event
	Event string  `json:"event,omitempty"`
	Seq   *uint64 `json:"seq,omitempty"`

	// Error is a string or an object with a message.
	Error json.RawMessage `json:"error,omitempty"`
}

// ErrorMessage extracts the human message of a failed response.
func (f Frame) ErrorMessage() string {
	if len(f.Error) == 0 {
		return "Unknown error"
	}
	var s string
	if json.Unmarshal(f.Error, &s) == nil && s != "" {
		return s
	}
	var shape struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(f.Error, &shape) == nil {
		switch {
		case shape.Message != "":
			return shape.Message
		case shape.Code != "":
			return shape.Code
		}
	}
	return "Unknown error"
}

// ProtocolVersion is the gateway protocol spoken by Client.
const ProtocolVersion = 3

// ConnectParams open a session. They go in the first request, "connect".
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Role        string       `json:"role"`
	Scopes      []string     `json:"scopes"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo describes botkit to the gateway.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

// ConnectAuth holds the gateway token.
type ConnectAuth struct {
	Token string `json:"token"`
}

// AgentParams ask the agent to answer one message.
type AgentParams struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
	AgentID        string `json:"agentId"`
}

func connectParams(token string) ConnectParams {
	p := ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Role:        "operator",
		Scopes:      []string{"operator.read", "operator.write"},
		Client: ClientInfo{
			ID:       "gateway-client",
			Version:  version.Version,
			Platform: "desktop",
			Mode:     "cli",
		},
	}
	if token != "" {
		p.Auth = &ConnectAuth{Token: token}
	}
	return p
}

// NewRequest builds a req frame for method under a random id.
func NewRequest(method string, params any) (Frame, error) {
	f := Frame{Type: FrameTypeRequest, ID: uuid.NewString(), Method: method}
	var err error
	f.Params, err = json.Marshal(params)
	return f, err
}

// payload is a decoded frame payload with lenient string lookups.
type payload map[string]any

func decodePayload(raw json.RawMessage) payload {
	var p payload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return nil
	}
	return p
}

// str returns the string at a dotted path such as "data.delta".
func (p payload) str(path string) (string, bool) {
	var cur any = map[string]any(p)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur = m[key]
	}
	s, ok := cur.(string)
	return s, ok
}

// first returns the first string found among paths.
func (p payload) first(paths ...string) (string, bool) {
	for _, path := range paths {
		if s, ok := p.str(path); ok {
			return s, true
		}
	}
	return "", false
}

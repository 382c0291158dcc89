package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// MessageContent is the payload of a message.
type MessageContent struct {
	// Text is the main body, markdown by default.
	Text        string       `json:"text"`
	Citations   []string     `json:"citations,omitempty"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	// Data holds provider-specific content that has no other home.
	Data *string `json:"data,omitempty"`
	// Upgrade is set when the bot switches to a realtime session.
	Upgrade *Upgrade `json:"-"`
}

// IsEmpty reports whether the content carries nothing at all.
func (c MessageContent) IsEmpty() bool {
	return c.Text == "" &&
		len(c.Citations) == 0 &&
		c.Reasoning == "" &&
		len(c.Attachments) == 0 &&
		len(c.ToolCalls) == 0 &&
		len(c.ToolResults) == 0 &&
		c.Data == nil &&
		c.Upgrade == nil
}

// Clone copies the slices of c so the result can be modified independently.
// Attachment bytes and tool arguments are shared.
func (c MessageContent) Clone() MessageContent {
	c.Citations = slices.Clone(c.Citations)
	c.Attachments = slices.Clone(c.Attachments)
	c.ToolCalls = slices.Clone(c.ToolCalls)
	c.ToolResults = slices.Clone(c.ToolResults)
	return c
}

// MessageMetadata is tracked automatically for every message.
type MessageMetadata struct {
	// IsWriting marks a message that is still being streamed. Never persisted.
	IsWriting          bool      `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	ReasoningUpdatedAt time.Time `json:"reasoning_updated_at"`
	TextUpdatedAt      time.Time `json:"text_updated_at"`
}

// NewMessageMetadata stamps every timestamp with the current time.
func NewMessageMetadata() MessageMetadata {
	now := time.Now().UTC()
	return MessageMetadata{CreatedAt: now, ReasoningUpdatedAt: now, TextUpdatedAt: now}
}

// EpochMetadata is used for decoded messages that carry no metadata.
func EpochMetadata() MessageMetadata {
	epoch := time.Unix(0, 0).UTC()
	return MessageMetadata{CreatedAt: epoch, ReasoningUpdatedAt: epoch, TextUpdatedAt: epoch}
}

// ReasoningDuration is how long the reasoning phase took.
func (m MessageMetadata) ReasoningDuration() time.Duration {
	return m.ReasoningUpdatedAt.Sub(m.CreatedAt)
}

// Message is one entry of a conversation.
type Message struct {
	From     EntityID        `json:"from"`
	Metadata MessageMetadata `json:"metadata"`
	Content  MessageContent  `json:"content"`
}

// NewMessage creates a message with fresh metadata.
func NewMessage(from EntityID, content MessageContent) Message {
	return Message{From: from, Metadata: NewMessageMetadata(), Content: content}
}

// AppErrorMessage renders err as an inline message from the app.
func AppErrorMessage(err error) Message {
	return NewMessage(FromApp, MessageContent{Text: fmt.Sprintf("Error: %v", err)})
}

// SetContent replaces the whole content, updating metadata.
func (m *Message) SetContent(content MessageContent) {
	m.UpdateContent(func(c *MessageContent) { *c = content })
}

// UpdateContent edits the content in place and stamps the text and reasoning
// timestamps when those fields changed.
func (m *Message) UpdateContent(fn func(*MessageContent)) {
	text, reasoning := m.Content.Text, m.Content.Reasoning
	now := time.Now().UTC()

	fn(&m.Content)

	if m.Content.Text != text {
		m.Metadata.TextUpdatedAt = now
	}
	if m.Content.Reasoning != reasoning {
		m.Metadata.ReasoningUpdatedAt = now
	}
}

// UnmarshalJSON fills missing metadata with the epoch.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	msg := plain{Metadata: EpochMetadata()}
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	*m = Message(msg)
	return nil
}

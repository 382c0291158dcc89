package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// EntityKind enumerates who can author a message.
type EntityKind uint8

const (
	// EntityApp is the application itself, used for inline errors.
	// It is never sent to bots.
	EntityApp EntityKind = iota
	EntityUser
	EntitySystem
	EntityBot
	EntityTool
)

func (k EntityKind) String() string {
	switch k {
	case EntityUser:
		return "user"
	case EntitySystem:
		return "system"
	case EntityBot:
		return "bot"
	case EntityTool:
		return "tool"
	default:
		return "app"
	}
}

// EntityID identifies the author of a message. Bot is set only for EntityBot.
// The zero value is the app.
type EntityID struct {
	Kind EntityKind
	Bot  BotID
}

var (
	FromUser   = EntityID{Kind: EntityUser}
	FromSystem = EntityID{Kind: EntitySystem}
	FromTool   = EntityID{Kind: EntityTool}
	FromApp    = EntityID{Kind: EntityApp}
)

// FromBot returns the entity id of the given bot.
func FromBot(id BotID) EntityID {
	return EntityID{Kind: EntityBot, Bot: id}
}

// BotID returns the bot behind this entity, if any.
func (e EntityID) BotID() (BotID, bool) {
	return e.Bot, e.Kind == EntityBot
}

func (e EntityID) String() string {
	if e.Kind == EntityBot {
		return "bot:" + string(e.Bot)
	}
	return e.Kind.String()
}

// MarshalJSON encodes plain entities as strings and bots as {"bot": id}.
func (e EntityID) MarshalJSON() ([]byte, error) {
	if e.Kind == EntityBot {
		return json.Marshal(map[string]BotID{"bot": e.Bot})
	}
	return json.Marshal(e.Kind.String())
}

func (e *EntityID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "user":
			*e = FromUser
		case "system":
			*e = FromSystem
		case "tool":
			*e = FromTool
		case "app":
			*e = FromApp
		default:
			return fmt.Errorf("unknown entity %q", s)
		}
		return nil
	}

	var obj struct {
		Bot *BotID `json:"bot"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}
	if obj.Bot == nil {
		return fmt.Errorf("entity object without bot id: %s", data)
	}
	*e = FromBot(*obj.Bot)
	return nil
}

// AvatarKind tells how an avatar value is rendered.
type AvatarKind string

const (
	AvatarText  AvatarKind = "text"
	AvatarImage AvatarKind = "image"
)

// EntityAvatar is either a short text (one or two graphemes) or an image path/URL.
type EntityAvatar struct {
	Kind  AvatarKind `json:"kind"`
	Value string     `json:"value"`
}

func TextAvatar(text string) EntityAvatar { return EntityAvatar{Kind: AvatarText, Value: text} }
func ImageAvatar(url string) EntityAvatar { return EntityAvatar{Kind: AvatarImage, Value: url} }

// AvatarFromFirstGrapheme builds a text avatar from the first user-perceived
// character of text. The second return is false when text is empty.
func AvatarFromFirstGrapheme(text string) (EntityAvatar, bool) {
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(text, -1)
	if cluster == "" {
		return EntityAvatar{}, false
	}
	return TextAvatar(cluster), true
}

// BotCapability is a feature a bot may support.
type BotCapability uint8

const (
	CapRealtime BotCapability = 1 << iota
	CapAttachments
	CapFunctionCalling
)

var capabilityNames = []struct {
	c    BotCapability
	name string
}{
	{CapRealtime, "realtime"},
	{CapAttachments, "attachments"},
	{CapFunctionCalling, "function_calling"},
}

func (c BotCapability) String() string {
	for _, n := range capabilityNames {
		if n.c == c {
			return n.name
		}
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// BotCapabilities is a set of capabilities.
type BotCapabilities uint8

func NewBotCapabilities(caps ...BotCapability) BotCapabilities {
	var s BotCapabilities
	for _, c := range caps {
		s.Add(c)
	}
	return s
}

func (s *BotCapabilities) Add(c BotCapability) { *s |= BotCapabilities(c) }

// With returns a copy of s including c.
func (s BotCapabilities) With(c BotCapability) BotCapabilities { return s | BotCapabilities(c) }

func (s BotCapabilities) Has(c BotCapability) bool { return s&BotCapabilities(c) != 0 }

func (s BotCapabilities) SupportsRealtime() bool { return s.Has(CapRealtime) }
func (s BotCapabilities) SupportsAttachments() bool { return s.Has(CapAttachments) }
func (s BotCapabilities) SupportsFunctionCalling() bool { return s.Has(CapFunctionCalling) }

// List returns the capabilities in declaration order.
func (s BotCapabilities) List() []BotCapability {
	var out []BotCapability
	for _, n := range capabilityNames {
		if s.Has(n.c) {
			out = append(out, n.c)
		}
	}
	return out
}

func (s BotCapabilities) String() string {
	names := make([]string, 0, len(capabilityNames))
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}

func (s BotCapabilities) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(capabilityNames))
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return json.Marshal(names)
}

func (s *BotCapabilities) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = 0
outer:
	for _, name := range names {
		for _, n := range capabilityNames {
			if n.name == name {
				s.Add(n.c)
				continue outer
			}
		}
		return fmt.Errorf("unknown bot capability %q", name)
	}
	return nil
}

// Bot is an addressable assistant exposed by a provider.
type Bot struct {
	ID           BotID           `json:"id"`
	Name         string          `json:"name"`
	Avatar       EntityAvatar    `json:"avatar"`
	Capabilities BotCapabilities `json:"capabilities"`
}

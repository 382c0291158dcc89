package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// BotID globally identifies a bot. It is encoded as
// "<len(id)>;<id>@<provider>" so both parts may contain ';' and '@'.
// The length counts bytes.
type BotID string

// NewBotID builds an id from a provider-local id and a provider name or URL.
func NewBotID(id, provider string) BotID {
	return BotID(strconv.Itoa(len(id)) + ";" + id + "@" + provider)
}

// ParseBotID validates s as an encoded bot id.
func ParseBotID(s string) (BotID, error) {
	b := BotID(s)
	if _, _, err := b.Split(); err != nil {
		return "", err
	}
	return b, nil
}

// Split decodes the id into its local id and provider.
func (b BotID) Split() (id, provider string, err error) {
	head, raw, ok := strings.Cut(string(b), ";")
	if !ok {
		return "", "", fmt.Errorf("malformed bot id %q: missing length prefix", string(b))
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return "", "", fmt.Errorf("malformed bot id %q: bad length %q", string(b), head)
	}
	if len(raw) < n+1 || raw[n] != '@' {
		return "", "", fmt.Errorf("malformed bot id %q: length %d does not match", string(b), n)
	}
	return raw[:n], raw[n+1:], nil
}

// ID is the bot id as known by its provider. Empty for malformed ids.
func (b BotID) ID() string {
	id, _, _ := b.Split()
	return id
}

// Provider is the provider part of the id. Empty for malformed ids.
func (b BotID) Provider() string {
	_, provider, _ := b.Split()
	return provider
}

func (b BotID) String() string { return string(b) }

// Package providers turns the configured providers into one routing client.
package providers

import (
	"fmt"
	"sort"

	"github.com/soyeahso/botkit/internal/config"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/gateway"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/logging"
)

// Build creates a client for every enabled provider with usable
// credentials and registers it under the provider's name. Disabled
// providers and providers missing a key are skipped.
func Build(cfg *config.Config, log *logging.Logger) (*llm.MultiClient, error) {
	log = log.Sub("providers")
	multi := llm.NewMultiClient(log)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cfg.Providers[name]
		if !p.IsEnabled() {
			log.Debug().Str("provider", name).Msg("provider disabled")
			continue
		}
		if !config.HasCredentials(p) {
			log.Warn().Str("provider", name).Msg("provider has no api key, skipping")
			continue
		}
		client, err := newClient(p, log)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		multi.Register(name, llm.NewMapClient(client, botMap(p)))
	}
	return multi, nil
}

func newClient(p config.ProviderConfig, log *logging.Logger) (llm.Client, error) {
	switch p.Type {
	case config.ProviderOpenAI:
		c := llm.NewOpenAIClient(p.URL)
		if err := c.SetKey(p.APIKey); err != nil {
			return nil, err
		}
		for name, value := range p.Headers {
			if err := c.SetHeader(name, value); err != nil {
				return nil, err
			}
		}
		c.SetToolsEnabled(p.ToolsOn())
		return c, nil

	case config.ProviderOpenAIImage:
		c := llm.NewOpenAIImageClient(p.URL)
		if err := c.SetKey(p.APIKey); err != nil {
			return nil, err
		}
		return c, nil

	case config.ProviderOpenAIRealtime:
		c := llm.NewRealtimeClient(p.URL, log)
		if err := c.SetKey(p.APIKey); err != nil {
			return nil, err
		}
		if p.SystemPrompt != "" {
			c.SetSystemPrompt(p.SystemPrompt)
		}
		if p.Voice != "" {
			c.SetVoice(p.Voice)
		}
		return c, nil

	case config.ProviderGateway:
		c := gateway.NewClient(p.URL, log)
		if err := c.SetToken(p.APIKey); err != nil {
			return nil, err
		}
		c.SetAgentID(p.AgentID)
		return c, nil
	}
	return nil, fmt.Errorf("unknown provider type %q", p.Type)
}

// botMap builds the bot filters of p. Chat providers also hide models that
// cannot chat.
func botMap(p config.ProviderConfig) llm.BotMap {
	maps := []llm.BotMap{llm.AllowBotNames(p.Models...)}
	if len(p.Exclude) > 0 {
		maps = append(maps, llm.DenyBotKeywords(p.Exclude...))
	}
	if p.Type == config.ProviderOpenAI {
		maps = append(maps, llm.DenyBotKeywords(llm.NonChatKeywords...))
	}
	if p.Icon != "" {
		maps = append(maps, llm.SetBotAvatar(domain.ImageAvatar(p.Icon)))
	}
	return llm.ChainBotMaps(maps...)
}

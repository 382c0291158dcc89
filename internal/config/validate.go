package config

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/soyeahso/botkit/internal/logging"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cfg.Providers[name]
		path := "providers." + name

		if strings.ContainsAny(name, ";@") {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: "provider name must not contain ';' or '@'",
			})
		}
		if !slices.Contains(ProviderTypes, p.Type) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".type",
				Message: fmt.Sprintf("must be one of %v, got %q", ProviderTypes, p.Type),
			})
		}
		if p.URL == "" {
			issues = append(issues, ValidationIssue{
				Path:    path + ".url",
				Message: "url is required",
			})
		} else if u, err := url.Parse(p.URL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    path + ".url",
				Message: fmt.Sprintf("invalid url %q", p.URL),
			})
		} else if want := schemesFor(p.Type); want != nil && !slices.Contains(want, u.Scheme) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".url",
				Message: fmt.Sprintf("scheme must be one of %v, got %q", want, u.Scheme),
			})
		}
		if p.IsEnabled() && !HasCredentials(p) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".apiKey",
				Message: "required unless the url is local",
			})
		}
	}

	if cfg.Logging.Level != "" && !logging.ValidLevel(cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}

	if cfg.Publish.URL != "" {
		if u, err := url.Parse(cfg.Publish.URL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			issues = append(issues, ValidationIssue{
				Path:    "publish.url",
				Message: "must be an amqp:// or amqps:// url",
			})
		}
		if cfg.Publish.Exchange == "" {
			issues = append(issues, ValidationIssue{
				Path:    "publish.exchange",
				Message: "exchange is required when publishing",
			})
		}
	}

	return issues
}

func schemesFor(providerType string) []string {
	switch providerType {
	case ProviderOpenAI, ProviderOpenAIImage:
		return []string{"http", "https"}
	case ProviderOpenAIRealtime, ProviderGateway:
		return []string{"ws", "wss"}
	}
	return nil
}

func isLocal(rawURL string) bool {
	return strings.Contains(rawURL, "localhost") || strings.Contains(rawURL, "127.0.0.1")
}

// HasCredentials reports whether the provider can be used as configured.
// Chat and realtime providers need an API key unless they run locally.
func HasCredentials(p ProviderConfig) bool {
	switch p.Type {
	case ProviderOpenAI, ProviderOpenAIRealtime:
		return p.APIKey != "" || isLocal(p.URL)
	}
	return true
}

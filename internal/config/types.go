package config

// Provider types.
const (
	ProviderOpenAI         = "openai"
	ProviderOpenAIImage    = "openai-image"
	ProviderOpenAIRealtime = "openai-realtime"
	ProviderGateway        = "gateway"
)

// ProviderTypes lists the accepted provider types.
var ProviderTypes = []string{ProviderOpenAI, ProviderOpenAIImage, ProviderOpenAIRealtime, ProviderGateway}

// Config is the root configuration of botkit.
type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Logging   LoggingConfig             `yaml:"logging,omitempty"`
	Store     StoreConfig               `yaml:"store,omitempty"`
	Publish   PublishConfig             `yaml:"publish,omitempty"`
}

// ProviderConfig configures one bot backend. The map key it is stored
// under becomes the namespace of its bots.
type ProviderConfig struct {
	Type         string            `yaml:"type"`
	URL          string            `yaml:"url"`
	APIKey       string            `yaml:"apiKey,omitempty"`
	Enabled      *bool             `yaml:"enabled,omitempty"`      // default true
	ToolsEnabled *bool             `yaml:"toolsEnabled,omitempty"` // default true
	Models       []string          `yaml:"models,omitempty"`       // allow list of model names
	Exclude      []string          `yaml:"exclude,omitempty"`      // keywords hiding models
	Icon         string            `yaml:"icon,omitempty"`         // avatar image url
	Headers      map[string]string `yaml:"headers,omitempty"`
	SystemPrompt string            `yaml:"systemPrompt,omitempty"` // realtime only
	Voice        string            `yaml:"voice,omitempty"`        // realtime only
	AgentID      string            `yaml:"agentId,omitempty"`      // gateway only
}

// IsEnabled reports whether the provider should be used.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// ToolsOn reports whether tools are offered to the provider's bots.
func (p ProviderConfig) ToolsOn() bool {
	return p.ToolsEnabled == nil || *p.ToolsEnabled
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // trace | debug | info | warn | error | fatal | silent
	JSON  bool   `yaml:"json,omitempty"`
}

// StoreConfig controls the SQLite chat replica.
type StoreConfig struct {
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// PublishConfig controls publishing chat changes to AMQP. An empty URL
// disables it.
type PublishConfig struct {
	URL      string `yaml:"url,omitempty"`
	Exchange string `yaml:"exchange,omitempty"`
	Attempts int    `yaml:"attempts,omitempty"`
}

package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	defaultLogLevel        = "info"
	defaultExchange        = "botkit.chat"
	defaultPublishAttempts = 3
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Providers: map[string]ProviderConfig{},
		Logging:   LoggingConfig{Level: defaultLogLevel},
		Publish: PublishConfig{
			Exchange: defaultExchange,
			Attempts: defaultPublishAttempts,
		},
	}
}

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${NAME} references. References to unset
// variables are kept as written.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(envRef.FindStringSubmatch(ref)[1]); ok {
			return v
		}
		return ref
	})
}

// expandSensitiveFields resolves ${NAME} references in credentials, URLs
// and headers, so secrets can live in the environment or a .env file.
func expandSensitiveFields(cfg *Config) {
	cfg.Publish.URL = expandEnvVars(cfg.Publish.URL)
	for name, p := range cfg.Providers {
		p.APIKey, p.URL = expandEnvVars(p.APIKey), expandEnvVars(p.URL)
		if len(p.Headers) > 0 {
			headers := make(map[string]string, len(p.Headers))
			for k, v := range p.Headers {
				headers[k] = expandEnvVars(v)
			}
			p.Headers = headers
		}
		cfg.Providers[name] = p
	}
}

// envOverrides maps BOTKIT_* variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"BOTKIT_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"BOTKIT_STORE_PATH", func(c *Config, v string) { c.Store.Path = v }},
	{"BOTKIT_PUBLISH_URL", func(c *Config, v string) { c.Publish.URL = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

// Load returns the config at path layered as defaults, file, then
// environment. A .env file in the same directory is loaded first without
// overriding variables that are already set. A missing config file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, &ConfigError{Message: "failed to load .env: " + err.Error()}
	}

	found, err := readYAML(path, &cfg)
	if err != nil {
		return cfg, err
	}
	if found {
		applyDefaults(&cfg)
	}
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// readYAML decodes the file at path into v. It reports false when the file
// does not exist.
func readYAML(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return true, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return true, nil
}

// applyDefaults restores defaults the file may have blanked out.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Providers == nil {
		cfg.Providers = d.Providers
	}
	for name, p := range cfg.Providers {
		p.URL = strings.TrimSuffix(p.URL, "/")
		cfg.Providers[name] = p
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Publish.Exchange == "" {
		cfg.Publish.Exchange = d.Publish.Exchange
	}
	if cfg.Publish.Attempts <= 0 {
		cfg.Publish.Attempts = d.Publish.Attempts
	}
}

// LoadRaw returns the config file as an untyped tree for editing by path.
func LoadRaw(path string) (map[string]any, error) {
	var raw map[string]any
	if _, err := readYAML(path, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes raw to path, creating the directory if needed. The file is
// readable by the owner only since it may hold API keys.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

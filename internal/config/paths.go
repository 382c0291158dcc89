package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".botkit"

// Paths holds resolved filesystem paths for botkit data.
type Paths struct {
	Base   string // ~/.botkit
	Config string // ~/.botkit/config.yaml
	Data   string // ~/.botkit/data
	Store  string // ~/.botkit/data/chats.db
}

// ResolvePaths computes the standard paths. BOTKIT_HOME overrides the base
// directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("BOTKIT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}
	data := filepath.Join(base, "data")
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   data,
		Store:  filepath.Join(data, "chats.db"),
	}, nil
}

// EnsureDirs creates the base and data directories.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// StorePath returns the database location for cfg, expanding a leading ~.
func (p Paths) StorePath(cfg *Config) string {
	path := cfg.Store.Path
	if path == "" {
		return p.Store
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// ParseConfigPath splits a dotted path like "providers.openai.url" into its
// segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	return parts, nil
}

// walk follows path through nested maps. With create set, missing or
// non-map intermediate values are replaced by empty maps.
func walk(root map[string]any, path []string, create bool) (map[string]any, bool) {
	current := root
	for _, key := range path {
		m, ok := current[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	return current, true
}

// GetValueAtPath returns the value stored under path.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return root, true
	}
	parent, ok := walk(root, path[:len(path)-1], false)
	if !ok {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value under path, creating intermediate maps.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent, _ := walk(root, path[:len(path)-1], true)
	parent[path[len(path)-1]] = value
}

// UnsetValueAtPath removes the value under path and reports whether it was
// there.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := walk(root, path[:len(path)-1], false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

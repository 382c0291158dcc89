package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_Home(t *testing.T) {
	base := t.TempDir()
	t.Setenv("BOTKIT_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(base, "data", "chats.db"), p.Store)

	require.NoError(t, p.EnsureDirs())
	info, err := os.Stat(p.Data)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("BOTKIT_HOME", "")
	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, ".botkit", filepath.Base(p.Base))
}

func TestStorePath(t *testing.T) {
	p := Paths{Store: "/base/data/chats.db"}
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "/base/data/chats.db", p.StorePath(&Config{}))
	assert.Equal(t, "/srv/chats.db", p.StorePath(&Config{Store: StoreConfig{Path: "/srv/chats.db"}}))
	assert.Equal(t, filepath.Join(home, "chats.db"), p.StorePath(&Config{Store: StoreConfig{Path: "~/chats.db"}}))
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "logging", []string{"logging"}, false},
		{"three segments", "providers.openai.url", []string{"providers", "openai", "url"}, false},
		{"empty", "", nil, true},
		{"empty segment", "providers..url", nil, true},
		{"leading dot", ".logging", nil, true},
		{"trailing dot", "logging.", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"providers": map[string]any{
			"openai": map[string]any{"url": "https://api.openai.com/v1"},
		},
		"simple": "value",
	}

	v, ok := GetValueAtPath(root, []string{"providers", "openai", "url"})
	assert.True(t, ok)
	assert.Equal(t, "https://api.openai.com/v1", v)

	v, ok = GetValueAtPath(root, []string{"simple"})
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = GetValueAtPath(root, []string{"providers", "missing", "url"})
	assert.False(t, ok)

	_, ok = GetValueAtPath(root, []string{"simple", "deeper"})
	assert.False(t, ok)
}

func TestSetValueAtPath(t *testing.T) {
	root := map[string]any{"simple": "value"}

	SetValueAtPath(root, []string{"providers", "claw", "type"}, "gateway")
	v, ok := GetValueAtPath(root, []string{"providers", "claw", "type"})
	assert.True(t, ok)
	assert.Equal(t, "gateway", v)

	// A scalar in the way is replaced by a map.
	SetValueAtPath(root, []string{"simple", "nested"}, 1)
	v, ok = GetValueAtPath(root, []string{"simple", "nested"})
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"logging": map[string]any{"level": "debug"},
	}

	assert.True(t, UnsetValueAtPath(root, []string{"logging", "level"}))
	assert.False(t, UnsetValueAtPath(root, []string{"logging", "level"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "level"}))
	assert.Equal(t, map[string]any{}, root["logging"])
}

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("bots loaded")
	assert.Contains(t, buf.String(), "bots loaded")
}

func TestNewConsoleDefault(t *testing.T) {
	require.NotNil(t, New(nil, "info"))
}

func TestSubAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("llm.multi").With("provider", "openai")

	log.Debug().Msg("fan out")
	out := buf.String()
	assert.Contains(t, out, "fan out")
	assert.Contains(t, out, `"subsystem":"llm.multi"`)
	assert.Contains(t, out, `"provider":"openai"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	for _, e := range []*zerolog.Event{log.Trace(), log.Debug(), log.Info()} {
		e.Msg("dropped")
	}
	assert.Empty(t, buf.String())

	log.Warn().Msg("slow provider")
	log.Error().Msg("stream broke")
	assert.Contains(t, buf.String(), "slow provider")
	assert.Contains(t, buf.String(), "stream broke")
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, levelOf(tt.input))
		})
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("silent"))
	assert.True(t, ValidLevel("trace"))
	assert.False(t, ValidLevel("verbose"))
	assert.False(t, ValidLevel(""))
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")
	log.Error().Msg("hidden")
	assert.Empty(t, buf.String())

	Nop().Error().Msg("hidden too")
}

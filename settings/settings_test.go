package settings

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "configs", s.ConfigDir)
	assert.Equal(t, "sessions", s.SessionsDir)
	assert.Equal(t, "results.db", s.ResultsDSN)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "console", s.LogFormat)
	assert.Equal(t, 30, s.FPS)
	assert.Equal(t, 24*time.Hour, s.SessionTTL)
	assert.False(t, s.Realtime)
	assert.False(t, s.Ngrok)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bus.json")
	cfg := `{"port": 9090, "log_level": "debug", "fps": 60, "realtime": true, "session_ttl": "30m"}`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	s, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 60, s.FPS)
	assert.True(t, s.Realtime)
	assert.Equal(t, 30*time.Minute, s.SessionTTL)
	assert.Equal(t, "configs", s.ConfigDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CROSSROADBUS_PORT", "7000")
	t.Setenv("CROSSROADBUS_RESULTS_DSN", "postgres://bus@localhost/bus")

	s, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 7000, s.Port)
	assert.Equal(t, "postgres://bus@localhost/bus", s.ResultsDSN)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), "/nonexistent/bus.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{"fps", `{"fps": 0}`, "fps"},
		{"port", `{"port": 70000}`, "port"},
		{"level", `{"log_level": "loud"}`, "unknown log level"},
		{"format", `{"log_format": "xml"}`, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bus.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.cfg), 0644))

			_, err := Load(viper.New(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	s := &Settings{LogLevel: "warn", LogFormat: "json"}
	log := s.NewLogger(&buf)

	log.Info().Msg("hidden")
	log.Warn().Str("session", "ab12").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "ab12", line["session"])
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)
	cfg, err := Parse(env.EnvSet{})
	req.NoError(err)

	req.Equal("http://localhost:3000", cfg.APIURL)
	req.Equal("ws://localhost:3000/cable", cfg.CableEndpoint())
	req.Equal("MessagesChannel", cfg.Channel)
	req.Equal(10*time.Second, cfg.RequestTimeout)
	req.True(cfg.Reconnect)
	req.Equal(100*time.Millisecond, cfg.ReconnectBaseDelay)
	req.Equal(2*time.Second, cfg.NoticeDuration)
	req.Equal("info", cfg.LogLevel)
}

func TestParse_Overrides(t *testing.T) {
	req := require.New(t)
	cfg, err := Parse(env.EnvSet{
		"CHAT_API_URL":       "https://chat.example.com",
		"CHAT_CABLE_URL":     "wss://chat.example.com/",
		"CHAT_RECONNECT":     "false",
		"CHAT_STALE_TIMEOUT": "0s",
		"LOG_LEVEL":          "debug",
	})
	req.NoError(err)
	req.Equal("wss://chat.example.com/cable", cfg.CableEndpoint())
	req.False(cfg.Reconnect)
	req.Zero(cfg.StaleTimeout)
	req.Equal("debug", cfg.LogLevel)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]env.EnvSet{
		"api url":      {"CHAT_API_URL": "not a url"},
		"cable scheme": {"CHAT_CABLE_URL": "http://localhost:3000"},
		"log level":    {"LOG_LEVEL": "loud"},
		"backoff":      {"CHAT_RECONNECT_BASE_DELAY": "5s", "CHAT_RECONNECT_MAX_DELAY": "1s"},
		"timeout":      {"CHAT_REQUEST_TIMEOUT": "0s"},
	}
	for name, es := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(es)
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "chat.env")
	req.NoError(os.WriteFile(path, []byte("CHAT_API_URL=http://api.internal:8080\n"), 0o600))
	t.Setenv("CHAT_API_URL", "")
	req.NoError(os.Unsetenv("CHAT_API_URL"))

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("http://api.internal:8080", cfg.APIURL)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

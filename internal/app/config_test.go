package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/attendo/internal/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":8080"
enable_auth = true

[gateway]
url = "https://gw.example.org"
api_key = "anon-key"
timeout = "3s"

[auth]
provider = "azure"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", config.Server.Port)
	assert.True(t, config.Server.EnableAuth)
	assert.Equal(t, "azure", config.Auth.Provider)
	assert.Equal(t, "attendo:auth", config.Auth.Channel)
	assert.Equal(t, 3*time.Second, config.GatewayTimeout())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":8080"

[gateway]
url = "https://gw.example.org"
api_key = "anon-key"
`)
	t.Setenv("ATTENDO_SERVER_PORT", ":9999")
	t.Setenv("ATTENDO_GATEWAY_API_KEY", "service-key")
	t.Setenv("ATTENDO_AUTH_REDIS_URL", "redis://localhost:6379/0")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", config.Server.Port)
	assert.Equal(t, "service-key", config.Gateway.APIKey)
	assert.Equal(t, "https://gw.example.org", config.Gateway.URL, "unset variables keep file values")
	assert.Equal(t, "redis://localhost:6379/0", config.Auth.RedisURL)
	assert.Equal(t, 10*time.Second, config.GatewayTimeout())
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing port", "[gateway]\ndsn = \":memory:\"\n"},
		{"no gateway", "[server]\nport = \":8080\"\n"},
		{"url without key", "[server]\nport = \":8080\"\n[gateway]\nurl = \"https://gw.example.org\"\n"},
		{"auth without url", "[server]\nport = \":8080\"\nenable_auth = true\n[gateway]\ndsn = \":memory:\"\n"},
		{"bad timeout", "[server]\nport = \":8080\"\n[gateway]\ndsn = \":memory:\"\ntimeout = \"soon\"\n"},
		{"bad toml", "[server\nport = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestNewServiceWithSQLite(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":8080"

[gateway]
dsn = ":memory:"
`)

	svc, err := NewService(context.Background(), path)
	require.NoError(t, err)
	defer svc.Close()

	assert.Nil(t, svc.Gateway.Client)
	assert.Equal(t, auth.LocalUser, *svc.Auth.User())

	sessions, err := svc.Sessions.FetchSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = svc.Sessions.AddSession(context.Background(), "Juin 2024")
	require.NoError(t, err)
	sessions, err = svc.Sessions.FetchSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

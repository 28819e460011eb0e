package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{"API_BASE_URL": "http://farm.local:3000/"}))
	require.NoError(t, err)

	assert.Equal(t, "http://farm.local:3000", cfg.Backend.BaseURL)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, "token", cfg.WebSocket.TokenParam)
	assert.Equal(t, 5, cfg.WebSocket.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.WebSocket.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.MaxDelay)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "/api/v0", cfg.API.BasePath)
	assert.Equal(t, "memory", cfg.TokenStore.Kind)
	assert.Equal(t, "auth_token", cfg.TokenStore.Key)
	assert.Equal(t, 500, cfg.Notification.QueueSize)
	assert.Equal(t, 4, cfg.Notification.MaxWorkers)
}

func TestFromEnvMissingRequired(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"TOKEN_STORE": "redis", "KAFKA_BROKER": "k:9092"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_BASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "KAFKA_TOPIC")
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://farm.local:3000", "ws://farm.local:3000/ws"},
		{"https://farm.example.com/api", "wss://farm.example.com/ws"},
		{"ws://10.0.0.2", "ws://10.0.0.2/ws"},
	}
	for _, tt := range tests {
		cfg := Config{}
		cfg.Backend.BaseURL = tt.base
		got, err := cfg.SocketURL()
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}

	cfg := Config{}
	cfg.Backend.BaseURL = "ftp://farm.local"
	_, err := cfg.SocketURL()
	assert.Error(t, err)
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manamana32321/tshock-discord-relay/relay"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "webhook", cfg.Delivery.Mode)
	assert.Zero(t, cfg.Delivery.Timeout)
	assert.Equal(t, relay.DefaultTemplates, cfg.Templates)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  name: TestServer
  save_path: /srv/tshock
delivery:
  mode: bot
  timeout: 5s
source:
  type: kubernetes
  pod_label: app=terraria
templates:
  chat: "<{character_name}> {message}"
loki:
  events: [chat, death]
`)

	cfg, err := loadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "TestServer", cfg.Server.Name)
	assert.Equal(t, "bot", cfg.Delivery.Mode)
	assert.Equal(t, 5*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, "kubernetes", cfg.Source.Type)
	assert.Equal(t, "<{character_name}> {message}", cfg.Templates.Chat)
	assert.Equal(t, relay.DefaultTemplates.Join, cfg.Templates.Join)
	assert.Equal(t, filepath.Join("/srv/tshock", relay.DefaultWebhookFileName), cfg.webhookPath())

	token, channel := cfg.botPaths()
	assert.Equal(t, "/srv/tshock/discord_app_token.txt", token)
	assert.Equal(t, "/srv/tshock/discord_channel_id.txt", channel)

	assert.True(t, cfg.lokiEventAllowed("chat"))
	assert.False(t, cfg.lokiEventAllowed("join"))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  name: FromFile\n")
	t.Setenv("SERVER_NAME", "FromEnv")
	t.Setenv("DELIVERY_TIMEOUT", "2s")
	t.Setenv("RCON_ENABLED", "true")
	t.Setenv("RCON_PASSWORD", "secret")

	cfg, err := loadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "FromEnv", cfg.Server.Name)
	assert.Equal(t, 2*time.Second, cfg.Delivery.Timeout)
	assert.True(t, cfg.RCON.Enabled)
	assert.Equal(t, "secret", cfg.RCON.Password)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{"BadYAML", "server: [", nil, "parse config"},
		{"BadMode", "delivery:\n  mode: carrier-pigeon\n", nil, "delivery.mode"},
		{"BadSource", "source:\n  type: serial\n", nil, "source.type"},
		{"MissingFile", "source:\n  type: file\n  file: \"\"\n", nil, "source.file"},
		{"RCONWithoutPassword", "rcon:\n  enabled: true\n", nil, "RCON_PASSWORD"},
		{"BadEnvDuration", "", map[string]string{"DELIVERY_TIMEOUT": "soon"}, "parse env"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := loadConfigFrom(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLokiEventAllowed(t *testing.T) {
	cfg := defaultConfig()
	assert.True(t, cfg.lokiEventAllowed("join"))

	cfg.Loki.Enabled = false
	assert.False(t, cfg.lokiEventAllowed("join"))
}

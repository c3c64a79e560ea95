package relay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	// WebhookPlaceholder is written to a missing webhook URL file.
	WebhookPlaceholder = "https://discord.com/api/webhooks/{webhook_id}/{webhook_token}"

	BotTokenPlaceholder     = "Bot {bot_token}"
	ChannelIDPlaceholder    = "{channel_id}"
	DefaultWebhookFileName  = "discord_webhook_url.txt"
	DefaultBotTokenFileName = "discord_app_token.txt"
	DefaultChannelFileName  = "discord_channel_id.txt"
)

// WebhookConfig holds the webhook URL. An empty URL means the relay has not
// been configured yet and deliveries are skipped.
type WebhookConfig struct {
	URL string
}

func (c WebhookConfig) Configured() bool { return c.URL != "" }

// BotConfig holds the credentials for posting through the bot API.
type BotConfig struct {
	Token     string
	ChannelID string
}

func (c BotConfig) Configured() bool { return c.Token != "" && c.ChannelID != "" }

// LoadWebhookConfig reads the webhook URL from path. When the file does not
// exist it is created with WebhookPlaceholder and an empty config is returned.
func LoadWebhookConfig(path string) (WebhookConfig, error) {
	url, err := ReadOrCreate(path, WebhookPlaceholder)
	if err != nil {
		return WebhookConfig{}, err
	}
	return WebhookConfig{URL: url}, nil
}

// LoadBotConfig reads the bot token and channel id files the same way
// LoadWebhookConfig reads the webhook file.
func LoadBotConfig(tokenPath, channelPath string) (BotConfig, error) {
	token, err := ReadOrCreate(tokenPath, BotTokenPlaceholder)
	if err != nil {
		return BotConfig{}, err
	}
	channel, err := ReadOrCreate(channelPath, ChannelIDPlaceholder)
	if err != nil {
		return BotConfig{}, err
	}
	return BotConfig{Token: token, ChannelID: channel}, nil
}

// ReadOrCreate returns the raw contents of path. A missing file is created
// with placeholder and "" is returned.
func ReadOrCreate(path, placeholder string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(placeholder), 0o644); err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	return "", nil
}

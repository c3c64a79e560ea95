package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/manamana32321/tshock-discord-relay/relay"
)

const defaultConfigPath = "/etc/tshock-discord-relay/config.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Source    SourceConfig    `yaml:"source"`
	RCON      RCONConfig      `yaml:"rcon"`
	Log       LogConfig       `yaml:"log"`
	OTel      OTelConfig      `yaml:"otel"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Loki      LokiConfig      `yaml:"loki"`
	Death     DeathConfig     `yaml:"death"`
	Templates relay.Templates `yaml:"templates"`
}

type ServerConfig struct {
	Name     string `yaml:"name" env:"SERVER_NAME"`
	SavePath string `yaml:"save_path" env:"TSHOCK_SAVE_PATH"`
}

type DeliveryConfig struct {
	Mode    string        `yaml:"mode" env:"DELIVERY_MODE"` // "webhook" or "bot"
	Timeout time.Duration `yaml:"timeout" env:"DELIVERY_TIMEOUT"`
}

type SourceConfig struct {
	Type      string `yaml:"type" env:"SOURCE_TYPE"` // "file" or "kubernetes"
	File      string `yaml:"file" env:"SOURCE_FILE"`
	Namespace string `yaml:"namespace" env:"SOURCE_NAMESPACE"`
	PodLabel  string `yaml:"pod_label" env:"SOURCE_POD_LABEL"`
	Container string `yaml:"container" env:"SOURCE_CONTAINER"`
}

type RCONConfig struct {
	Enabled  bool          `yaml:"enabled" env:"RCON_ENABLED"`
	Host     string        `yaml:"host" env:"RCON_HOST"`
	Port     string        `yaml:"port" env:"RCON_PORT"`
	Password string        `yaml:"-" env:"RCON_PASSWORD"` // from env only
	Interval time.Duration `yaml:"interval" env:"RCON_INTERVAL"`
	Command  string        `yaml:"command"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
}

type OTelConfig struct {
	Enabled     bool   `yaml:"enabled" env:"OTEL_ENABLED"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type LokiConfig struct {
	Enabled bool     `yaml:"enabled"`
	Events  []string `yaml:"events"` // event types, or ["all"]
}

type DeathConfig struct {
	// LegacyText skips death packet decoding.
	LegacyText bool `yaml:"legacy_text" env:"DEATH_LEGACY_TEXT"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:     "Terraria",
			SavePath: "/root/.local/share/Terraria/tshock",
		},
		Delivery: DeliveryConfig{
			Mode: "webhook",
		},
		Source: SourceConfig{
			Type:      "file",
			File:      "/root/.local/share/Terraria/tshock/logs/console.log",
			Namespace: "terraria",
			PodLabel:  "app=tshock",
		},
		RCON: RCONConfig{
			Host:     "localhost",
			Port:     "7777",
			Interval: time.Minute,
			Command:  "playing",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		OTel: OTelConfig{
			ServiceName: "tshock-discord-relay",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Interval: 15 * time.Second,
		},
		Loki: LokiConfig{
			Enabled: true,
			Events:  []string{"all"},
		},
		Templates: relay.DefaultTemplates,
	}
}

func loadConfig() (Config, error) {
	return loadConfigFrom(envOr("CONFIG_PATH", defaultConfigPath))
}

func loadConfigFrom(configPath string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// config file is optional
	default:
		return cfg, fmt.Errorf("read config %s: %w", configPath, err)
	}

	// Env overrides (secrets + runtime values)
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Delivery.Mode {
	case "webhook", "bot":
	default:
		return fmt.Errorf("delivery.mode must be webhook or bot, got %q", c.Delivery.Mode)
	}
	switch c.Source.Type {
	case "file":
		if c.Source.File == "" {
			return fmt.Errorf("source.file is required for the file source")
		}
	case "kubernetes":
		if c.Source.PodLabel == "" {
			return fmt.Errorf("source.pod_label is required for the kubernetes source")
		}
	default:
		return fmt.Errorf("source.type must be file or kubernetes, got %q", c.Source.Type)
	}
	if c.RCON.Enabled && c.RCON.Password == "" {
		return fmt.Errorf("RCON_PASSWORD env is required when rcon is enabled")
	}
	if c.RCON.Enabled && c.RCON.Interval <= 0 {
		return fmt.Errorf("rcon.interval must be positive")
	}
	return nil
}

func (c *Config) webhookPath() string {
	return filepath.Join(c.Server.SavePath, relay.DefaultWebhookFileName)
}

func (c *Config) botPaths() (token, channel string) {
	return filepath.Join(c.Server.SavePath, relay.DefaultBotTokenFileName),
		filepath.Join(c.Server.SavePath, relay.DefaultChannelFileName)
}

// lokiEventAllowed returns whether a given event type should be exported as an OTel log record.
func (c *Config) lokiEventAllowed(eventType string) bool {
	if !c.Loki.Enabled {
		return false
	}
	for _, e := range c.Loki.Events {
		if e == "all" || e == eventType {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

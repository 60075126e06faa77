package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Config represents the main Voxhall configuration
type Config struct {
	// App holds the platform application credentials
	App AppConfig `json:"app" mapstructure:"app"`

	// Interaction holds acknowledgment settings
	Interaction InteractionConfig `json:"interaction" mapstructure:"interaction"`

	// Webhook configuration
	Webhook WebhookConfig `json:"webhook" mapstructure:"webhook"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Commands holds registry sync configuration
	Commands CommandsConfig `json:"commands" mapstructure:"commands"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AppConfig holds platform application credentials
type AppConfig struct {
	ID        string `json:"id" mapstructure:"id"`
	BotToken  string `json:"bot_token" mapstructure:"bot_token"`
	PublicKey string `json:"public_key" mapstructure:"public_key"` // hex-encoded ed25519
	APIBase   string `json:"api_base" mapstructure:"api_base"`
}

// InteractionConfig holds acknowledgment settings
type InteractionConfig struct {
	DeadlineBudgetMs int `json:"deadline_budget_ms" mapstructure:"deadline_budget_ms"`
}

// WebhookConfig holds webhook server configuration
type WebhookConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Port    int    `json:"port" mapstructure:"port"`
	Host    string `json:"host" mapstructure:"host"`
	Path    string `json:"path" mapstructure:"path"`
}

// GatewayConfig holds gateway session configuration
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
}

// CommandsConfig holds registry sync configuration
type CommandsConfig struct {
	Dir          string `json:"dir" mapstructure:"dir"`
	GuildID      string `json:"guild_id" mapstructure:"guild_id"`
	SyncSchedule string `json:"sync_schedule" mapstructure:"sync_schedule"` // 5-field cron, empty disables
	Watch        bool   `json:"watch" mapstructure:"watch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			APIBase: "https://api.voxhall.dev/v1",
		},
		Interaction: InteractionConfig{
			DeadlineBudgetMs: 250,
		},
		Webhook: WebhookConfig{
			Enabled: true,
			Port:    8430,
			Host:    "0.0.0.0",
			Path:    "/interactions",
		},
		Gateway: GatewayConfig{
			Enabled: false,
			URL:     "wss://gateway.voxhall.dev/v1",
		},
		Commands: CommandsConfig{
			Dir:   "",
			Watch: false,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.App.ID == "" {
		return fmt.Errorf("app.id is required")
	}
	if c.App.BotToken == "" {
		return fmt.Errorf("app.bot_token is required")
	}

	// The webhook path needs a verifiable signature key
	if c.Webhook.Enabled {
		if c.App.PublicKey == "" {
			return fmt.Errorf("app.public_key is required when the webhook is enabled")
		}
		key, err := hex.DecodeString(c.App.PublicKey)
		if err != nil {
			return fmt.Errorf("app.public_key is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("app.public_key must decode to 32 bytes, got %d", len(key))
		}
		if c.Webhook.Port < 1 || c.Webhook.Port > 65535 {
			return fmt.Errorf("webhook.port must be between 1 and 65535, got %d", c.Webhook.Port)
		}
	}

	if c.Gateway.Enabled && c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required when the gateway is enabled")
	}

	if !c.Webhook.Enabled && !c.Gateway.Enabled {
		return fmt.Errorf("at least one of webhook or gateway must be enabled")
	}

	if c.Interaction.DeadlineBudgetMs < 0 {
		return fmt.Errorf("interaction.deadline_budget_ms must not be negative")
	}

	if c.Commands.SyncSchedule != "" && c.Commands.Dir == "" {
		return fmt.Errorf("commands.dir is required when a sync schedule is set")
	}
	if c.Commands.Watch && c.Commands.Dir == "" {
		return fmt.Errorf("commands.dir is required when commands.watch is enabled")
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

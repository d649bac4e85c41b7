package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Bot     BotConfig     `json:"bot"`
	Gateway GatewayConfig `json:"gateway"`
	Health  HealthConfig  `json:"health"`
	Logging LoggingConfig `json:"logging"`
	mu      sync.RWMutex
}

type BotConfig struct {
	Token            string   `json:"token" env:"MINIAPPBOT_BOT_TOKEN"`
	WebAppURL        string   `json:"web_app_url" env:"MINIAPPBOT_BOT_WEB_APP_URL"`
	SettingsPath     string   `json:"settings_path" env:"MINIAPPBOT_BOT_SETTINGS_PATH"`
	AllowFrom        []string `json:"allow_from" env:"MINIAPPBOT_BOT_ALLOW_FROM"`
	Proxy            string   `json:"proxy" env:"MINIAPPBOT_BOT_PROXY"`
	PollTimeoutSec   int      `json:"poll_timeout_sec" env:"MINIAPPBOT_BOT_POLL_TIMEOUT_SEC"`
	QueueSize        int      `json:"queue_size" env:"MINIAPPBOT_BOT_QUEUE_SIZE"`
	SendRatePerSec   float64  `json:"send_rate_per_sec" env:"MINIAPPBOT_BOT_SEND_RATE_PER_SEC"`
	SendBurst        int      `json:"send_burst" env:"MINIAPPBOT_BOT_SEND_BURST"`
	RegisterCommands bool     `json:"register_commands" env:"MINIAPPBOT_BOT_REGISTER_COMMANDS"`
	MenuButtonText   string   `json:"menu_button_text" env:"MINIAPPBOT_BOT_MENU_BUTTON_TEXT"`
}

type GatewayConfig struct {
	Enabled bool   `json:"enabled" env:"MINIAPPBOT_GATEWAY_ENABLED"`
	Host    string `json:"host" env:"MINIAPPBOT_GATEWAY_HOST"`
	Port    int    `json:"port" env:"MINIAPPBOT_GATEWAY_PORT"`
}

type HealthConfig struct {
	Enabled  bool   `json:"enabled" env:"MINIAPPBOT_HEALTH_ENABLED"`
	Schedule string `json:"schedule" env:"MINIAPPBOT_HEALTH_SCHEDULE"`
}

type LoggingConfig struct {
	Level         string `json:"level" env:"MINIAPPBOT_LOGGING_LEVEL"`
	FileEnabled   bool   `json:"file_enabled" env:"MINIAPPBOT_LOGGING_FILE_ENABLED"`
	Dir           string `json:"dir" env:"MINIAPPBOT_LOGGING_DIR"`
	Filename      string `json:"filename" env:"MINIAPPBOT_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" env:"MINIAPPBOT_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" env:"MINIAPPBOT_LOGGING_RETENTION_DAYS"`
}

// Variables read by older deployments (.env with BOT_TOKEN and
// WEB_APP_URL). They only fill fields left empty by the file and the
// MINIAPPBOT_* variables.
const (
	legacyTokenEnv     = "BOT_TOKEN"
	legacyWebAppURLEnv = "WEB_APP_URL"
)

func GetConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".miniappbot")
}

func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Token:            "",
			WebAppURL:        "",
			SettingsPath:     "/settings",
			AllowFrom:        []string{},
			PollTimeoutSec:   30,
			QueueSize:        100,
			SendRatePerSec:   25,
			SendBurst:        5,
			RegisterCommands: true,
			MenuButtonText:   "Open app",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    18790,
		},
		Health: HealthConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
		Logging: LoggingConfig{
			Level:         "info",
			FileEnabled:   false,
			Dir:           filepath.Join(GetConfigDir(), "logs"),
			Filename:      "miniappbot.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
	}
}

// LoadConfig reads path on top of the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := unmarshalConfigStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	applyLegacyEnv(cfg)

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func applyLegacyEnv(cfg *Config) {
	if cfg.Bot.Token == "" {
		cfg.Bot.Token = strings.TrimSpace(os.Getenv(legacyTokenEnv))
	}
	if cfg.Bot.WebAppURL == "" {
		cfg.Bot.WebAppURL = strings.TrimSpace(os.Getenv(legacyWebAppURLEnv))
	}
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// The file holds the bot token.
	return os.WriteFile(path, data, 0600)
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filename := c.Logging.Filename
	if filename == "" {
		filename = "miniappbot.log"
	}
	return filepath.Join(expandHome(c.Logging.Dir), filename)
}

func (c *Config) GatewayAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}

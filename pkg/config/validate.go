package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate returns configuration problems found in cfg.
// It does not mutate cfg.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error

	if strings.TrimSpace(cfg.Bot.Token) == "" {
		errs = append(errs, fmt.Errorf("bot.token is required"))
	}
	if err := validateWebAppURL(cfg.Bot.WebAppURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Bot.SettingsPath != "" && !strings.HasPrefix(cfg.Bot.SettingsPath, "/") {
		errs = append(errs, fmt.Errorf("bot.settings_path must start with /"))
	}
	if cfg.Bot.Proxy != "" {
		if u, err := url.Parse(cfg.Bot.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("bot.proxy must be an absolute URL"))
		}
	}
	if cfg.Bot.PollTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("bot.poll_timeout_sec must be > 0"))
	}
	if cfg.Bot.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("bot.queue_size must be > 0"))
	}
	if cfg.Bot.SendRatePerSec <= 0 {
		errs = append(errs, fmt.Errorf("bot.send_rate_per_sec must be > 0"))
	}
	if cfg.Bot.SendBurst <= 0 {
		errs = append(errs, fmt.Errorf("bot.send_burst must be > 0"))
	}
	errs = append(errs, validateNonEmptyStringList("bot.allow_from", cfg.Bot.AllowFrom)...)

	if cfg.Gateway.Enabled && (cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535) {
		errs = append(errs, fmt.Errorf("gateway.port must be in 1..65535"))
	}

	if cfg.Health.Enabled {
		if _, err := cron.ParseStandard(cfg.Health.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("health.schedule is invalid: %v", err))
		}
	}

	if cfg.Logging.FileEnabled && strings.TrimSpace(cfg.Logging.Dir) == "" {
		errs = append(errs, fmt.Errorf("logging.dir is required when logging.file_enabled=true"))
	}

	return errs
}

func validateWebAppURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("bot.web_app_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("bot.web_app_url is invalid: %v", err)
	}
	if u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("bot.web_app_url must be an absolute http(s) URL")
	}
	return nil
}

func validateNonEmptyStringList(path string, values []string) []error {
	var errs []error
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s[%d] must not be empty", path, i))
		}
	}
	return errs
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func TestLoadConfigRejectsUnknownField(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `{"bot": {"token": "x", "unknown_field": 1}}`)

	_, err := LoadConfig(cfgPath)
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "unknown field")
}

func TestLoadConfigRejectsTrailingJSONContent(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `{"bot":{"token":"x"}}{"extra":true}`)

	_, err := LoadConfig(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing JSON content")
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `{
  "bot": {
    "token": "123:abc",
    "web_app_url": "https://app.example.com",
    "send_burst": 9
  }
}`)

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, 9, cfg.Bot.SendBurst)
	assert.Equal(t, "/settings", cfg.Bot.SettingsPath, "settings_path should keep its default")
	assert.Equal(t, 100, cfg.Bot.QueueSize, "queue_size should keep its default")
	assert.Empty(t, Validate(cfg))
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MINIAPPBOT_BOT_TOKEN", "")
	t.Setenv(legacyTokenEnv, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Bot.PollTimeoutSec)
	assert.True(t, cfg.Gateway.Enabled)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("MINIAPPBOT_BOT_WEB_APP_URL", "https://override.example.com")
	t.Setenv("MINIAPPBOT_BOT_ALLOW_FROM", "42,ana")

	cfgPath := writeConfig(t, `{"bot":{"token":"file-token","web_app_url":"https://file.example.com"}}`)
	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Bot.WebAppURL)
	assert.Equal(t, []string{"42", "ana"}, []string(cfg.Bot.AllowFrom))
	assert.Equal(t, "file-token", cfg.Bot.Token, "token should come from the file")
}

func TestLoadConfigLegacyEnvFillsEmptyFields(t *testing.T) {
	t.Setenv("MINIAPPBOT_BOT_TOKEN", "")
	t.Setenv("MINIAPPBOT_BOT_WEB_APP_URL", "")
	t.Setenv(legacyTokenEnv, "legacy-token")
	t.Setenv(legacyWebAppURLEnv, "https://legacy.example.com")

	cfgPath := writeConfig(t, `{"bot":{"web_app_url":"https://file.example.com"}}`)
	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", cfg.Bot.Token)
	assert.Equal(t, "https://file.example.com", cfg.Bot.WebAppURL, "file value should win over legacy env")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Bot.Token = "123:abc"
	cfg.Bot.WebAppURL = "https://app.example.com"

	require.NoError(t, SaveConfig(path, cfg))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Bot.WebAppURL, loaded.Bot.WebAppURL)
	assert.Equal(t, cfg.Health.Schedule, loaded.Health.Schedule)
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Bot.WebAppURL = "app.example.com"
	cfg.Bot.SettingsPath = "settings"
	cfg.Bot.QueueSize = 0
	cfg.Bot.AllowFrom = []string{"42", " "}
	cfg.Health.Schedule = "every minute"

	errs := Validate(cfg)
	joined := make([]string, 0, len(errs))
	for _, err := range errs {
		joined = append(joined, err.Error())
	}
	all := strings.Join(joined, "\n")

	for _, want := range []string{
		"bot.token is required",
		"bot.web_app_url must be an absolute http(s) URL",
		"bot.settings_path must start with /",
		"bot.queue_size must be > 0",
		"bot.allow_from[1] must not be empty",
		"health.schedule is invalid",
	} {
		assert.Contains(t, all, want)
	}
}

package main

import (
	"fmt"
	"os"
	"strings"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/config"
	"miniappbot/pkg/logger"
)

func normalizeCLIArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := []string{args[0]}
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--debug" || arg == "-d" {
			continue
		}
		if arg == "--config" {
			if i+1 < len(args) {
				i++
			}
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			continue
		}
		normalized = append(normalized, arg)
	}
	return normalized
}

func detectConfigPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" && i+1 < len(args) {
			return strings.TrimSpace(args[i+1])
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		}
	}
	return ""
}

func printHelp() {
	fmt.Printf("%s miniappbot - Telegram Mini App bot v%s\n\n", logo, version)
	fmt.Println("Usage: miniappbot <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  onboard     Write a default configuration file")
	fmt.Println("  run         Run the bot against Telegram (long polling)")
	fmt.Println("  console     Chat with the bot locally in the terminal")
	fmt.Println("  status      Show configuration status")
	fmt.Println("  version     Show version information")
	fmt.Println()
	fmt.Println("Global options:")
	fmt.Println("  --config <path>         Use custom config file")
	fmt.Println("  --debug, -d             Enable debug logging")
	fmt.Println()
	fmt.Println("Console input:")
	fmt.Println("  /start, /menu, /app, /help   commands")
	fmt.Println("  !data {\"name\":\"Ana\"}         mini app payload")
	fmt.Println("  ?cb open_app                 inline button press")
}

func getConfigPath() string {
	if strings.TrimSpace(globalConfigPathOverride) != "" {
		return globalConfigPathOverride
	}
	if fromEnv := strings.TrimSpace(os.Getenv("MINIAPPBOT_CONFIG")); fromEnv != "" {
		return fromEnv
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}
	configureLogging(cfg)
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	if !debugMode {
		logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	}

	if !cfg.Logging.FileEnabled {
		logger.DisableFileLogging()
		return
	}

	logFile := cfg.LogFilePath()
	if err := logger.EnableFileLoggingWithRotation(logFile, cfg.Logging.MaxSizeMB, cfg.Logging.RetentionDays); err != nil {
		fmt.Printf("Warning: failed to enable file logging: %v\n", err)
	}
}

func newDispatcher(cfg *config.Config, transport bot.Transport) *bot.Dispatcher {
	router := bot.NewRouter(bot.Settings{
		WebAppURL:    cfg.Bot.WebAppURL,
		SettingsPath: cfg.Bot.SettingsPath,
	})
	return bot.NewDispatcher(router, transport)
}

func printValidationErrors(errs []error) {
	for _, err := range errs {
		fmt.Printf("  ✗ %v\n", err)
	}
}

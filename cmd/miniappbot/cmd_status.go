package main

import (
	"fmt"
	"os"

	"github.com/mdp/qrterminal/v3"

	"miniappbot/pkg/config"
)

func statusCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	configPath := getConfigPath()

	fmt.Printf("%s miniappbot Status\n\n", logo)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗ (defaults + environment)")
	}

	token := "not set"
	if cfg.Bot.Token != "" {
		token = "✓"
	}
	fmt.Printf("Bot Token: %s\n", token)
	fmt.Printf("Mini App URL: %s\n", valueOr(cfg.Bot.WebAppURL, "not set"))
	fmt.Printf("Settings Path: %s\n", cfg.Bot.SettingsPath)
	fmt.Printf("Allow From: %d entries\n", len(cfg.Bot.AllowFrom))
	fmt.Printf("Send Rate: %.1f/s (burst %d)\n", cfg.Bot.SendRatePerSec, cfg.Bot.SendBurst)
	fmt.Printf("Gateway: %v (%s)\n", cfg.Gateway.Enabled, cfg.GatewayAddr())
	fmt.Printf("Health Probe: %v (%s)\n", cfg.Health.Enabled, cfg.Health.Schedule)
	fmt.Printf("Logging: level=%s file=%v\n", cfg.Logging.Level, cfg.Logging.FileEnabled)
	if cfg.Logging.FileEnabled {
		fmt.Printf("Log File: %s\n", cfg.LogFilePath())
		fmt.Printf("Log Max Size: %d MB\n", cfg.Logging.MaxSizeMB)
		fmt.Printf("Log Retention: %d days\n", cfg.Logging.RetentionDays)
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		fmt.Println("\nConfig problems:")
		printValidationErrors(errs)
		return
	}
	fmt.Println("\nConfig valid ✓")

	fmt.Println("\nMini App link:")
	qrterminal.GenerateHalfBlock(cfg.Bot.WebAppURL, qrterminal.L, os.Stdout)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

package main

import (
	"fmt"
	"os"

	"miniappbot/pkg/config"
)

func onboardCmd() {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" {
			fmt.Println("Aborted.")
			return
		}
	}

	result, err := ensureConfigOnboard(configPath, config.DefaultConfig())
	if err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s miniappbot config %s at %s\n", logo, result, configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set bot.token (from @BotFather) and bot.web_app_url in", configPath)
	fmt.Println("     or export MINIAPPBOT_BOT_TOKEN / MINIAPPBOT_BOT_WEB_APP_URL")
	fmt.Println("  2. Try it locally: miniappbot console")
	fmt.Println("  3. Go live: miniappbot run")
}

func ensureConfigOnboard(configPath string, defaults *config.Config) (string, error) {
	if defaults == nil {
		return "", fmt.Errorf("defaults is nil")
	}

	exists := true
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		exists = false
	} else if err != nil {
		return "", err
	}

	if err := config.SaveConfig(configPath, defaults); err != nil {
		return "", err
	}
	if exists {
		return "overwritten", nil
	}
	return "created", nil
}

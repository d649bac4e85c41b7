package main

import (
	"context"
	"fmt"
	"os"

	"miniappbot/pkg/bus"
	"miniappbot/pkg/channels"
	"miniappbot/pkg/gateway"
	"miniappbot/pkg/logger"
)

const consoleDefaultWebAppURL = "https://example.com/miniapp"

func consoleCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !debugMode {
		logger.SetLevel(logger.WARN)
	}
	if cfg.Bot.WebAppURL == "" {
		cfg.Bot.WebAppURL = consoleDefaultWebAppURL
		fmt.Printf("bot.web_app_url not set, using %s\n", consoleDefaultWebAppURL)
	}

	userName := os.Getenv("USER")
	if len(os.Args) > 2 {
		userName = os.Args[2]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.NewEventBus(cfg.Bot.QueueSize)
	console := channels.NewConsoleChannel(eventBus, userName, nil, cancel)
	gw := gateway.New(eventBus, newDispatcher(cfg, console))

	fmt.Printf("%s Console mode, you are %q (type exit or Ctrl+C to quit)\n\n", logo, userName)
	// The loop drains queued events after input ends, so it does not share ctx.
	gw.Start(context.Background())
	if err := console.Start(ctx); err != nil {
		fmt.Printf("Error starting console: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = console.Stop(context.Background())
	eventBus.Close()
	gw.Wait()
	fmt.Println("\nGoodbye!")
}

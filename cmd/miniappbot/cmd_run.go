package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"miniappbot/pkg/bus"
	"miniappbot/pkg/channels"
	"miniappbot/pkg/config"
	"miniappbot/pkg/gateway"
	"miniappbot/pkg/health"
	"miniappbot/pkg/logger"
	"miniappbot/pkg/server"
)

const shutdownTimeout = 15 * time.Second

type botRuntime struct {
	channels *channels.Manager
	gateway  *gateway.Gateway
	health   *health.Service
	server   *server.Server
}

func runCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		fmt.Println("Config problems:")
		printValidationErrors(errs)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.NewEventBus(cfg.Bot.QueueSize)
	telegram, err := channels.NewTelegramChannel(cfg.Bot, eventBus)
	if err != nil {
		fmt.Printf("Error initializing telegram channel: %v\n", err)
		os.Exit(1)
	}

	rt := &botRuntime{channels: channels.NewManager()}
	rt.channels.RegisterChannel(telegram)

	dispatcher := newDispatcher(cfg, telegram)
	rt.gateway = gateway.New(eventBus, dispatcher)

	if cfg.Health.Enabled {
		rt.health = health.NewService(rt.channels, cfg.Health.Schedule)
	}

	rt.gateway.Start(ctx)
	if cfg.Gateway.Enabled {
		var probe server.HealthSource
		if rt.health != nil {
			probe = rt.health
		}
		rt.server = server.NewServer(cfg.GatewayAddr(), dispatcher, probe).WithRuntime(rt.gateway, rt.channels)
		if err := rt.server.Start(); err != nil {
			fmt.Printf("Error starting HTTP server: %v\n", err)
		}
		fmt.Printf("✓ Status server on http://%s\n", cfg.GatewayAddr())
	}
	if err := rt.channels.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
		_ = rt.shutdown()
		os.Exit(1)
	}
	fmt.Printf("✓ Channels enabled: %s\n", rt.channels.GetEnabledChannels())

	if rt.health != nil {
		if err := rt.health.Start(); err != nil {
			fmt.Printf("Error starting health prober: %v\n", err)
		} else {
			fmt.Println("✓ Health prober started")
		}
	}

	fmt.Println("Press Ctrl+C to stop. Send SIGHUP to reload logging config.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			fmt.Println("\n↻ Reloading config...")
			newCfg, err := config.LoadConfig(getConfigPath())
			if err != nil {
				fmt.Printf("✗ Reload failed (load config): %v\n", err)
				continue
			}
			if !reflect.DeepEqual(cfg.Bot, newCfg.Bot) ||
				!reflect.DeepEqual(cfg.Gateway, newCfg.Gateway) ||
				!reflect.DeepEqual(cfg.Health, newCfg.Health) {
				fmt.Println("⚠ Bot, gateway and health changes need a restart")
			}
			configureLogging(newCfg)
			cfg.Logging = newCfg.Logging
			fmt.Println("✓ Logging config reloaded")
		default:
			fmt.Println("\nShutting down...")
			if err := rt.shutdown(); err != nil {
				logger.ErrorCF("run", "Shutdown finished with errors", map[string]interface{}{
					logger.FieldError: err.Error(),
				})
			}
			cancel()
			fmt.Println("✓ Bot stopped")
			return
		}
	}
}

// shutdown stops intake first, then lets the gateway finish the current
// event. The health prober and HTTP server stop alongside.
func (rt *botRuntime) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := rt.channels.StopAll(gctx)
		rt.gateway.Stop()
		return err
	})
	if rt.health != nil {
		g.Go(func() error {
			rt.health.Stop()
			return nil
		})
	}
	if rt.server != nil {
		g.Go(func() error {
			return rt.server.Stop(ctx)
		})
	}
	return g.Wait()
}

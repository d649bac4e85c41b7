package gateway

import (
	"context"
	"fmt"
	"time"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/bus"
	"miniappbot/pkg/lifecycle"
	"miniappbot/pkg/logger"
)

// eventTimeout bounds the handling of a single event, delivery included.
const eventTimeout = 2 * time.Minute

// Dispatcher handles one event and delivers its actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// Gateway is the single consumer of the event bus. Events are dispatched one
// at a time in arrival order.
type Gateway struct {
	bus        *bus.EventBus
	dispatcher Dispatcher
	runner     *lifecycle.LoopRunner
}

func New(eventBus *bus.EventBus, dispatcher Dispatcher) *Gateway {
	return &Gateway{
		bus:        eventBus,
		dispatcher: dispatcher,
		runner:     lifecycle.NewLoopRunner(),
	}
}

// Start launches the consumer loop. Cancelling ctx stops it like Stop does.
func (g *Gateway) Start(ctx context.Context) bool {
	started := g.runner.Start(ctx, g.loop)
	if started {
		logger.InfoC("gateway", "Event loop started")
	}
	return started
}

// Stop signals the loop and waits for it. An event being handled when Stop
// is called is finished first.
func (g *Gateway) Stop() {
	if g.runner.Stop() {
		logger.InfoC("gateway", "Event loop stopped")
	}
}

// Wait blocks until the loop exits, e.g. after the bus is closed.
func (g *Gateway) Wait() {
	g.runner.Wait()
}

func (g *Gateway) Running() bool {
	return g.runner.Running()
}

func (g *Gateway) loop(ctx context.Context) {
	for ctx.Err() == nil {
		env, ok := g.bus.Consume(ctx)
		if !ok {
			if ctx.Err() == nil {
				logger.InfoC("gateway", "Event bus closed")
			}
			return
		}
		g.handle(ctx, env)
	}
}

func (g *Gateway) handle(ctx context.Context, env bus.Envelope) {
	evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("gateway", "Recovered panic while dispatching event", map[string]interface{}{
				logger.FieldChannel: env.Channel,
				"panic":             fmt.Sprintf("%v", r),
			})
		}
	}()

	if err := g.dispatcher.Dispatch(evCtx, env.Event); err != nil {
		o := bot.OriginOf(env.Event)
		logger.WarnCF("gateway", "Event dispatch reported errors", map[string]interface{}{
			logger.FieldChannel: env.Channel,
			logger.FieldChatID:  o.ChatID,
			logger.FieldUserID:  o.UserID,
			logger.FieldError:   err.Error(),
		})
	}
}

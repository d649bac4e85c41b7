package channels

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/bus"
	"miniappbot/pkg/logger"
)

// Channel is a transport that feeds classified events into the bus.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	HealthCheck(ctx context.Context) error
}

// BaseChannel holds what every transport shares: its name, the bus and the
// sender allow-list.
type BaseChannel struct {
	name      string
	bus       *bus.EventBus
	allowList []string
	running   atomic.Bool
}

func NewBaseChannel(name string, eventBus *bus.EventBus, allowList []string) *BaseChannel {
	list := make([]string, 0, len(allowList))
	for _, entry := range allowList {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), "@")
		if entry != "" {
			list = append(list, strings.ToLower(entry))
		}
	}
	return &BaseChannel{name: name, bus: eventBus, allowList: list}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}

// IsAllowed reports whether a sender may talk to the bot. An empty list
// allows everyone; entries match the numeric user id or the username.
func (c *BaseChannel) IsAllowed(userID int64, userName string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	id := strconv.FormatInt(userID, 10)
	userName = strings.ToLower(strings.TrimPrefix(userName, "@"))
	for _, allowed := range c.allowList {
		if allowed == id || (userName != "" && allowed == userName) {
			return true
		}
	}
	return false
}

// HandleEvent applies the allow-list and publishes ev.
func (c *BaseChannel) HandleEvent(ev bot.Event, userName string) bool {
	o := bot.OriginOf(ev)
	if !c.IsAllowed(o.UserID, userName) {
		logger.WarnCF(c.name, "Event rejected by allowlist", map[string]interface{}{
			logger.FieldUserID: o.UserID,
			logger.FieldChatID: o.ChatID,
		})
		return false
	}
	return c.bus.Publish(bus.Envelope{Channel: c.name, Event: ev})
}

package bus

import (
	"context"
	"sync"
	"time"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/logger"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 100

const queueWriteTimeout = 2 * time.Second

// Envelope is one classified event together with the transport it came from.
type Envelope struct {
	Channel string
	Event   bot.Event
}

// EventBus is a bounded queue between transports and the gateway loop.
// Publishers may run concurrently; there is a single consumer.
type EventBus struct {
	events       chan Envelope
	mu           sync.RWMutex
	closed       bool
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventBus{
		events:       make(chan Envelope, capacity),
		writeTimeout: queueWriteTimeout,
	}
}

// Publish enqueues env. It waits at most two seconds for room and reports
// whether the event was accepted.
func (b *EventBus) Publish(env Envelope) (accepted bool) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return false
	}
	ch := b.events
	b.mu.RUnlock()

	origin := bot.OriginOf(env.Event)
	defer func() {
		if recover() != nil {
			accepted = false
			logger.WarnCF("bus", "Publish on closed channel recovered", map[string]interface{}{
				logger.FieldChannel: env.Channel,
				logger.FieldChatID:  origin.ChatID,
			})
		}
	}()

	timer := time.NewTimer(b.writeTimeout)
	defer timer.Stop()

	select {
	case ch <- env:
		return true
	case <-timer.C:
		logger.ErrorCF("bus", "Publish timeout (queue full)", map[string]interface{}{
			logger.FieldChannel: env.Channel,
			logger.FieldChatID:  origin.ChatID,
			logger.FieldUserID:  origin.UserID,
		})
		return false
	}
}

// Consume returns the next event. ok is false once the bus is closed and
// drained, or when ctx is done.
func (b *EventBus) Consume(ctx context.Context) (Envelope, bool) {
	select {
	case env, ok := <-b.events:
		return env, ok
	case <-ctx.Done():
		return Envelope{}, false
	}
}

// Len reports the number of queued events.
func (b *EventBus) Len() int {
	return len(b.events)
}

func (b *EventBus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.events)
		b.mu.Unlock()
	})
}

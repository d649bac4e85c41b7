package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniappbot/pkg/bot"
	"miniappbot/pkg/bus"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	seen    []string
	ctxErrs []error
	block   chan struct{}
	entered chan struct{}
	fail    bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, ev bot.Event) error {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, ev.(bot.FreeText).Text)
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
	if d.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (d *recordingDispatcher) texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.seen...)
}

func publish(t *testing.T, b *bus.EventBus, text string) {
	t.Helper()
	require.True(t, b.Publish(bus.Envelope{
		Channel: "test",
		Event:   bot.FreeText{Origin: bot.Origin{ChatID: 1, UserID: 1}, Text: text},
	}))
}

func TestGatewayDispatchesInArrivalOrder(t *testing.T) {
	b := bus.NewEventBus(10)
	d := &recordingDispatcher{fail: true}
	g := New(b, d)

	for _, s := range []string{"one", "two", "three"} {
		publish(t, b, s)
	}
	b.Close()

	require.True(t, g.Start(context.Background()))
	g.Wait()

	assert.Equal(t, []string{"one", "two", "three"}, d.texts(), "errors must not stop the loop")
}

func TestGatewayStopFinishesInFlightEvent(t *testing.T) {
	b := bus.NewEventBus(10)
	d := &recordingDispatcher{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	g := New(b, d)
	require.True(t, g.Start(context.Background()))

	publish(t, b, "in-flight")
	publish(t, b, "queued")

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}

	stopped := make(chan struct{})
	go func() {
		g.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while an event was still being handled")
	case <-time.After(50 * time.Millisecond):
	}

	close(d.block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Equal(t, []string{"in-flight"}, d.texts())
	d.mu.Lock()
	assert.NoError(t, d.ctxErrs[0], "in-flight event context must survive the stop signal")
	d.mu.Unlock()
	assert.False(t, g.Running())
	assert.Equal(t, 1, b.Len(), "queued event stays on the bus")
}

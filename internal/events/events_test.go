package events

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestPublishDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus(discardLogger())

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	}))
	bus.Subscribe(SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	}))

	bus.Publish(context.Background(), Event{Kind: Created, Path: "/a/b.txt"})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 2)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(discardLogger())

	var count int
	sub := bus.Subscribe(SinkFunc(func(ev Event) { count++ }))

	bus.Publish(context.Background(), Event{Kind: Created, Path: "/a"})
	sub.Unsubscribe()
	bus.Publish(context.Background(), Event{Kind: Created, Path: "/a"})

	assert.Equal(t, 1, count)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(discardLogger())

	sub := bus.Subscribe(SinkFunc(func(ev Event) {}))
	sub.Unsubscribe()

	assert.NotPanics(t, func() { sub.Unsubscribe() })
}

func TestPublishRecoversFromPanickingSink(t *testing.T) {
	bus := NewBus(discardLogger())

	var secondCalled bool

	bus.Subscribe(SinkFunc(func(ev Event) { panic("boom") }))
	bus.Subscribe(SinkFunc(func(ev Event) { secondCalled = true }))

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Kind: Deleted, Path: "/x"})
	})
	assert.True(t, secondCalled)
}

func TestPublishStopsEarlyOnCancelledContext(t *testing.T) {
	bus := NewBus(discardLogger())

	var called bool
	bus.Subscribe(SinkFunc(func(ev Event) { called = true }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus.Publish(ctx, Event{Kind: Created, Path: "/y"})

	assert.False(t, called)
}

func TestPublishSerializesEventsForTheSamePath(t *testing.T) {
	bus := NewBus(discardLogger())

	var mu sync.Mutex
	var overlap bool
	var running bool

	bus.Subscribe(SinkFunc(func(ev Event) {
		mu.Lock()
		if running {
			overlap = true
		}
		running = true
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		running = false
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), Event{Kind: Changed, Path: "/same"})
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
}

func TestKindStringCoversEveryKind(t *testing.T) {
	kinds := []Kind{Created, Changed, Deleted, Renamed, ContentChanged, InitialScanCompleted}
	for _, k := range kinds {
		require.NotEqual(t, "unknown", k.String())
	}

	assert.Equal(t, "unknown", Kind(999).String())
}

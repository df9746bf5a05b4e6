package debounce

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestActionDebouncerLastCallWins(t *testing.T) {
	d := NewActionDebouncer(30 * time.Millisecond)

	var calls int64

	d.Debounce("a", func() { atomic.AddInt64(&calls, 1) })
	d.Debounce("a", func() { atomic.AddInt64(&calls, 2) })
	d.Debounce("a", func() { atomic.AddInt64(&calls, 3) })

	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestActionDebouncerIndependentKeys(t *testing.T) {
	d := NewActionDebouncer(20 * time.Millisecond)

	var mu sync.Mutex
	fired := make(map[string]bool)

	d.Debounce("a", func() {
		mu.Lock()
		fired["a"] = true
		mu.Unlock()
	})
	d.Debounce("b", func() {
		mu.Lock()
		fired["b"] = true
		mu.Unlock()
	})

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, fired["a"])
	assert.True(t, fired["b"])
}

func TestActionDebouncerCancel(t *testing.T) {
	d := NewActionDebouncer(30 * time.Millisecond)

	var fired int64

	d.Debounce("a", func() { atomic.AddInt64(&fired, 1) })
	d.Cancel("a")

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int64(0), atomic.LoadInt64(&fired))
}

func TestBatchDebouncerCoalescesOverwrites(t *testing.T) {
	b := NewBatchDebouncer[int](30*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	var flushed map[string]int

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		b.Run(ctx, func(batch map[string]int) {
			flushed = batch
			cancel()
		})
	}()

	b.Submit("x", 1)
	b.Submit("x", 2)
	b.Submit("y", 10)

	wg.Wait()

	require.NotNil(t, flushed)
	assert.Equal(t, 2, flushed["x"])
	assert.Equal(t, 10, flushed["y"])
}

func TestBatchDebouncerDrainsOnCancel(t *testing.T) {
	b := NewBatchDebouncer[string](time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	var flushed map[string]string

	done := make(chan struct{})

	go func() {
		b.Run(ctx, func(batch map[string]string) {
			flushed = batch
		})
		close(done)
	}()

	b.Submit("k", "v")
	time.Sleep(10 * time.Millisecond)
	cancel()

	<-done

	require.NotNil(t, flushed)
	assert.Equal(t, "v", flushed["k"])
}

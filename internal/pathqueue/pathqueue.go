// Package pathqueue implements the per-path continuation chain the
// concurrency model calls for: tasks submitted for the same canonical path
// run strictly one after another, in submission order, while tasks for
// different paths run fully concurrently. It is a scaled-down
// generalization of the teacher's tracker.go DepTracker — that type
// dispatches a dependency *graph* of actions to a shared worker pool;
// pathqueue needs none of the graph machinery, only DepTracker's core idea
// of a map keyed by identity (there byPath, here the canonical path itself)
// whose entry is retired once its work is done.
package pathqueue

import (
	"context"
	"sync"
)

// chain is the continuation-chain entry for one path: tail is the done
// channel of the most recently submitted task, closed when that task
// finishes, so the next submission for the same path can wait on it before
// starting. pending counts outstanding (not yet finished) tasks so the
// entry can be safely removed from the map once the chain drains, per the
// "map entry is removed when its tail completes" contract.
type chain struct {
	mu      sync.Mutex
	tail    chan struct{}
	pending int
	retired bool
}

// Queue serializes work per canonical path via an append-only continuation
// chain, stored in a concurrent map keyed by path. Submitting work for two
// different paths never blocks one on the other.
type Queue struct {
	chains sync.Map // path -> *chain
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Submit runs fn after every previously submitted task for path has
// finished, and returns once fn itself has finished (or the context is
// cancelled before fn starts). fn is never run concurrently with another
// fn submitted for the same path. Submit itself does not block the caller
// past waiting for fn by more than fn's own runtime plus any tasks already
// queued ahead of it for this path.
func (q *Queue) Submit(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	entry := q.entryFor(path)

	entry.mu.Lock()
	prevTail := entry.tail
	myTail := make(chan struct{})
	entry.tail = myTail
	entry.mu.Unlock()

	defer q.release(path, entry)

	if prevTail != nil {
		select {
		case <-prevTail:
		case <-ctx.Done():
			// Pass the turn on only once the task ahead has finished, so a
			// later submission for this path still waits for it.
			go func() {
				<-prevTail
				close(myTail)
			}()

			return ctx.Err()
		}
	}

	err := fn(ctx)
	close(myTail)

	return err
}

// entryFor returns the chain for path, creating one if none exists yet. If
// the stored entry has already been retired by a concurrent release (its
// pending count hit zero and it is being removed from the map), entryFor
// retries until it observes either a live entry or an absent one it can
// install fresh — this keeps a retiring entry from silently swallowing a
// task that arrives in the narrow window before its map removal lands.
func (q *Queue) entryFor(path string) *chain {
	for {
		actual, _ := q.chains.LoadOrStore(path, &chain{})
		e := actual.(*chain)

		e.mu.Lock()
		if e.retired {
			e.mu.Unlock()
			continue
		}

		e.pending++
		e.mu.Unlock()

		return e
	}
}

// release decrements entry's pending count and removes path from the map
// once the chain has fully drained, so a long-idle path leaves no residue
// behind in the concurrent map.
func (q *Queue) release(path string, entry *chain) {
	entry.mu.Lock()
	entry.pending--
	drained := entry.pending == 0
	if drained {
		entry.retired = true
	}
	entry.mu.Unlock()

	if drained {
		q.chains.CompareAndDelete(path, entry)
	}
}

// Len reports how many paths currently have in-flight or queued work.
// Intended for tests and diagnostics, not the hot path.
func (q *Queue) Len() int {
	n := 0

	q.chains.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

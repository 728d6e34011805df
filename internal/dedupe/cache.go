// ABOUTME: Thread-safe TTL window recording which viewer saw which story recently.
// ABOUTME: Keeps repeat page loads from inflating story view counters.

package dedupe

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

// DefaultMaxEntries bounds memory when no explicit size is given.
const DefaultMaxEntries = 100_000

type viewEntry struct {
	seenAt  time.Time
	element *list.Element
}

// ViewWindow remembers (viewer, story) pairs for a TTL. The oldest pair is
// evicted when the window is full, so an evicted viewer may count again early.
type ViewWindow struct {
	mu         sync.Mutex
	seen       map[string]*viewEntry
	order      *list.List // keys, least recently marked at front
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	closed     bool
}

// Option configures a ViewWindow.
type Option func(*ViewWindow)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *ViewWindow) { w.now = now }
}

// WithMaxEntries caps the number of remembered pairs.
func WithMaxEntries(n int) Option {
	return func(w *ViewWindow) {
		if n > 0 {
			w.maxEntries = n
		}
	}
}

// NewViewWindow creates a window and starts a sweeper that drops expired pairs
// every sweepEvery (ttl when zero). Call Close to stop it.
func NewViewWindow(ttl, sweepEvery time.Duration, opts ...Option) *ViewWindow {
	w := &ViewWindow{
		seen:       make(map[string]*viewEntry),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if sweepEvery <= 0 {
		sweepEvery = ttl
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	go w.sweepLoop(sweepEvery)
	return w
}

func viewKey(viewer string, storyID int64) string {
	return viewer + "|" + strconv.FormatInt(storyID, 10)
}

// FirstView reports whether viewer has not seen storyID within the TTL, and
// records the view. Check and mark happen under one lock.
func (w *ViewWindow) FirstView(viewer string, storyID int64) bool {
	key := viewKey(viewer, storyID)
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if entry, ok := w.seen[key]; ok {
		if now.Sub(entry.seenAt) < w.ttl {
			return false
		}
		entry.seenAt = now
		w.order.MoveToBack(entry.element)
		return true
	}

	if len(w.seen) >= w.maxEntries {
		w.evictOldestLocked()
	}
	w.seen[key] = &viewEntry{seenAt: now, element: w.order.PushBack(key)}
	return true
}

// Len returns the number of remembered pairs, expired or not.
func (w *ViewWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

func (w *ViewWindow) evictOldestLocked() {
	front := w.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	w.order.Remove(front)
	delete(w.seen, key)
}

func (w *ViewWindow) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.done:
			return
		}
	}
}

// Sweep drops expired pairs and returns how many were removed.
func (w *ViewWindow) Sweep() int {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for e := w.order.Front(); e != nil; {
		key, _ := e.Value.(string)
		entry := w.seen[key]
		if now.Sub(entry.seenAt) < w.ttl {
			// Order is by last mark, so everything after is fresher.
			break
		}
		next := e.Next()
		w.order.Remove(e)
		delete(w.seen, key)
		removed++
		e = next
	}
	return removed
}

// Close stops the sweeper. It is safe to call multiple times.
func (w *ViewWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}

// Package query is a keyed, invalidatable cache of remote collections.
//
// Each key holds one Entry whose Status moves empty → pending → ready|error. Concurrent loads of
// the same key share a single fetch. Every invalidation, refetch, reset or optimistic mutation
// bumps the key's generation; a fetch result is applied only if the generation it started under
// is still current, so a late response can never overwrite newer state.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"flow-cli/internal/logger"
	"flow-cli/internal/metrics"

	"golang.org/x/sync/singleflight"
)

type Key string

type Status int

const (
	StatusEmpty Status = iota
	StatusPending
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Entry is a point-in-time copy of one cache slot.
type Entry[V any] struct {
	Status Status
	Data   V
	// Err is the last fetch error; set only when Status is StatusError.
	Err       error
	UpdatedAt time.Time
	// Stale marks data that has been invalidated but not yet refetched.
	Stale bool
}

type Fetcher[V any] func(ctx context.Context, key Key) (V, error)

type Options[V any] struct {
	Fetch Fetcher[V]
	// Normalize is applied to every value before it is stored (fetched or patched).
	Normalize func(V) V
	// Clone copies a value for mutation snapshots. Nil means values are treated as immutable.
	Clone   func(V) V
	Logger  *slog.Logger
	Metrics metrics.Recorder
	Now     func() time.Time
}

type slot[V any] struct {
	entry Entry[V]
	gen   uint64
}

type Cache[V any] struct {
	fetch     Fetcher[V]
	normalize func(V) V
	clone     func(V) V
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time

	group singleflight.Group
	bg    sync.WaitGroup

	mu      sync.Mutex
	slots   map[Key]*slot[V]
	subs    map[int]func(Key, Entry[V])
	nextSub int
}

func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Fetch == nil {
		return nil, fmt.Errorf("query: fetch func is required")
	}
	c := &Cache[V]{
		fetch:     opts.Fetch,
		normalize: opts.Normalize,
		clone:     opts.Clone,
		logger:    logger.OrDiscard(opts.Logger),
		metrics:   metrics.OrNop(opts.Metrics),
		now:       opts.Now,
		slots:     map[Key]*slot[V]{},
		subs:      map[int]func(Key, Entry[V]){},
	}
	if c.normalize == nil {
		c.normalize = func(v V) V { return v }
	}
	if c.clone == nil {
		c.clone = func(v V) V { return v }
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// slotLocked returns the slot for key, creating an empty one.
func (c *Cache[V]) slotLocked(key Key) *slot[V] {
	s, ok := c.slots[key]
	if !ok {
		var zero V
		s = &slot[V]{entry: Entry[V]{Status: StatusEmpty, Data: c.normalize(zero)}}
		c.slots[key] = s
	}
	return s
}

// Peek returns the current entry without triggering a fetch.
func (c *Cache[V]) Peek(key Key) Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slotLocked(key).entry
}

// Get returns fresh data for key, fetching when the entry is empty, stale or failed.
// Callers arriving while a fetch is outstanding wait for that same fetch.
func (c *Cache[V]) Get(ctx context.Context, key Key) (V, error) {
	return c.load(ctx, key, false)
}

// Refetch discards whatever is cached or in flight for key and fetches again.
func (c *Cache[V]) Refetch(ctx context.Context, key Key) (V, error) {
	return c.load(ctx, key, true)
}

// Invalidate marks key stale and orphans any in-flight fetch. Cached data stays readable until
// the next load replaces it.
func (c *Cache[V]) Invalidate(key Key) {
	c.mu.Lock()
	s := c.slotLocked(key)
	s.gen++
	s.entry.Stale = s.entry.Status != StatusEmpty
	e := s.entry
	c.mu.Unlock()
	c.notify(key, e)
}

// Reset drops the entry for key back to empty. In-flight fetches are discarded.
func (c *Cache[V]) Reset(key Key) {
	c.mu.Lock()
	s := c.slotLocked(key)
	s.gen++
	var zero V
	s.entry = Entry[V]{Status: StatusEmpty, Data: c.normalize(zero)}
	e := s.entry
	c.mu.Unlock()
	c.notify(key, e)
}

// Prefetch starts a background load of key. Wait blocks until it settles.
func (c *Cache[V]) Prefetch(key Key) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := c.load(context.Background(), key, false); err != nil {
			c.logger.Debug("background fetch failed", slog.String("key", string(key)), slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until all background loads started by Prefetch or Mutate have finished.
func (c *Cache[V]) Wait() {
	c.bg.Wait()
}

// Subscribe registers fn to receive every entry change. fn runs synchronously on the goroutine
// that made the change and must not block.
func (c *Cache[V]) Subscribe(fn func(Key, Entry[V])) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache[V]) notify(key Key, e Entry[V]) {
	c.mu.Lock()
	fns := make([]func(Key, Entry[V]), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(key, e)
	}
}

type flightResult[V any] struct {
	data V
	// superseded means the generation moved on before the fetch settled.
	superseded bool
}

func flightKey(key Key, gen uint64) string {
	return string(key) + "#" + strconv.FormatUint(gen, 10)
}

func (c *Cache[V]) load(ctx context.Context, key Key, force bool) (V, error) {
	var zero V
	for {
		c.mu.Lock()
		s := c.slotLocked(key)
		changed := false
		if force {
			s.gen++
			force = false
			s.entry.Status = StatusPending
			s.entry.Err = nil
			changed = true
		} else if s.entry.Status == StatusReady && !s.entry.Stale {
			data := s.entry.Data
			c.mu.Unlock()
			return data, nil
		} else if s.entry.Status != StatusPending {
			s.entry.Status = StatusPending
			s.entry.Err = nil
			changed = true
		}
		gen := s.gen
		e := s.entry
		c.mu.Unlock()
		if changed {
			c.notify(key, e)
		}

		// The shared fetch outlives any single caller's cancellation.
		fctx := context.WithoutCancel(ctx)
		ch := c.group.DoChan(flightKey(key, gen), func() (any, error) {
			return c.run(fctx, key, gen)
		})
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case r := <-ch:
			if r.Shared {
				c.metrics.RecordCacheJoin(string(key))
			}
			res := r.Val.(flightResult[V])
			if res.superseded {
				continue
			}
			if r.Err != nil {
				return zero, r.Err
			}
			return res.data, nil
		}
	}
}

// run performs the network fetch for generation gen of key and applies the result if gen is
// still current.
func (c *Cache[V]) run(ctx context.Context, key Key, gen uint64) (flightResult[V], error) {
	c.mu.Lock()
	s := c.slotLocked(key)
	if s.gen != gen {
		c.mu.Unlock()
		return flightResult[V]{superseded: true}, nil
	}
	if s.entry.Status == StatusReady && !s.entry.Stale {
		// An earlier fetch of this generation already settled.
		data := s.entry.Data
		c.mu.Unlock()
		return flightResult[V]{data: data}, nil
	}
	c.mu.Unlock()

	start := c.now()
	v, err := c.fetch(ctx, key)

	c.mu.Lock()
	if s.gen != gen {
		c.mu.Unlock()
		c.metrics.RecordCacheFetch(string(key), "discarded")
		c.logger.Debug("discarded stale fetch result", slog.String("key", string(key)), slog.Uint64("gen", gen))
		return flightResult[V]{superseded: true}, nil
	}
	if err != nil {
		s.entry.Status = StatusError
		s.entry.Err = err
	} else {
		v = c.normalize(v)
		s.entry = Entry[V]{Status: StatusReady, Data: v, UpdatedAt: c.now()}
	}
	e := s.entry
	c.mu.Unlock()

	if err != nil {
		c.metrics.RecordCacheFetch(string(key), "error")
		c.logger.Warn("fetch failed", slog.String("key", string(key)), slog.String("error", err.Error()))
	} else {
		c.metrics.RecordCacheFetch(string(key), "ok")
		c.logger.Debug("fetch done", slog.String("key", string(key)), slog.Duration("duration", c.now().Sub(start)))
	}
	c.notify(key, e)
	if err != nil {
		return flightResult[V]{}, err
	}
	return flightResult[V]{data: v}, nil
}

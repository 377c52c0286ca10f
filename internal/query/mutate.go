package query

import (
	"context"
	"log/slog"
)

// Mutation is one optimistic change: Apply patches the cached value locally, Commit performs
// the remote write.
type Mutation[V any] struct {
	// Apply receives a copy of the cached value and returns the patched value. It must not
	// retain or modify its argument's backing storage beyond the copy it was given.
	Apply  func(V) V
	Commit func(ctx context.Context) error
}

// Mutate snapshots the entry for key, applies m.Apply synchronously, then runs m.Commit.
// On failure the snapshot is restored exactly and the commit error is returned. Either way the
// entry is then invalidated and a background refetch reconciles with the server.
//
// The patch is applied only to an entry that holds fetched data: ready, or pending on a refetch.
// An empty or failed entry, or one still on its first load, is left alone and its in-flight
// fetch keeps running; it is refetched after the commit.
//
// Snapshots are per call. Two overlapping mutations on the same key are not serialized: if the
// first rolls back after the second has patched, the restore discards the second's patch until
// the reconciling refetch lands.
func (c *Cache[V]) Mutate(ctx context.Context, key Key, m Mutation[V]) error {
	c.mu.Lock()
	s := c.slotLocked(key)
	snapshot := s.entry
	snapshot.Data = c.clone(s.entry.Data)
	applied := false
	if m.Apply != nil && hasFetched(s.entry) {
		// Orphan any in-flight fetch so it cannot overwrite the patch.
		s.gen++
		s.entry.Data = c.normalize(m.Apply(c.clone(s.entry.Data)))
		s.entry.Status = StatusReady
		s.entry.Err = nil
		s.entry.UpdatedAt = c.now()
		applied = true
	}
	patched := s.entry
	c.mu.Unlock()
	if applied {
		c.notify(key, patched)
	}

	var err error
	if m.Commit != nil {
		err = m.Commit(ctx)
	}

	if err != nil && applied {
		c.mu.Lock()
		s.gen++
		s.entry = snapshot
		restored := s.entry
		c.mu.Unlock()
		c.metrics.RecordRollback(string(key))
		c.logger.Warn("mutation rolled back", slog.String("key", string(key)), slog.String("error", err.Error()))
		c.notify(key, restored)
	}

	c.Invalidate(key)
	c.Prefetch(key)
	return err
}

func hasFetched[V any](e Entry[V]) bool {
	switch e.Status {
	case StatusReady:
		return true
	case StatusPending:
		return !e.UpdatedAt.IsZero()
	}
	return false
}

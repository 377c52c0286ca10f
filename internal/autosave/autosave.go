// Package autosave coalesces rapid edits to one page into trailing-edge debounced saves.
//
// Each edit updates the local draft immediately and re-arms a quiescence timer; only when the
// timer fires is the full draft persisted. At most one persist runs at a time. If the timer
// fires while a persist is running, the newest draft is sent as soon as that persist returns.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flow-cli/internal/logger"
	"flow-cli/internal/metrics"
)

const (
	DefaultDelay        = time.Second
	DefaultSavedDisplay = 1500 * time.Millisecond
)

type Status int

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Label is the indicator text shown next to the editor.
func (s Status) Label() string {
	switch s {
	case StatusSaving:
		return "Saving..."
	case StatusSaved:
		return "All changes saved"
	case StatusError:
		return "Failed to save"
	default:
		return ""
	}
}

type Field int

const (
	FieldTitle Field = iota
	FieldContent
)

// Draft is the full editable record sent on every save.
type Draft struct {
	Title   string
	Content string
}

type PersistFunc func(ctx context.Context, d Draft) error

type Options struct {
	// Delay is the quiescence window after the last edit. Zero means DefaultDelay.
	Delay time.Duration
	// SavedDisplay is how long "saved" shows before returning to idle. Zero means DefaultSavedDisplay.
	SavedDisplay time.Duration
	Clock        Clock
	// OnStatus is called after every status change, outside the controller's lock, possibly from
	// a timer goroutine.
	OnStatus func(Status)
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

type Controller struct {
	id           int64
	persist      PersistFunc
	delay        time.Duration
	savedDisplay time.Duration
	clock        Clock
	onStatus     func(Status)
	logger       *slog.Logger
	metrics      metrics.Recorder

	mu      sync.Mutex
	draft   Draft
	status  Status
	lastErr error
	timer   Timer
	idle    Timer
	dirty   bool
	running bool
	rerun   bool
	closed  bool
	done    chan struct{}
	// seq identifies the latest persist; the saved→idle timer only acts on its own run.
	seq uint64
	// timerSeq identifies the armed save timer. A callback already dispatched when its timer
	// was replaced or stopped sees a newer value and does nothing.
	timerSeq uint64
}

// New returns a controller for page id starting from the server's copy of the page.
func New(id int64, initial Draft, persist PersistFunc, opts Options) *Controller {
	c := &Controller{
		id:           id,
		persist:      persist,
		delay:        opts.Delay,
		savedDisplay: opts.SavedDisplay,
		clock:        opts.Clock,
		onStatus:     opts.OnStatus,
		logger:       logger.OrDiscard(opts.Logger),
		metrics:      metrics.OrNop(opts.Metrics),
		draft:        initial,
	}
	if c.delay <= 0 {
		c.delay = DefaultDelay
	}
	if c.savedDisplay <= 0 {
		c.savedDisplay = DefaultSavedDisplay
	}
	if c.clock == nil {
		c.clock = RealClock()
	}
	return c
}

func (c *Controller) ID() int64 { return c.id }

func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err is the error of the last failed save, cleared by the next success.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Dirty reports whether the draft has edits that no persist has picked up yet.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Edit applies one field change and re-arms the save timer.
func (c *Controller) Edit(f Field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch f {
	case FieldTitle:
		if c.draft.Title == value {
			return
		}
		c.draft.Title = value
	case FieldContent:
		if c.draft.Content == value {
			return
		}
		c.draft.Content = value
	default:
		return
	}
	c.dirty = true
	if c.closed {
		return
	}
	c.stopTimerLocked()
	ts := c.timerSeq
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(ts) })
}

// stopTimerLocked disarms the save timer and invalidates any callback of it already in flight.
func (c *Controller) stopTimerLocked() bool {
	c.timerSeq++
	if c.timer == nil {
		return false
	}
	stopped := c.timer.Stop()
	c.timer = nil
	return stopped
}

// Cancel drops the scheduled save, if any. The draft is kept and a later Edit or Flush still
// saves it. It reports whether a save was pending.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopTimerLocked()
}

// Flush saves outstanding edits now, waiting for any running save first.
// It returns the outcome of the last save.
func (c *Controller) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		c.stopTimerLocked()
		if c.running {
			done := c.done
			c.rerun = true
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !c.dirty || c.closed {
			err := c.lastErr
			c.mu.Unlock()
			return err
		}
		c.running = true
		c.done = make(chan struct{})
		return c.runLocked(ctx)
	}
}

// Close stops all timers. Edits made after Close are kept in the draft but never saved.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
	if c.idle != nil {
		c.idle.Stop()
		c.idle = nil
	}
}

func (c *Controller) fire(ts uint64) {
	c.mu.Lock()
	if ts != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.running {
		c.rerun = true
		c.mu.Unlock()
		return
	}
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.done = make(chan struct{})
	// The outcome lands in status and the log.
	c.runLocked(context.Background())
}

// runLocked persists the draft until no rerun is requested. It is entered with mu held and the
// running slot claimed, and returns with mu released.
func (c *Controller) runLocked(ctx context.Context) error {
	for {
		d := c.draft
		c.dirty = false
		c.rerun = false
		c.seq++
		seq := c.seq
		if c.idle != nil {
			c.idle.Stop()
			c.idle = nil
		}
		c.status = StatusSaving
		c.mu.Unlock()
		c.emit(StatusSaving)

		err := c.persist(ctx, d)

		c.mu.Lock()
		if err != nil {
			c.status = StatusError
			c.lastErr = err
			c.metrics.RecordAutosave("error")
			c.logger.Warn("autosave failed", slog.Int64("page_id", c.id), slog.String("error", err.Error()))
		} else {
			c.status = StatusSaved
			c.lastErr = nil
			c.metrics.RecordAutosave("ok")
			c.logger.Debug("autosaved", slog.Int64("page_id", c.id))
			if !c.closed {
				c.idle = c.clock.AfterFunc(c.savedDisplay, func() { c.toIdle(seq) })
			}
		}
		st := c.status
		again := c.rerun && c.dirty && !c.closed
		if !again {
			c.running = false
			close(c.done)
			c.mu.Unlock()
			c.emit(st)
			return err
		}
		c.mu.Unlock()
		c.emit(st)
		c.mu.Lock()
	}
}

func (c *Controller) toIdle(seq uint64) {
	c.mu.Lock()
	if c.seq != seq || c.status != StatusSaved {
		c.mu.Unlock()
		return
	}
	c.status = StatusIdle
	c.idle = nil
	c.mu.Unlock()
	c.emit(StatusIdle)
}

func (c *Controller) emit(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

// Package reconcile runs the fetch, diff, notify and persist cycle.
//
// A cycle that cannot fetch leaves the stored snapshot untouched and reports
// itself degraded. A cycle that fetched always persists what it saw, even
// when notifications failed, so delivery is at most once per fetch. If the
// persist itself fails the next cycle recomputes the same unseen set and
// notifies it again: at-least-once in that case, never lost.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mfenderov/duyuru-watch/internal/diff"
	"github.com/mfenderov/duyuru-watch/internal/notifier"
	"github.com/mfenderov/duyuru-watch/internal/snapshot"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Fetcher returns the announcements currently published, in page order.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Announcement, error)
}

// Status is the outcome of one cycle.
type Status string

const (
	StatusUpdated  Status = "updated"  // fetched and persisted
	StatusDegraded Status = "degraded" // fetch failed, previous snapshot served as is
	StatusFailed   Status = "failed"   // snapshot could not be read or written
)

// BaselinePolicy decides what a cycle does when there is no previous snapshot.
type BaselinePolicy string

const (
	BaselineNotify BaselinePolicy = "notify" // every current announcement is notified
	BaselineSilent BaselinePolicy = "silent" // the first snapshot is stored without notifying
)

// StoreReadPolicy decides what a cycle does when the snapshot cannot be read.
type StoreReadPolicy string

const (
	FailClosed StoreReadPolicy = "fail_closed" // abort the cycle
	FailOpen   StoreReadPolicy = "fail_open"   // treat as no previous snapshot
)

// Options configures a Controller.
type Options struct {
	Formatter       *notifier.Formatter
	BaselinePolicy  BaselinePolicy
	StoreReadPolicy StoreReadPolicy
	AlertOnFailure  bool             // send an alert when a cycle degrades or fails
	MaxItems        int              // retention cap of the stored list, 0 = unbounded
	Now             func() time.Time // for tests
}

// RunOptions tunes a single cycle.
type RunOptions struct {
	Silent bool // persist without notifying
}

// Result describes one cycle.
type Result struct {
	CycleID        string
	Status         Status
	Total          int // announcements fetched
	New            int // announcements not in the previous snapshot
	Notified       int // messages delivered
	DeliveryErrors []error
	Snapshot       models.Snapshot // persisted snapshot, or the stale one when degraded
	CheckedAt      time.Time
	Duration       time.Duration
	Err            error // cause of a degraded or failed cycle
}

// Controller orchestrates reconciliation cycles. Cycles of one Controller
// never overlap; concurrent Run calls wait for each other.
type Controller struct {
	fetcher  Fetcher
	store    snapshot.Store
	notifier notifier.Notifier
	opts     Options

	mu sync.Mutex
}

// New creates a Controller.
func New(fetcher Fetcher, store snapshot.Store, n notifier.Notifier, opts Options) (*Controller, error) {
	if fetcher == nil || store == nil || n == nil {
		return nil, fmt.Errorf("fetcher, store and notifier are required")
	}
	if opts.Formatter == nil {
		return nil, fmt.Errorf("formatter is required")
	}

	switch opts.BaselinePolicy {
	case "":
		opts.BaselinePolicy = BaselineNotify
	case BaselineNotify, BaselineSilent:
	default:
		return nil, fmt.Errorf("unknown baseline policy %q", opts.BaselinePolicy)
	}

	switch opts.StoreReadPolicy {
	case "":
		opts.StoreReadPolicy = FailClosed
	case FailClosed, FailOpen:
	default:
		return nil, fmt.Errorf("unknown store read policy %q", opts.StoreReadPolicy)
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		fetcher:  fetcher,
		store:    store,
		notifier: n,
		opts:     opts,
	}, nil
}

// Run executes one cycle. A fetch failure is not an error: the result is
// degraded and carries the stale snapshot. An error is returned only when
// the snapshot could not be read (fail_closed) or written.
func (c *Controller) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.opts.Now()
	res := &Result{CycleID: uuid.NewString()}
	log := slog.With("cycle_id", res.CycleID)
	log.Info("reconciliation started", "silent", opts.Silent)

	defer func() {
		res.Duration = c.opts.Now().Sub(start)
		log.Info("reconciliation finished",
			"status", res.Status,
			"total", res.Total,
			"new", res.New,
			"notified", res.Notified,
			"delivery_errors", len(res.DeliveryErrors),
			"duration", res.Duration)
	}()

	items, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.serveStale(ctx, log, res, err)
		return res, nil
	}
	// Items past the retention window are never stored, so they must not
	// be diffed either or they would be reported as new on every cycle.
	items = models.Snapshot{Items: items}.Bounded(c.opts.MaxItems).Items
	res.Total = len(items)

	previous, err := c.store.Load(ctx)
	if err != nil {
		if c.opts.StoreReadPolicy == FailClosed {
			res.Status = StatusFailed
			res.Err = err
			log.Error("failed to load snapshot, aborting cycle", "error", err)
			c.alert(ctx, log, err)
			return res, fmt.Errorf("failed to load snapshot: %w", err)
		}
		log.Warn("failed to load snapshot, treating as empty", "error", err)
		previous = models.Snapshot{}
	}

	unseen := diff.Unseen(items, previous.Items)
	res.New = len(unseen)

	switch {
	case len(unseen) == 0:
		log.Debug("no new announcements")
	case opts.Silent:
		log.Info("silent run, not notifying", "new", len(unseen))
	case previous.IsEmpty() && c.opts.BaselinePolicy == BaselineSilent:
		log.Info("no previous snapshot, storing baseline without notifying", "new", len(unseen))
	default:
		c.notify(ctx, log, res, unseen)
	}

	snap := models.Snapshot{Items: items, CheckedAt: c.opts.Now()}.Bounded(c.opts.MaxItems)
	if err := c.store.Save(ctx, snap); err != nil {
		res.Status = StatusFailed
		res.Err = err
		log.Error("failed to persist snapshot, next cycle may notify the same announcements again",
			"new", len(unseen), "error", err)
		c.alert(ctx, log, err)
		return res, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	res.Status = StatusUpdated
	res.Snapshot = snap
	res.CheckedAt = snap.CheckedAt
	return res, nil
}

// Reset clears the stored snapshot so the next cycle sees every
// announcement as new.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset snapshot: %w", err)
	}
	slog.Info("snapshot reset")
	return nil
}

func (c *Controller) serveStale(ctx context.Context, log *slog.Logger, res *Result, fetchErr error) {
	res.Status = StatusDegraded
	res.Err = fetchErr
	log.Warn("fetch failed, serving previous snapshot", "error", fetchErr)

	prev, err := c.store.Load(ctx)
	if err != nil {
		log.Warn("failed to load previous snapshot", "error", err)
	} else {
		res.Snapshot = prev
		res.CheckedAt = prev.CheckedAt
	}
	c.alert(ctx, log, fetchErr)
}

func (c *Controller) notify(ctx context.Context, log *slog.Logger, res *Result, unseen []models.Announcement) {
	messages := c.opts.Formatter.NewAnnouncements(unseen)
	for i, m := range messages {
		if err := c.notifier.Notify(ctx, m); err != nil {
			log.Error("notification failed", "part", i+1, "parts", len(messages), "error", err)
			res.DeliveryErrors = append(res.DeliveryErrors, err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		res.Notified++
	}
}

func (c *Controller) alert(ctx context.Context, log *slog.Logger, cause error) {
	if !c.opts.AlertOnFailure {
		return
	}
	if err := c.notifier.Notify(ctx, c.opts.Formatter.Alert(cause)); err != nil {
		log.Error("failed to send alert", "error", err)
	}
}

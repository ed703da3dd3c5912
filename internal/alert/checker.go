// Package alert implements the price-alert reconciliation loop: a single
// background worker that periodically re-prices every stored alert and
// applies notify/reset hysteresis to decide when the user should hear
// about it.
package alert

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"travelfolio/internal/database"
	"travelfolio/internal/store"
	"travelfolio/internal/types"
)

// sleepSlice is the granularity of the between-sweep sleep. Stop requests
// take effect within one slice, not a full interval.
const sleepSlice = time.Second

// Sink receives an event every time an alert has been priced, whether or
// not it triggered. The websocket hub and the notifier fan-out implement it.
type Sink interface {
	AlertChecked(ev types.AlertEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev types.AlertEvent)

func (f SinkFunc) AlertChecked(ev types.AlertEvent) { f(ev) }

// Config tunes the sweep loop.
type Config struct {
	// Interval between full sweeps. Defaults to one hour.
	Interval time.Duration
	// FallbackDays is how far ahead to price alerts that carry no travel
	// date. Defaults to 30.
	FallbackDays int
}

// Checker owns the sweep loop. Construct once at startup and run on its
// own goroutine; everything it needs is injected.
type Checker struct {
	store    store.Store
	resolver *Resolver
	history  *database.DB // optional
	sink     Sink         // optional
	cfg      Config

	now func() time.Time
}

func NewChecker(st store.Store, r *Resolver, hist *database.DB, sink Sink, cfg Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.FallbackDays <= 0 {
		cfg.FallbackDays = 30
	}
	return &Checker{store: st, resolver: r, history: hist, sink: sink, cfg: cfg, now: time.Now}
}

// Run sweeps immediately, then on every interval tick until ctx is
// cancelled. It returns only when the loop has fully stopped.
func (c *Checker) Run(ctx context.Context) {
	log.Infof("🚀 Alert sweep started (interval %s)", c.cfg.Interval)
	for {
		c.Sweep(ctx)
		if !c.pause(ctx) {
			log.Info("🛑 Alert sweep stopped")
			return
		}
	}
}

// pause sleeps one interval in small slices so cancellation is prompt.
// It reports false when ctx was cancelled.
func (c *Checker) pause(ctx context.Context) bool {
	remaining := c.cfg.Interval
	for remaining > 0 {
		slice := sleepSlice
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(slice):
		}
		remaining -= slice
	}
	return true
}

// Sweep runs one full pass over every alert of every known user. Alerts are
// processed strictly sequentially; no single alert's failure aborts the
// rest of the sweep.
func (c *Checker) Sweep(ctx context.Context) {
	log.Debug("🔄 Checking alerts...")

	users, err := c.store.Users(ctx)
	if err != nil {
		log.Errorf("❌ Failed to list users: %v", err)
		return
	}

	checked := 0
	for _, user := range users {
		alerts, err := c.store.Alerts(ctx, user)
		if err != nil {
			log.Errorf("❌ Failed to fetch alerts for %s: %v", user, err)
			continue
		}
		for _, al := range alerts {
			if ctx.Err() != nil {
				return
			}
			c.checkOne(ctx, user, al)
			checked++
		}
	}

	log.Debugf("✅ Alert sweep completed, %d alerts checked", checked)
}

// checkOne prices a single alert and persists the hysteresis outcome.
func (c *Checker) checkOne(ctx context.Context, user string, al types.Alert) {
	if al.Dest == "" || !al.TargetPrice.IsSet() {
		log.Debugf("⚠️ Skipping alert %s: missing destination or target", al.ID)
		return
	}
	target, ok := al.TargetPrice.Float()
	if !ok {
		log.Warnf("⚠️ Skipping alert %s: unparseable target price", al.ID)
		return
	}

	current, err := c.resolve(ctx, al)
	if err != nil {
		log.Warnf("⚠️ Could not price alert %s (%s → %s): %v", al.ID, al.Origin, al.Dest, err)
		return
	}

	patch, triggered := evaluate(al, target, current, c.now())

	if err := c.store.PatchAlert(ctx, user, al.ID, patch); err != nil {
		log.Errorf("❌ Failed to persist alert %s: %v", al.ID, err)
	}
	c.record(user, al, current)

	if triggered {
		log.Infof("🚨 Alert %s triggered: %s → %s at %.2f (target %.2f)", al.ID, al.Origin, al.Dest, current, target)
	}
	c.emit(al, current, target, triggered)
}

// PreviewAlert prices an alert payload on demand without touching any
// stored state. Manual checks are read-only; only the background sweep
// moves notifiedAt. The event says whether the current fare is at or below
// target, not whether the hysteresis rule would notify.
func (c *Checker) PreviewAlert(ctx context.Context, al types.Alert) (types.AlertEvent, error) {
	target, ok := al.TargetPrice.Float()
	if al.Dest == "" || !ok {
		return types.AlertEvent{}, errors.New("alert has no destination or target price")
	}

	current, err := c.resolve(ctx, al)
	if err != nil {
		return types.AlertEvent{}, err
	}

	return types.AlertEvent{
		ID:           al.ID,
		Dest:         al.Dest,
		Origin:       al.Origin,
		Date:         al.Date,
		CurrentPrice: current,
		TargetPrice:  target,
		Triggered:    current <= target,
	}, nil
}

func (c *Checker) resolve(ctx context.Context, al types.Alert) (float64, error) {
	date := al.Date
	if date == "" {
		date = c.now().AddDate(0, 0, c.cfg.FallbackDays).Format("2006-01-02")
	}
	return c.resolver.Resolve(ctx, al.Origin, al.Dest, date)
}

func (c *Checker) record(user string, al types.Alert, current float64) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordPrice(user, al.ID, al.Origin, al.Dest, current, c.now().UTC()); err != nil {
		log.Warnf("⚠️ Failed to record price history for %s: %v", al.ID, err)
	}
}

func (c *Checker) emit(al types.Alert, current, target float64, triggered bool) {
	if c.sink == nil {
		return
	}
	c.sink.AlertChecked(types.AlertEvent{
		ID:           al.ID,
		Dest:         al.Dest,
		Origin:       al.Origin,
		Date:         al.Date,
		CurrentPrice: current,
		TargetPrice:  target,
		Triggered:    triggered,
	})
}

// evaluate applies the hysteresis rule to one priced alert. Notify on the
// first drop to or below target, and again on any later drop that follows
// a rise above target; a rise above target after a notified low clears the
// notification so the next drop fires again. lastSeenPrice is always
// rewritten.
func evaluate(al types.Alert, target, current float64, now time.Time) (store.AlertPatch, bool) {
	patch := store.AlertPatch{LastSeenPrice: &current}

	if current <= target {
		wasAbove := al.LastSeenPrice != nil && *al.LastSeenPrice > target
		if al.NotifiedAt == nil || wasAbove {
			patch.NotifiedAt = &now
			patch.TriggeredPrice = &current
			return patch, true
		}
		return patch, false
	}

	if al.NotifiedAt != nil && al.LastSeenPrice != nil && *al.LastSeenPrice <= target {
		patch.ClearNotifiedAt = true
	}
	return patch, false
}

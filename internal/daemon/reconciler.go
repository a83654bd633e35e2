package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/platform"
	"github.com/1broseidon/tiletree/internal/wm"
)

// WindowLister is a function that returns the live client windows.
type WindowLister func() ([]platform.Window, error)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically compares the tree with the live client list and
// corrects drift from missed notifications.
type Reconciler struct {
	interval    time.Duration
	daemon      *Daemon
	listWindows WindowLister
	logger      *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, d *Daemon, listWindows WindowLister) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval:    interval,
		daemon:      d,
		listWindows: listWindows,
		logger:      logger.With("component", "reconciler"),
	}
}

func (r *Reconciler) String() string {
	return "daemon.Reconciler"
}

// Serve runs the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.ReconcileNow(ctx); err != nil {
				r.logger.Warn("reconcile failed", "error", err)
			}
		}
	}
}

// ReconcileNow performs a single pass and waits for it to be applied.
func (r *Reconciler) ReconcileNow(ctx context.Context) error {
	live, err := r.listWindows()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	return r.daemon.Do(ctx, func(ctx context.Context) error {
		r.apply(ctx, live)
		return nil
	})
}

// apply runs on the control goroutine.
func (r *Reconciler) apply(ctx context.Context, live []platform.Window) {
	d := r.daemon
	seen := make(map[container.Handle]struct{}, len(live))
	for _, w := range live {
		seen[w.ID] = struct{}{}
	}

	var stale []container.Handle
	for n := range d.tree.Windows() {
		if _, ok := seen[n.Window.Handle]; !ok {
			stale = append(stale, n.Window.Handle)
		}
	}
	for _, h := range stale {
		r.logger.Info("reconciler: window vanished", "window", fmt.Sprintf("0x%x", uint32(h)))
		bus.Publish(ctx, d.bus, wm.WindowClosed{Handle: h})
	}

	for _, w := range live {
		if _, ok := d.tree.FindWindowByHandle(w.ID); ok {
			continue
		}
		r.logger.Info("reconciler: unmanaged window found", "window", fmt.Sprintf("0x%x", uint32(w.ID)), "class", w.AppID)
		d.manage(ctx, w)
	}
}

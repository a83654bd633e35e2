// Package daemon runs the window manager: it owns the container tree and
// the bus, and serializes every mutation on one control goroutine.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/config"
	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
	"github.com/1broseidon/tiletree/internal/platform"
	"github.com/1broseidon/tiletree/internal/wm"
)

// ErrStopped is returned by Do when the control loop is not running.
var ErrStopped = errors.New("daemon stopped")

// Registrar installs extra handlers or observers on the bus.
type Registrar interface {
	Register(b *bus.Bus)
}

// Options configures a Daemon.
type Options struct {
	Config  *config.Config
	Backend platform.Backend
	Logger  *slog.Logger
	// Level, when set, follows log_level across reloads.
	Level *slog.LevelVar
	// LoadConfig reads a fresh config for RELOAD. Defaults to config.Load.
	LoadConfig func() (*config.Config, error)
	// Observers are registered on the bus after the core handlers.
	Observers []Registrar
}

type op struct {
	fn   func(ctx context.Context) error
	done chan error
}

// Daemon is the running window manager.
type Daemon struct {
	logger     *slog.Logger
	level      *slog.LevelVar
	backend    platform.Backend
	loadConfig func() (*config.Config, error)

	// Owned by the control goroutine.
	cfg      *config.Config
	tree     *container.Tree
	bus      *bus.Bus
	coord    *layout.Coordinator
	manager  *wm.Manager
	booted   bool
	monitors map[int]monitor

	ops     chan op
	started time.Time
}

// New wires the tree, bus, coordinator and transition handlers.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	load := opts.LoadConfig
	if load == nil {
		load = config.Load
	}

	d := &Daemon{
		logger:     logger.With("component", "daemon"),
		level:      opts.Level,
		backend:    opts.Backend,
		loadConfig: load,
		cfg:        cfg,
		tree:       container.NewTree(),
		bus:        bus.New(logger),
		monitors:   make(map[int]monitor),
		ops:        make(chan op, 64),
		started:    time.Now(),
	}

	var native layout.NativeSync
	var focuser wm.Focuser
	if opts.Backend != nil {
		native = opts.Backend
		focuser = opts.Backend
	}
	d.coord = layout.NewCoordinator(d.tree, native, cfg, logger)
	d.coord.Register(d.bus)
	d.manager = wm.New(d.tree, d.coord, focuser, logger)
	d.manager.Register(d.bus)
	bus.Subscribe(d.bus, "daemon.focus", func(_ context.Context, ev wm.FocusChanged) error {
		d.logger.Debug("focus changed", "node", ev.Node, "window", fmt.Sprintf("0x%x", uint32(ev.Handle)), "workspace", ev.Workspace)
		return nil
	})
	for _, o := range opts.Observers {
		o.Register(d.bus)
	}
	return d
}

func (d *Daemon) String() string {
	return "daemon.Control"
}

// Serve bootstraps the tree on first start, then executes queued operations
// one at a time until ctx is done.
func (d *Daemon) Serve(ctx context.Context) error {
	if !d.booted {
		if err := d.bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		d.booted = true
	}

	d.logger.Info("control loop started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("control loop stopped")
			return ctx.Err()
		case o := <-d.ops:
			err := d.run(ctx, o.fn)
			if o.done != nil {
				o.done <- err
			} else if err != nil {
				d.logger.Warn("operation failed", "error", err)
			}
		}
	}
}

// run executes fn, turning a panic into an error so one bad operation does
// not take the manager down.
func (d *Daemon) run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("operation panic recovered", "panic", r)
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Do runs fn on the control goroutine and waits for its result.
func (d *Daemon) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	select {
	case d.ops <- op{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn on the control goroutine without waiting.
func (d *Daemon) Post(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case d.ops <- op{fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Bus returns the daemon's bus. Only use it from inside Do or Post.
func (d *Daemon) Bus() *bus.Bus {
	return d.bus
}

// Containers returns the container tree. Only use it from inside Do or Post.
func (d *Daemon) Containers() *container.Tree {
	return d.tree
}

// bootstrap creates monitors and workspaces from the displays and adopts
// the windows that already exist.
func (d *Daemon) bootstrap(ctx context.Context) error {
	var displays []platform.Display
	if d.backend != nil {
		var err error
		displays, err = d.backend.Displays()
		if err != nil {
			return fmt.Errorf("list displays: %w", err)
		}
	}
	if len(displays) == 0 {
		return fmt.Errorf("no displays found")
	}

	d.syncDisplays(displays)

	first, _ := d.tree.WorkspaceByName(d.cfg.Workspaces[0])
	d.tree.SetFocused(first.ID)

	if err := d.adopt(ctx); err != nil {
		return err
	}

	for ws := range d.tree.Workspaces() {
		d.coord.MarkContainer(ws.ID)
	}
	if _, err := d.coord.Redraw(ctx); err != nil {
		d.logger.Warn("initial redraw failed", "error", err)
	}
	d.logger.Info("bootstrapped",
		"monitors", len(displays),
		"workspaces", len(d.cfg.Workspaces),
		"windows", d.countWindows())
	return nil
}

// adopt manages every client window present at startup.
func (d *Daemon) adopt(ctx context.Context) error {
	windows, err := d.backend.ListWindows()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	for _, w := range windows {
		d.manage(ctx, w)
	}
	if active, err := d.backend.ActiveWindow(); err == nil && active != 0 {
		bus.Publish(ctx, d.bus, wm.WindowFocused{Handle: active})
	}
	return nil
}

func (d *Daemon) countWindows() int {
	n := 0
	for range d.tree.Windows() {
		n++
	}
	return n
}

// reconfigure applies cfg to the running tree and redraws everything.
func (d *Daemon) reconfigure(ctx context.Context, cfg *config.Config) error {
	d.cfg = cfg
	d.coord.SetGapSource(cfg)
	if d.level != nil {
		d.level.Set(cfg.SlogLevel())
	}

	// New workspace names land on the first monitor.
	if mon, ok := d.firstMonitor(); ok {
		for _, name := range cfg.Workspaces {
			if _, exists := d.tree.WorkspaceByName(name); exists {
				continue
			}
			d.addWorkspace(name, mon.node)
		}
	}

	for ws := range d.tree.Workspaces() {
		d.coord.MarkContainer(ws.ID)
	}
	_, err := d.coord.Redraw(ctx)
	return err
}

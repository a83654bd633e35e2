package hotkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/1broseidon/tiletree/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// DefaultActionTimeout bounds a single hotkey-triggered action.
const DefaultActionTimeout = 5 * time.Second

// Runner performs named actions.
type Runner interface {
	RunAction(ctx context.Context, name string) error
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	runner  Runner
	logger  *slog.Logger
	timeout time.Duration
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler. Backends without X11 internals
// yield a handler whose Bind fails.
func NewHandler(backend platform.Backend, runner Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	var xu *xgbutil.XUtil
	var root xproto.Window
	if accessor, ok := backend.(x11Accessor); ok {
		xu = accessor.XUtil()
		root = accessor.RootWindow()
	}

	if xu != nil {
		ignoreModsOnce.Do(func() {
			configureIgnoreMods(xu)
		})
	}

	return &Handler{
		xu:      xu,
		root:    root,
		runner:  runner,
		logger:  logger,
		timeout: DefaultActionTimeout,
	}
}

// Bind grabs every key sequence in bindings (action -> sequence). Grabs that
// fail are reported together; the others stay active.
func (h *Handler) Bind(bindings map[string]string) error {
	if h.xu == nil {
		return fmt.Errorf("hotkeys need an X11 backend")
	}
	var errs []error
	for _, action := range slices.Sorted(maps.Keys(bindings)) {
		seq := bindings[action]
		if err := h.RegisterFunc(seq, func() { go h.run(action) }); err != nil {
			errs = append(errs, fmt.Errorf("bind %s to %q: %w", action, seq, err))
			continue
		}
		h.logger.Debug("Hotkey bound", "action", action, "keys", seq)
	}
	return errors.Join(errs...)
}

// RegisterFunc registers an arbitrary hotkey callback. Callbacks run on the X
// event goroutine and must not block.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func (h *Handler) run(action string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.logger.Debug("Hotkey triggered", "action", action)
	if err := h.runner.RunAction(ctx, action); err != nil {
		h.logger.Warn("Hotkey action failed", "action", action, "error", err)
	}
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")
	xevent.IgnoreMods = ignoreMasks(uint16(xproto.ModMaskLock), numLock, scrollLock)
}

// ignoreMasks returns every combination of the lock modifiers, including the
// empty one, sorted and without duplicates. Zero masks are skipped.
func ignoreMasks(locks ...uint16) []uint16 {
	var base []uint16
	for _, m := range locks {
		if m != 0 && !slices.Contains(base, m) {
			base = append(base, m)
		}
	}

	unique := map[uint16]struct{}{0: {}}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}
	return slices.Sorted(maps.Keys(unique))
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}

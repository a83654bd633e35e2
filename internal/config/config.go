package config

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
	"gopkg.in/yaml.v3"
)

// Margins holds per-side spacing in pixels.
type Margins struct {
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

// Config is the effective configuration used by the daemon.
type Config struct {
	InnerGapPx         int               `yaml:"inner_gap"`
	Padding            Margins           `yaml:"screen_padding"`
	DefaultOrientation string            `yaml:"default_orientation"`
	Workspaces         []string          `yaml:"workspaces"`
	FloatingClasses    []string          `yaml:"floating_classes,omitempty"`
	LogLevel           string            `yaml:"log_level"`
	Display            string            `yaml:"display,omitempty"`
	ReconcileInterval  time.Duration     `yaml:"reconcile_interval"`
	MetricsListen      string            `yaml:"metrics_listen,omitempty"`
	Keybindings        map[string]string `yaml:"keybindings,omitempty"` // action -> xgbutil key sequence
}

// BindableActions lists the action names keybindings may use.
var BindableActions = []string{"minimize", "restore_all", "next_workspace", "prev_workspace", "redraw"}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		InnerGapPx:         10,
		DefaultOrientation: "horizontal",
		Workspaces:         []string{"1"},
		LogLevel:           "info",
		ReconcileInterval:  10 * time.Second,
		Keybindings: map[string]string{
			"minimize":       "Mod4-Mod1-m",
			"restore_all":    "Mod4-Mod1-r",
			"next_workspace": "Mod4-Mod1-Right",
			"prev_workspace": "Mod4-Mod1-Left",
		},
	}
}

// InnerGap implements layout.GapSource.
func (c *Config) InnerGap() int {
	if c == nil {
		return 0
	}
	return c.InnerGapPx
}

// ScreenPadding implements layout.GapSource.
func (c *Config) ScreenPadding() layout.Padding {
	if c == nil {
		return layout.Padding{}
	}
	return layout.Padding{
		Top:    c.Padding.Top,
		Bottom: c.Padding.Bottom,
		Left:   c.Padding.Left,
		Right:  c.Padding.Right,
	}
}

// Orientation returns the parsed default orientation for new workspaces.
func (c *Config) Orientation() container.Orientation {
	o, err := container.ParseOrientation(c.DefaultOrientation)
	if err != nil {
		return container.Horizontal
	}
	return o
}

// SlogLevel maps log_level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsFloatingClass reports whether windows of the given WM_CLASS start floating.
func (c *Config) IsFloatingClass(class string) bool {
	if class == "" {
		return false
	}
	return slices.ContainsFunc(c.FloatingClasses, func(fc string) bool {
		return strings.EqualFold(fc, class)
	})
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the source YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out := struct {
		InnerGap           int               `yaml:"inner_gap"`
		ScreenPadding      Margins           `yaml:"screen_padding"`
		DefaultOrientation string            `yaml:"default_orientation"`
		Workspaces         []string          `yaml:"workspaces"`
		FloatingClasses    []string          `yaml:"floating_classes,omitempty"`
		LogLevel           string            `yaml:"log_level"`
		Display            string            `yaml:"display,omitempty"`
		ReconcileInterval  string            `yaml:"reconcile_interval"`
		MetricsListen      string            `yaml:"metrics_listen,omitempty"`
		Keybindings        map[string]string `yaml:"keybindings,omitempty"`
	}{
		InnerGap:           c.InnerGapPx,
		ScreenPadding:      c.Padding,
		DefaultOrientation: c.DefaultOrientation,
		Workspaces:         c.Workspaces,
		FloatingClasses:    c.FloatingClasses,
		LogLevel:           c.LogLevel,
		Display:            c.Display,
		ReconcileInterval:  c.ReconcileInterval.String(),
		MetricsListen:      c.MetricsListen,
		Keybindings:        c.Keybindings,
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if c.InnerGapPx < 0 {
		return &ValidationError{Path: "inner_gap", Err: fmt.Errorf("inner_gap must be >= 0")}
	}
	if c.Padding.Top < 0 || c.Padding.Bottom < 0 || c.Padding.Left < 0 || c.Padding.Right < 0 {
		return &ValidationError{Path: "screen_padding", Err: fmt.Errorf("screen_padding values must be >= 0")}
	}
	if _, err := container.ParseOrientation(c.DefaultOrientation); err != nil {
		return &ValidationError{Path: "default_orientation", Err: fmt.Errorf("default_orientation must be one of: horizontal, vertical")}
	}
	if len(c.Workspaces) == 0 {
		return &ValidationError{Path: "workspaces", Err: fmt.Errorf("workspaces must not be empty")}
	}
	seen := make(map[string]struct{}, len(c.Workspaces))
	for _, name := range c.Workspaces {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Path: "workspaces", Err: fmt.Errorf("workspace names must not be empty")}
		}
		if _, dup := seen[name]; dup {
			return &ValidationError{Path: "workspaces", Err: fmt.Errorf("duplicate workspace %q", name)}
		}
		seen[name] = struct{}{}
	}
	for _, class := range c.FloatingClasses {
		if strings.TrimSpace(class) == "" {
			return &ValidationError{Path: "floating_classes", Err: fmt.Errorf("floating_classes contains an empty class name")}
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.ReconcileInterval <= 0 {
		return &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("reconcile_interval must be positive")}
	}
	keys := make(map[string]string, len(c.Keybindings))
	for _, action := range slices.Sorted(maps.Keys(c.Keybindings)) {
		path := "keybindings." + action
		if !slices.Contains(BindableActions, action) {
			return &ValidationError{Path: path, Err: fmt.Errorf("unknown action %q (valid: %s)", action, strings.Join(BindableActions, ", "))}
		}
		seq := c.Keybindings[action]
		if strings.TrimSpace(seq) == "" {
			return &ValidationError{Path: path, Err: fmt.Errorf("key sequence must not be empty")}
		}
		if other, dup := keys[seq]; dup {
			return &ValidationError{Path: path, Err: fmt.Errorf("%q is already bound to %s", seq, other)}
		}
		keys[seq] = action
	}
	return nil
}

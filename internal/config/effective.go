package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a bad value at a YAML path, with the file position
// that set it when known.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig layers raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	cfg.InnerGapPx = derefInt(raw.InnerGap, cfg.InnerGapPx)
	cfg.Padding = Margins{
		Top:    derefInt(raw.ScreenPadding.Top, cfg.Padding.Top),
		Bottom: derefInt(raw.ScreenPadding.Bottom, cfg.Padding.Bottom),
		Left:   derefInt(raw.ScreenPadding.Left, cfg.Padding.Left),
		Right:  derefInt(raw.ScreenPadding.Right, cfg.Padding.Right),
	}
	if raw.DefaultOrientation != nil {
		cfg.DefaultOrientation = strings.ToLower(strings.TrimSpace(*raw.DefaultOrientation))
	}
	if raw.Workspaces != nil {
		cfg.Workspaces = append([]string(nil), raw.Workspaces...)
	}
	if raw.FloatingClasses != nil {
		cfg.FloatingClasses = append([]string(nil), raw.FloatingClasses...)
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.ReconcileInterval != nil {
		d, err := time.ParseDuration(*raw.ReconcileInterval)
		if err != nil {
			return nil, &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("invalid duration %q", *raw.ReconcileInterval)}
		}
		cfg.ReconcileInterval = d
	}
	if raw.MetricsListen != nil {
		cfg.MetricsListen = strings.TrimSpace(*raw.MetricsListen)
	}
	for action, seq := range raw.Keybindings {
		seq = strings.TrimSpace(seq)
		if seq == "" {
			delete(cfg.Keybindings, action)
			continue
		}
		cfg.Keybindings[action] = seq
	}

	return cfg, nil
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

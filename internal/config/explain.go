package config

import (
	"fmt"
	"slices"
	"strings"
)

// Paths lists every top-level path Explain accepts, in file order.
var Paths = []string{
	"inner_gap",
	"screen_padding",
	"default_orientation",
	"workspaces",
	"floating_classes",
	"log_level",
	"display",
	"reconcile_interval",
	"metrics_listen",
	"keybindings",
}

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	inner_gap
//	screen_padding
//	screen_padding.top
//	default_orientation
//	workspaces
//	floating_classes
//	log_level
//	display
//	reconcile_interval
//	metrics_listen
//	keybindings
//	keybindings.minimize
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// Exact-path file source wins.
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	// A padding side or binding inherits the position of a flow-style parent mapping.
	if parent, _, found := strings.Cut(path, "."); found {
		if src, ok := res.Sources[parent]; ok {
			return value, src, nil
		}
	}

	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if parts[0] == "keybindings" {
		switch len(parts) {
		case 1:
			return cfg.Keybindings, nil
		case 2:
			if seq, ok := cfg.Keybindings[parts[1]]; ok {
				return seq, nil
			}
			if slices.Contains(BindableActions, parts[1]) {
				return "", nil
			}
		}
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	if parts[0] == "screen_padding" {
		switch {
		case len(parts) == 1:
			return cfg.Padding, nil
		case len(parts) == 2:
			switch parts[1] {
			case "top":
				return cfg.Padding.Top, nil
			case "bottom":
				return cfg.Padding.Bottom, nil
			case "left":
				return cfg.Padding.Left, nil
			case "right":
				return cfg.Padding.Right, nil
			}
		}
		return nil, fmt.Errorf("unknown path: %s", path)
	}

	if len(parts) != 1 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	switch parts[0] {
	case "inner_gap":
		return cfg.InnerGapPx, nil
	case "default_orientation":
		return cfg.DefaultOrientation, nil
	case "workspaces":
		return cfg.Workspaces, nil
	case "floating_classes":
		return cfg.FloatingClasses, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "display":
		return cfg.Display, nil
	case "reconcile_interval":
		return cfg.ReconcileInterval.String(), nil
	case "metrics_listen":
		return cfg.MetricsListen, nil
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}

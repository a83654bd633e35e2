package config

import (
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawMargins struct {
	Top    *int `yaml:"top"`
	Bottom *int `yaml:"bottom"`
	Left   *int `yaml:"left"`
	Right  *int `yaml:"right"`
}

// RawConfig mirrors the YAML file. Pointer fields distinguish "unset" from
// zero so includes can be layered.
type RawConfig struct {
	Include IncludeList `yaml:"include"`

	InnerGap           *int       `yaml:"inner_gap"`
	ScreenPadding      RawMargins `yaml:"screen_padding"`
	DefaultOrientation *string    `yaml:"default_orientation"`
	Workspaces         []string   `yaml:"workspaces"`
	FloatingClasses    []string   `yaml:"floating_classes"`
	LogLevel           *string    `yaml:"log_level"`
	Display            *string    `yaml:"display"`
	ReconcileInterval  *string    `yaml:"reconcile_interval"`
	MetricsListen      *string    `yaml:"metrics_listen"`
	// An empty sequence unbinds an action set by an earlier file or the defaults.
	Keybindings map[string]string `yaml:"keybindings"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	// include is handled by the loader; do not merge.
	out.Include = nil

	if overlay.InnerGap != nil {
		out.InnerGap = overlay.InnerGap
	}
	out.ScreenPadding = mergeRawMargins(out.ScreenPadding, overlay.ScreenPadding)
	if overlay.DefaultOrientation != nil {
		out.DefaultOrientation = overlay.DefaultOrientation
	}
	// Lists replace rather than append.
	if overlay.Workspaces != nil {
		out.Workspaces = append([]string(nil), overlay.Workspaces...)
	}
	if overlay.FloatingClasses != nil {
		out.FloatingClasses = append([]string(nil), overlay.FloatingClasses...)
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.ReconcileInterval != nil {
		out.ReconcileInterval = overlay.ReconcileInterval
	}
	if overlay.MetricsListen != nil {
		out.MetricsListen = overlay.MetricsListen
	}
	// Keybindings merge per action.
	if overlay.Keybindings != nil {
		merged := make(map[string]string, len(out.Keybindings)+len(overlay.Keybindings))
		maps.Copy(merged, out.Keybindings)
		maps.Copy(merged, overlay.Keybindings)
		out.Keybindings = merged
	}

	return out
}

func mergeRawMargins(base RawMargins, overlay RawMargins) RawMargins {
	out := base
	if overlay.Top != nil {
		out.Top = overlay.Top
	}
	if overlay.Bottom != nil {
		out.Bottom = overlay.Bottom
	}
	if overlay.Left != nil {
		out.Left = overlay.Left
	}
	if overlay.Right != nil {
		out.Right = overlay.Right
	}
	return out
}

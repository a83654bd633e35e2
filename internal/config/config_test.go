package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/tiletree/internal/container"
	"github.com/1broseidon/tiletree/internal/layout"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.InnerGap() != 10 {
		t.Fatalf("expected default inner gap 10, got %d", cfg.InnerGap())
	}
	if cfg.ReconcileInterval != 10*time.Second {
		t.Fatalf("expected default reconcile interval 10s, got %s", cfg.ReconcileInterval)
	}
}

func TestConfig_IsGapSource(t *testing.T) {
	var src layout.GapSource = &Config{InnerGapPx: 4, Padding: Margins{Top: 30, Left: 2}}
	if src.InnerGap() != 4 {
		t.Fatalf("inner gap = %d, want 4", src.InnerGap())
	}
	want := layout.Padding{Top: 30, Left: 2}
	if got := src.ScreenPadding(); got != want {
		t.Fatalf("padding = %+v, want %+v", got, want)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
	if res.Config.Orientation() != container.Horizontal {
		t.Fatalf("expected horizontal default orientation")
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.InnerGapPx != DefaultConfig().InnerGapPx {
		t.Fatalf("expected default inner_gap, got %d", res.Config.InnerGapPx)
	}
}

func TestLoadFromPath_AllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"inner_gap: 6",
		"screen_padding: {top: 24, bottom: 0, left: 4, right: 4}",
		"default_orientation: Vertical",
		"workspaces: [web, code]",
		"floating_classes: [Pavucontrol]",
		"log_level: debug",
		`display: ":1"`,
		"reconcile_interval: 2s",
		`metrics_listen: "127.0.0.1:9464"`,
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.InnerGapPx != 6 || cfg.Padding.Top != 24 || cfg.Padding.Right != 4 {
		t.Fatalf("unexpected spacing: gap=%d padding=%+v", cfg.InnerGapPx, cfg.Padding)
	}
	if cfg.Orientation() != container.Vertical {
		t.Fatalf("expected vertical orientation, got %q", cfg.DefaultOrientation)
	}
	if strings.Join(cfg.Workspaces, ",") != "web,code" {
		t.Fatalf("unexpected workspaces %v", cfg.Workspaces)
	}
	if !cfg.IsFloatingClass("pavucontrol") || cfg.IsFloatingClass("firefox") {
		t.Fatalf("floating class match is wrong for %v", cfg.FloatingClasses)
	}
	if cfg.Display != ":1" || cfg.LogLevel != "debug" || cfg.MetricsListen != "127.0.0.1:9464" {
		t.Fatalf("unexpected scalars: %+v", cfg)
	}
	if cfg.ReconcileInterval != 2*time.Second {
		t.Fatalf("reconcile interval = %s", cfg.ReconcileInterval)
	}
}

func TestLoadFromPath_KeybindingsMergePerAction(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "keys.yaml")
	writeFile(t, base, "keybindings:\n  redraw: Mod4-Mod1-d\n  next_workspace: Mod4-Tab\n")
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include: keys.yaml\nkeybindings:\n  restore_all: \"\"\n  next_workspace: Mod4-n\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := res.Config.Keybindings
	want := map[string]string{
		"minimize":       "Mod4-Mod1-m",
		"next_workspace": "Mod4-n",
		"prev_workspace": "Mod4-Mod1-Left",
		"redraw":         "Mod4-Mod1-d",
	}
	if len(got) != len(want) {
		t.Fatalf("keybindings = %v, want %v", got, want)
	}
	for action, seq := range want {
		if got[action] != seq {
			t.Fatalf("keybindings[%s] = %q, want %q", action, got[action], seq)
		}
	}

	val, src, err := Explain(res, "keybindings.redraw")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "Mod4-Mod1-d" || !strings.HasSuffix(src.File, "keys.yaml") {
		t.Fatalf("explain redraw = %v from %s", val, src)
	}
	if val, _, err := Explain(res, "keybindings.restore_all"); err != nil || val != "" {
		t.Fatalf("unbound action should explain as empty, got %v, %v", val, err)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "gap_size: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "gap_size") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
	}{
		{"negative gap", "inner_gap: -1\n", "inner_gap"},
		{"negative padding", "screen_padding:\n  left: -3\n", "screen_padding"},
		{"bad orientation", "default_orientation: diagonal\n", "default_orientation"},
		{"no workspaces", "workspaces: []\n", "workspaces"},
		{"duplicate workspace", "workspaces: [a, a]\n", "workspaces"},
		{"bad log level", "log_level: trace\n", "log_level"},
		{"bad interval", "reconcile_interval: soon\n", "reconcile_interval"},
		{"zero interval", "reconcile_interval: 0s\n", "reconcile_interval"},
		{"unknown action", "keybindings:\n  undo: Mod4-z\n", "keybindings.undo"},
		{"duplicate key", "keybindings:\n  redraw: Mod4-Mod1-m\n", "keybindings.redraw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.data)

			_, err := LoadFromPath(path)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("path = %q, want %q", verr.Path, tt.path)
			}
		})
	}
}

func TestLoadFromPath_ValidationErrorHasSourcePosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log_level: info\ninner_gap: -4\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(configD, "10-base.yaml"), "inner_gap: 5\nworkspaces: [a]\n")
	writeFile(t, filepath.Join(configD, "20-override.yaml"), "inner_gap: 6\nfloating_classes: [Gimp]\n")
	writeFile(t, filepath.Join(configD, "notes.txt"), "not yaml")

	// Main file overrides includes.
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"include:",
		"  - config.d",
		"inner_gap: 7",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.InnerGapPx != 7 {
		t.Fatalf("expected inner_gap to be 7, got %d", res.Config.InnerGapPx)
	}
	if len(res.Config.Workspaces) != 1 || res.Config.Workspaces[0] != "a" {
		t.Fatalf("expected included workspaces, got %v", res.Config.Workspaces)
	}
	if !res.Config.IsFloatingClass("gimp") {
		t.Fatalf("expected included floating class")
	}
	if len(res.Files) != 3 || filepath.Base(res.Files[2]) != "config.yaml" {
		t.Fatalf("expected includes before main file, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "include: b.yaml\n")
	writeFile(t, b, "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestExplain_Sources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "display: \":1\"\nscreen_padding: {top: 12}\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		path     string
		want     any
		wantKind SourceKind
		wantLine int
	}{
		{"display", ":1", SourceFile, 1},
		{"screen_padding.top", 12, SourceFile, 2},
		{"inner_gap", 10, SourceDefault, 0},
		{"reconcile_interval", "10s", SourceDefault, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			val, src, err := Explain(res, tt.path)
			if err != nil {
				t.Fatalf("explain: %v", err)
			}
			if val != tt.want {
				t.Fatalf("value = %#v, want %#v", val, tt.want)
			}
			if src.Kind != tt.wantKind {
				t.Fatalf("source kind = %q, want %q", src.Kind, tt.wantKind)
			}
			if tt.wantLine > 0 && src.Line != tt.wantLine {
				t.Fatalf("source line = %d, want %d", src.Line, tt.wantLine)
			}
		})
	}

	if _, _, err := Explain(res, "layouts.grid"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestSaveTo_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Workspaces = []string{"one", "two"}
	cfg.ReconcileInterval = 30 * time.Second
	cfg.Padding.Bottom = 8

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load saved: %v", err)
	}
	if res.Config.ReconcileInterval != 30*time.Second || res.Config.Padding.Bottom != 8 {
		t.Fatalf("saved config did not round-trip: %+v", res.Config)
	}
	if strings.Join(res.Config.Workspaces, ",") != "one,two" {
		t.Fatalf("workspaces = %v", res.Config.Workspaces)
	}
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tiletree/internal/config"
	"github.com/1broseidon/tiletree/internal/ipc"
	"github.com/1broseidon/tiletree/internal/tui"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "tree":
		os.Exit(runTree(os.Args[2:]))
	case "minimize":
		os.Exit(runWindowCommand("minimize", os.Args[2:], (*ipc.Client).Minimize))
	case "restore":
		os.Exit(runWindowCommand("restore", os.Args[2:], (*ipc.Client).Restore))
	case "focus":
		os.Exit(runWindowCommand("focus", os.Args[2:], (*ipc.Client).Focus))
	case "redraw":
		os.Exit(runRedraw(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "action":
		os.Exit(runAction(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tiletree <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the tiletree daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  tree                Print the container tree")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  minimize <window>   Minimize a window")
	fmt.Fprintln(w, "  restore <window>    Restore a window to its previous mode")
	fmt.Fprintln(w, "  focus <window>      Focus a window")
	fmt.Fprintln(w, "  redraw              Recompute and apply every layout")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "  action <name>       Run a named action (minimize, restore_all, ...)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Window handles accept decimal or 0x-prefixed hex.")
	fmt.Fprintln(w, "Run 'tiletree <command> --help' for command-specific options.")
}

// InitLogger installs a console handler on stderr at level and returns it.
func InitLogger(level slog.Leveler) *slog.Logger {
	logger := slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func loadResult(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print status as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tiletree status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(status)
	}
	fmt.Printf("daemon_running:    %v\n", status.DaemonRunning)
	fmt.Printf("monitors:          %d\n", status.Monitors)
	fmt.Printf("workspaces:        %d\n", status.Workspaces)
	fmt.Printf("windows:           %d\n", status.Windows)
	fmt.Printf("minimized:         %d\n", status.Minimized)
	fmt.Printf("focused_workspace: %s\n", status.FocusedWorkspace)
	if status.FocusedWindow != 0 {
		fmt.Printf("focused_window:    0x%x\n", status.FocusedWindow)
	}
	fmt.Printf("uptime_seconds:    %d\n", status.UptimeSeconds)
	return 0
}

func runTree(args []string) int {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print the tree as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tiletree tree [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the container tree with computed rectangles.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	tree, err := ipc.NewClient().GetTree()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(tree)
	}

	tree.Walk(func(n *ipc.TreeNode, depth int) bool {
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth), formatNode(n))
		return true
	})
	return 0
}

func formatNode(n *ipc.TreeNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", n.ID, n.Kind)
	if n.Name != "" {
		fmt.Fprintf(&b, " %q", n.Name)
	}
	if n.Window != 0 {
		fmt.Fprintf(&b, " 0x%x %s", n.Window, n.Mode)
		if n.Previous != "" {
			fmt.Fprintf(&b, " (was %s)", n.Previous)
		}
	}
	if n.Orientation != "" {
		fmt.Fprintf(&b, " %s", n.Orientation)
	}
	if n.Kind != "root" {
		fmt.Fprintf(&b, " [%d,%d %dx%d]", n.Rect.X, n.Rect.Y, n.Rect.Width, n.Rect.Height)
	}
	if n.Percentage > 0 {
		fmt.Fprintf(&b, " %.1f%%", n.Percentage*100)
	}
	if n.Focused {
		b.WriteString(" *focused*")
	}
	if n.Hidden {
		b.WriteString(" hidden")
	}
	return b.String()
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// parseWindow accepts decimal or 0x-prefixed hex handles.
func parseWindow(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window handle %q", s)
	}
	if v == 0 {
		return 0, fmt.Errorf("window handle must be non-zero")
	}
	return uint32(v), nil
}

func runWindowCommand(name string, args []string, fn func(*ipc.Client, uint32) error) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tiletree %s <window>\n", name)
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	window, err := parseWindow(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := fn(ipc.NewClient(), window); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runRedraw(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: tiletree redraw")
		return 2
	}
	res, err := ipc.NewClient().Redraw()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("arranged %d containers, positioned %d windows\n", res.Arranged, res.Windows)
	return 0
}

func runReload(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: tiletree reload")
		return 2
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func runAction(args []string) int {
	if len(args) != 1 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage: tiletree action <name>")
		fmt.Fprintf(os.Stderr, "Actions: %s\n", strings.Join(config.BindableActions, ", "))
		if len(args) == 1 {
			return 0
		}
		return 2
	}
	if err := ipc.NewClient().RunAction(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  tiletree config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  tiletree config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  tiletree config explain [--path PATH] [yaml.path]")
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/tiletree/config.yaml)")

	switch args[0] {
	case "validate":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadResult(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadResult(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		res, err := loadResult(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		paths := config.Paths
		if fs.NArg() > 0 {
			paths = fs.Args()
		}
		for i, queryPath := range paths {
			value, src, err := config.Explain(res, queryPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			out, err := yaml.Marshal(value)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("path: %s\n", queryPath)
			fmt.Printf("source: %s\n", src)
			fmt.Printf("value:\n%s", string(out))
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/tiletree/config.yaml)")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: tiletree tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive viewer for the container tree and managed windows.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab, 1-3   Switch tabs")
		fmt.Fprintln(os.Stderr, "  m/r/f      Minimize, restore or focus the selected window")
		fmt.Fprintln(os.Stderr, "  R          Redraw every workspace")
		fmt.Fprintln(os.Stderr, "  ctrl+r     Refresh now")
		fmt.Fprintln(os.Stderr, "  c          Reload config from disk")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C  Quit")
		return 0
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	err := tui.Run(tui.Options{
		Client:     ipc.NewClient(),
		LoadConfig: func() (*config.LoadResult, error) { return loadResult(*path) },
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

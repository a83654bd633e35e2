package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// DefaultRefreshInterval is how often the TUI polls the daemon.
const DefaultRefreshInterval = 2 * time.Second

// Options configures Run.
type Options struct {
	Client          Client
	LoadConfig      ConfigLoader
	RefreshInterval time.Duration
}

// Run starts the TUI and blocks until the user quits.
func Run(opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if opts.Client == nil {
		return fmt.Errorf("tui: client is nil")
	}
	interval := opts.RefreshInterval
	if interval == 0 {
		interval = DefaultRefreshInterval
	}

	p := tea.NewProgram(newModel(opts.Client, opts.LoadConfig, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tiletree/internal/config"
	"github.com/1broseidon/tiletree/internal/ipc"
)

// Client is the daemon surface the TUI reads and drives. *ipc.Client
// satisfies it.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	GetTree() (*ipc.TreeNode, error)
	Minimize(window uint32) error
	Restore(window uint32) error
	Focus(window uint32) error
	Redraw() (*ipc.RedrawData, error)
}

var _ Client = (*ipc.Client)(nil)

// ConfigLoader loads the config shown on the Config tab.
type ConfigLoader func() (*config.LoadResult, error)

type globalKeyMap struct {
	Quit    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Refresh key.Binding
	Redraw  key.Binding
	Reload  key.Binding
}

var globalKeys = globalKeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift-tab", "prev tab")),
	Refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl-r", "refresh")),
	Redraw:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "redraw")),
	Reload:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "reload config")),
}

// snapshotMsg carries a fresh view of the daemon.
type snapshotMsg struct {
	status *ipc.StatusData
	tree   *ipc.TreeNode
	err    error
}

type redrawMsg struct {
	data *ipc.RedrawData
	err  error
}

type configMsg struct {
	result *config.LoadResult
	err    error
}

type tickMsg time.Time

// model is the root bubbletea model for the TUI.
type model struct {
	client     Client
	loadConfig ConfigLoader
	interval   time.Duration

	activeTab  Tab
	treeTab    TreeTab
	windowsTab WindowsTab
	configTab  ConfigTab

	status  *ipc.StatusData
	lastErr string
	notice  string

	width  int
	height int
}

func newModel(client Client, loadConfig ConfigLoader, interval time.Duration) model {
	m := model{
		client:     client,
		loadConfig: loadConfig,
		interval:   interval,
		activeTab:  TabTree,
		treeTab:    NewTreeTab(),
		windowsTab: NewWindowsTab(client),
	}
	var res *config.LoadResult
	var err error
	if loadConfig != nil {
		res, err = loadConfig()
	}
	m.configTab = NewConfigTab(res, err)
	return m
}

func (m model) fetchSnapshot() tea.Msg {
	status, err := m.client.GetStatus()
	if err != nil {
		return snapshotMsg{err: err}
	}
	tree, err := m.client.GetTree()
	return snapshotMsg{status: status, tree: tree, err: err}
}

func (m model) tick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchSnapshot, m.tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, globalKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, globalKeys.Next):
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case key.Matches(msg, globalKeys.Prev):
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case key.Matches(msg, globalKeys.Refresh):
			return m, m.fetchSnapshot
		case key.Matches(msg, globalKeys.Redraw):
			client := m.client
			return m, func() tea.Msg {
				data, err := client.Redraw()
				return redrawMsg{data: data, err: err}
			}
		case key.Matches(msg, globalKeys.Reload):
			if m.loadConfig == nil {
				return m, nil
			}
			load := m.loadConfig
			return m, func() tea.Msg {
				res, err := load()
				return configMsg{result: res, err: err}
			}
		}
		switch msg.String() {
		case "1":
			m.activeTab = TabTree
			return m, nil
		case "2":
			m.activeTab = TabWindows
			return m, nil
		case "3":
			m.activeTab = TabConfig
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
		m.treeTab, _ = m.treeTab.Update(subMsg)
		m.windowsTab, _ = m.windowsTab.Update(subMsg)
		m.configTab, _ = m.configTab.Update(subMsg)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchSnapshot, m.tick())

	case snapshotMsg:
		if msg.err != nil {
			m.status = nil
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		m.lastErr = ""
		m.treeTab.SetTree(msg.tree)
		m.windowsTab.SetTree(msg.tree)
		return m, nil

	case windowActionMsg:
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s 0x%x: %v", msg.action, msg.window, msg.err)
			return m, nil
		}
		m.notice = fmt.Sprintf("%s 0x%x", msg.action, msg.window)
		return m, m.fetchSnapshot

	case redrawMsg:
		if msg.err != nil {
			m.lastErr = "redraw: " + msg.err.Error()
			return m, nil
		}
		m.notice = fmt.Sprintf("redraw: %d containers, %d windows", msg.data.Arranged, msg.data.Windows)
		return m, m.fetchSnapshot

	case configMsg:
		m.configTab.SetResult(msg.result, msg.err)
		if msg.err == nil {
			m.notice = "config reloaded"
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabTree:
		m.treeTab, cmd = m.treeTab.Update(msg)
	case TabWindows:
		m.windowsTab, cmd = m.windowsTab.Update(msg)
	case TabConfig:
		m.configTab, cmd = m.configTab.Update(msg)
	}
	return m, cmd
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	return max(m.height-4, 1)
}

func (m model) helpText() string {
	help := "tab: switch  1-3: jump  ctrl-r: refresh  R: redraw  c: reload config  q: quit"
	if m.activeTab == TabWindows {
		help = m.windowsTab.help() + "  " + help
	}
	if m.notice != "" {
		help = m.notice + "  |  " + help
	}
	return help
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.lastErr, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.helpText(), m.width)

	var content string
	switch m.activeTab {
	case TabTree:
		content = m.treeTab.View()
	case TabWindows:
		content = m.windowsTab.View()
	case TabConfig:
		content = m.configTab.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}

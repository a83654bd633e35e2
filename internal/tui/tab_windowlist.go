package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tiletree/internal/ipc"
)

// windowItem is a list item for one managed window.
type windowItem struct {
	handle    uint32
	mode      string
	workspace string
	rect      ipc.Rect
	focused   bool
	hidden    bool
}

func (i windowItem) Title() string {
	marker := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("·")
	switch {
	case i.focused:
		marker = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	case i.mode == "minimized":
		marker = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("_")
	}
	return fmt.Sprintf("%s 0x%x", marker, i.handle)
}

func (i windowItem) Description() string {
	desc := fmt.Sprintf("%s on %s  %d,%d %dx%d", i.mode, i.workspace, i.rect.X, i.rect.Y, i.rect.Width, i.rect.Height)
	if i.hidden {
		desc += " (hidden)"
	}
	return desc
}

func (i windowItem) FilterValue() string { return fmt.Sprintf("0x%x %s", i.handle, i.workspace) }

type windowKeyMap struct {
	Minimize key.Binding
	Restore  key.Binding
	Focus    key.Binding
}

var windowKeys = windowKeyMap{
	Minimize: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "minimize")),
	Restore:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restore")),
	Focus:    key.NewBinding(key.WithKeys("enter", "f"), key.WithHelp("enter/f", "focus")),
}

// windowActionMsg reports the outcome of a window command.
type windowActionMsg struct {
	action string
	window uint32
	err    error
}

// WindowsTab lists managed windows and issues commands against them.
type WindowsTab struct {
	list   list.Model
	client Client
	width  int
	height int
}

// NewWindowsTab creates a WindowsTab that sends commands through client.
func NewWindowsTab(client Client) WindowsTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	return WindowsTab{list: l, client: client}
}

// SetTree rebuilds the window list from a tree snapshot.
func (w *WindowsTab) SetTree(tree *ipc.TreeNode) {
	w.list.SetItems(buildWindowItems(tree))
}

// Update handles messages for the windows tab.
func (w WindowsTab) Update(msg tea.Msg) (WindowsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		w.list.SetSize(msg.Width, msg.Height)
		return w, nil

	case tea.KeyMsg:
		item, ok := w.list.SelectedItem().(windowItem)
		if !ok {
			break
		}
		switch {
		case key.Matches(msg, windowKeys.Minimize):
			return w, w.run("minimize", item.handle, w.client.Minimize)
		case key.Matches(msg, windowKeys.Restore):
			return w, w.run("restore", item.handle, w.client.Restore)
		case key.Matches(msg, windowKeys.Focus):
			return w, w.run("focus", item.handle, w.client.Focus)
		}
	}

	var cmd tea.Cmd
	w.list, cmd = w.list.Update(msg)
	return w, cmd
}

func (w WindowsTab) run(action string, window uint32, fn func(uint32) error) tea.Cmd {
	if w.client == nil {
		return nil
	}
	return func() tea.Msg {
		return windowActionMsg{action: action, window: window, err: fn(window)}
	}
}

// View implements tea.Model.
func (w WindowsTab) View() string {
	if w.width == 0 || w.height == 0 {
		return ""
	}
	if len(w.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(w.width).
			Height(w.height).
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No managed windows")
	}
	return w.list.View()
}

func (w WindowsTab) help() string {
	parts := make([]string, 0, 3)
	for _, b := range []key.Binding{windowKeys.Minimize, windowKeys.Restore, windowKeys.Focus} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// buildWindowItems flattens the tree's windows in pre-order, tagging each
// with its workspace.
func buildWindowItems(tree *ipc.TreeNode) []list.Item {
	if tree == nil {
		return nil
	}
	var items []list.Item
	var workspace string
	var wsDepth int
	tree.Walk(func(n *ipc.TreeNode, depth int) bool {
		if workspace != "" && depth <= wsDepth {
			workspace = ""
		}
		switch n.Kind {
		case "workspace":
			workspace = n.Name
			wsDepth = depth
		case "window":
			items = append(items, windowItem{
				handle:    n.Window,
				mode:      n.Mode,
				workspace: workspace,
				rect:      n.Rect,
				focused:   n.Focused,
				hidden:    n.Hidden,
			})
		}
		return true
	})
	return items
}

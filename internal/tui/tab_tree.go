package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tiletree/internal/ipc"
)

var (
	kindStyles = map[string]lipgloss.Style{
		"root":      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		"monitor":   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		"workspace": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		"split":     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"window":    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	}
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// TreeTab shows the container tree in a scrollable viewport.
type TreeTab struct {
	viewport viewport.Model
	tree     *ipc.TreeNode
	ready    bool
}

// NewTreeTab creates an empty tree tab.
func NewTreeTab() TreeTab {
	return TreeTab{viewport: viewport.New(0, 0)}
}

// SetTree replaces the displayed snapshot, keeping the scroll offset.
func (t *TreeTab) SetTree(tree *ipc.TreeNode) {
	t.tree = tree
	t.viewport.SetContent(renderTree(tree))
}

// Update handles messages for the tree tab.
func (t TreeTab) Update(msg tea.Msg) (TreeTab, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		t.viewport.Width = msg.Width
		t.viewport.Height = msg.Height
		t.ready = true
		return t, nil
	}
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View implements tea.Model.
func (t TreeTab) View() string {
	if !t.ready {
		return ""
	}
	if t.tree == nil {
		return lipgloss.NewStyle().
			Width(t.viewport.Width).
			Height(t.viewport.Height).
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No tree available\nIs the daemon running?")
	}
	return t.viewport.View()
}

// renderTree draws one line per container, indented by depth.
func renderTree(tree *ipc.TreeNode) string {
	if tree == nil {
		return ""
	}
	var b strings.Builder
	tree.Walk(func(n *ipc.TreeNode, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		line := describeNode(n)
		switch {
		case n.Focused:
			line = focusedStyle.Render(line)
		case n.Hidden || n.Mode == "minimized":
			line = dimStyle.Render(line)
		default:
			if style, ok := kindStyles[n.Kind]; ok {
				line = style.Render(line)
			}
		}
		b.WriteString(line)
		b.WriteByte('\n')
		return true
	})
	return strings.TrimSuffix(b.String(), "\n")
}

func describeNode(n *ipc.TreeNode) string {
	parts := []string{n.Kind}
	switch n.Kind {
	case "window":
		parts = append(parts, fmt.Sprintf("0x%x", n.Window))
		if n.Mode != "" {
			parts = append(parts, n.Mode)
		}
	case "monitor", "workspace":
		if n.Name != "" {
			parts = append(parts, n.Name)
		}
	}
	if n.Orientation != "" {
		parts = append(parts, "("+n.Orientation+")")
	}
	if n.Kind != "root" {
		r := n.Rect
		parts = append(parts, fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height))
	}
	if n.Percentage > 0 {
		parts = append(parts, fmt.Sprintf("%.1f%%", n.Percentage*100))
	}
	if n.Hidden {
		parts = append(parts, "[hidden]")
	}
	return strings.Join(parts, " ")
}

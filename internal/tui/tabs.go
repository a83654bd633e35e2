package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tiletree/internal/ipc"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabTree Tab = iota
	TabWindows
	TabConfig
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabTree:
		return "Tree"
	case TabWindows:
		return "Windows"
	case TabConfig:
		return "Config"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")
)

// renderTabBar renders the tab bar with the given active tab and width.
func renderTabBar(active Tab, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d:%s", int(i)+1, i)
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(tabs, tabGap.Render())...)
	return tabBarStyle.Width(width).Render(row)
}

// intersperse inserts sep between each element of items.
func intersperse(items []string, sep string) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}

func renderStatusBar(status *ipc.StatusData, lastErr string, width int) string {
	var text string
	switch {
	case status != nil:
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{
			dot + " daemon connected",
			fmt.Sprintf("monitors:%d", status.Monitors),
			fmt.Sprintf("workspaces:%d", status.Workspaces),
			fmt.Sprintf("windows:%d", status.Windows),
			fmt.Sprintf("minimized:%d", status.Minimized),
		}
		if status.FocusedWorkspace != "" {
			parts = append(parts, "focused:"+status.FocusedWorkspace)
		}
		text = strings.Join(parts, "  ")
	default:
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		text = dot + " daemon not running"
	}
	if lastErr != "" {
		text += "  " + errorStyle.Render(lastErr)
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(text)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(help string, width int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

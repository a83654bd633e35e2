package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tiletree/internal/config"
)

var (
	configKeyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	configSourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// ConfigTab shows every effective config value next to where it came from.
type ConfigTab struct {
	viewport viewport.Model
	result   *config.LoadResult
	loadErr  error
	ready    bool
}

// NewConfigTab creates a config tab for res. A non-nil err is shown in
// place of the values.
func NewConfigTab(res *config.LoadResult, err error) ConfigTab {
	c := ConfigTab{viewport: viewport.New(0, 0)}
	c.SetResult(res, err)
	return c
}

// SetResult replaces the displayed config.
func (c *ConfigTab) SetResult(res *config.LoadResult, err error) {
	c.result = res
	c.loadErr = err
	if err != nil {
		c.viewport.SetContent(errorStyle.Render(err.Error()))
		return
	}
	c.viewport.SetContent(renderConfig(res))
}

// Update handles messages for the config tab.
func (c ConfigTab) Update(msg tea.Msg) (ConfigTab, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		c.viewport.Width = msg.Width
		c.viewport.Height = msg.Height
		c.ready = true
		return c, nil
	}
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return c, cmd
}

// View implements tea.Model.
func (c ConfigTab) View() string {
	if !c.ready {
		return ""
	}
	return c.viewport.View()
}

func renderConfig(res *config.LoadResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	if len(res.Files) > 0 {
		b.WriteString(configSourceStyle.Render("files: "+strings.Join(res.Files, ", ")) + "\n\n")
	}
	for _, path := range config.Paths {
		value, src, err := config.Explain(res, path)
		if err != nil {
			fmt.Fprintf(&b, "%s %s\n", configKeyStyle.Render(path+":"), errorStyle.Render(err.Error()))
			continue
		}
		fmt.Fprintf(&b, "%s %s  %s\n", configKeyStyle.Render(path+":"), formatValue(value), configSourceStyle.Render("# "+src.String()))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// formatValue renders value as single-line flow YAML.
func formatValue(value any) string {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Sprint(value)
	}
	setFlowStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Sprint(value)
	}
	return strings.TrimSpace(string(out))
}

func setFlowStyle(n *yaml.Node) {
	if n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode {
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		setFlowStyle(c)
	}
}

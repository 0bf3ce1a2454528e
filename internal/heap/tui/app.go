// Package tui is an interactive browser over cluster analysis results.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xcc/jvm-tools/internal/heap/cluster"
	"github.com/0xcc/jvm-tools/utils"
)

type view int

const (
	listView view = iota
	detailView
)

type Model struct {
	clusters []*cluster.Cluster
	shared   *cluster.Histogram
	margin   int64

	current view
	cursor  int
	width   int
	height  int

	keys KeyMap
	help help.Model
}

// New builds the browser model from a finished analysis run.
func New(a *cluster.Analyzer) *Model {
	return &Model{
		clusters: a.Clusters(),
		shared:   a.SharedSummary(),
		margin:   a.SharedErrorMargin(),
		keys:     DefaultKeyMap(),
		help:     help.New(),
	}
}

// Run starts the interactive browser and blocks until it exits.
func Run(a *cluster.Analyzer) error {
	p := tea.NewProgram(New(a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.current == listView && m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Down):
			if m.current == listView && m.cursor < len(m.clusters)-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.Enter):
			if m.current == listView && len(m.clusters) > 0 {
				m.current = detailView
			}

		case key.Matches(msg, m.keys.Escape):
			m.current = listView
		}
	}

	return m, nil
}

func (m *Model) View() string {
	var sb strings.Builder
	switch m.current {
	case detailView:
		sb.WriteString(m.viewDetail())
	default:
		sb.WriteString(m.viewList())
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m *Model) viewList() string {
	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render("Heap clusters"))
	sb.WriteString("\n\n")

	if len(m.clusters) == 0 {
		sb.WriteString(utils.MutedStyle.Render("no clusters matched the configured root types"))
		sb.WriteString("\n")
		return sb.String()
	}

	header := fmt.Sprintf("  %-4s %-42s %12s %10s %10s", "#", "ROOT", "ID", "OBJECTS", "SIZE")
	sb.WriteString(utils.HeaderStyle.Render(header))
	sb.WriteString("\n")
	for n, c := range m.clusters {
		row := fmt.Sprintf("  %-4d %-42s %12d %10d %10s",
			n+1, shortLabel(c.Root.Class.Name, 42), c.Root.ID, c.Count(), utils.MemorySize(c.Size()))
		if n == m.cursor {
			row = utils.SelectedStyle.Render(row)
		}
		sb.WriteString(row)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if m.shared.TotalCount() > 0 {
		sb.WriteString(utils.WarningStyle.Render(fmt.Sprintf("shared: %d objects, %s",
			m.shared.TotalCount(), utils.MemorySize(m.shared.TotalSize()))))
		sb.WriteString("  ")
	}
	sb.WriteString(utils.MutedStyle.Render(fmt.Sprintf("error margin: %s", utils.MemorySize(m.margin))))
	sb.WriteString("\n")
	return sb.String()
}

func (m *Model) viewDetail() string {
	c := m.clusters[m.cursor]
	width := m.width
	if width == 0 {
		width = 80
	}
	rows := m.height - 8
	if rows < 5 {
		rows = 5
	}

	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render(fmt.Sprintf("Cluster #%d  %s @%d", m.cursor+1, c.Root.Class.Name, c.Root.ID)))
	sb.WriteString("\n")
	sb.WriteString(utils.TextStyle.Render(fmt.Sprintf("%d objects retained, %s", c.Count(), utils.MemorySize(c.Size()))))
	sb.WriteString("\n\n")
	sb.WriteString(RenderBars(c.Summary, rows, width))

	if c.SharedSummary != nil && c.SharedSummary.TotalCount() > 0 {
		sb.WriteString("\n")
		sb.WriteString(utils.WarningStyle.Render(fmt.Sprintf("shared subset: %d objects, %s",
			c.SharedSummary.TotalCount(), utils.MemorySize(c.SharedSummary.TotalSize()))))
		sb.WriteString("\n")
	}
	return sb.String()
}

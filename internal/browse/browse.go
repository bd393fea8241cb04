// internal/browse/browse.go
//
// Interactive viewer for the records a start-of-unit pass treated. It uses
// bubbletea's Model/Update/View loop with a bubbles table:
//
//	keys 1-4 toggle the default/explicit/reapplied/redundant filters
//	0 clears the filters, i hides inactive records, q quits

package browse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/carryover/internal/report"
	"github.com/kingrea/carryover/internal/tag"
)

var filterKeys = map[string]tag.Status{
	"1": tag.StatusDefault,
	"2": tag.StatusExplicit,
	"3": tag.StatusReapplied,
	"4": tag.StatusRedundant,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Model is the browser state.
type Model struct {
	unit    string
	build   tag.Build
	rows    []report.Row
	logPath string
	logTail []string

	filter       map[tag.Status]bool
	hideInactive bool
	visible      []report.Row
	table        table.Model

	width  int
	height int
}

// New creates a browser over rows. logTail holds the most recent lines of the
// log file at logPath and may be empty.
func New(unit string, build tag.Build, rows []report.Row, logPath string, logTail []string) *Model {
	cols := columns(rows)
	width := 0
	for _, col := range cols {
		width += col.Width + 2
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(12),
		table.WithWidth(width),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#5B8DEF"))
	t.SetStyles(styles)
	m := &Model{
		unit:    unit,
		build:   build,
		rows:    rows,
		logPath: logPath,
		logTail: logTail,
		filter:  map[tag.Status]bool{},
		table:   t,
	}
	m.refresh()
	return m
}

func columns(rows []report.Row) []table.Column {
	widths := [4]int{len("context"), len("at"), len("status"), len("indicator")}
	for _, row := range rows {
		widths[0] = max(widths[0], len(row.Context))
		widths[1] = max(widths[1], len(row.Position))
		widths[2] = max(widths[2], len(row.Status))
		widths[3] = max(widths[3], len(row.Indicator))
	}
	return []table.Column{
		{Title: "context", Width: widths[0]},
		{Title: "at", Width: widths[1]},
		{Title: "status", Width: widths[2]},
		{Title: "indicator", Width: min(widths[3], 48)},
	}
}

// Visible returns the rows passing the current filters.
func (m *Model) Visible() []report.Row {
	return append([]report.Row{}, m.visible...)
}

// Selected returns the row under the cursor.
func (m *Model) Selected() (report.Row, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return report.Row{}, false
	}
	return m.visible[i], true
}

func (m *Model) refresh() {
	m.visible = m.visible[:0]
	var rows []table.Row
	for _, row := range m.rows {
		if len(m.filter) > 0 && !m.filter[row.Status] {
			continue
		}
		if m.hideInactive && !row.Active {
			continue
		}
		m.visible = append(m.visible, row)
		rows = append(rows, table.Row{row.Context, row.Position, string(row.Status), row.Indicator})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(5, msg.Height-14))
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "0":
			m.filter = map[tag.Status]bool{}
			m.refresh()
			return m, nil
		case "i":
			m.hideInactive = !m.hideInactive
			m.refresh()
			return m, nil
		}
		if status, ok := filterKeys[key]; ok {
			if m.filter[status] {
				delete(m.filter, status)
			} else {
				m.filter[status] = true
			}
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	header := headerStyle.Render(fmt.Sprintf("unit %s · %s build", m.unit, m.build))
	parts := []string{header, panelStyle.Render(m.table.View()), m.renderDetail()}
	if log := m.renderLogPanel(); log != "" {
		parts = append(parts, log)
	}
	parts = append(parts, helpStyle.Render(m.renderHelp()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderDetail() string {
	row, ok := m.Selected()
	if !ok {
		return helpStyle.Render("No records match the current filters.")
	}
	tags := make([]string, len(row.Tags))
	for i, id := range row.Tags {
		tags[i] = string(id)
	}
	state := "active"
	if !row.Active {
		state = "inactive"
	}
	return fmt.Sprintf("%s · %s · tags %s", row.Indicator, state, strings.Join(tags, ","))
}

func (m *Model) renderLogPanel() string {
	if len(m.logTail) == 0 {
		return ""
	}
	name := filepath.Base(m.logPath)
	if name == "." || name == "" {
		name = "log"
	}
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Render("LOG · " + name)
	body := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render(strings.Join(m.logTail, "\n"))
	return panelStyle.Render(head + "\n" + body)
}

func (m *Model) renderHelp() string {
	var active []string
	for _, key := range []string{"1", "2", "3", "4"} {
		if m.filter[filterKeys[key]] {
			active = append(active, string(filterKeys[key]))
		}
	}
	filter := "all"
	if len(active) > 0 {
		filter = strings.Join(active, "+")
	}
	if m.hideInactive {
		filter += ", active only"
	}
	return fmt.Sprintf("showing %d of %d (%s) · 1-4 filter · 0 clear · i inactive · q quit", len(m.visible), len(m.rows), filter)
}

// Run blocks until the user quits.
func Run(m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

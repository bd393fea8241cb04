// Package report renders a terminal summary of the records a start-of-unit
// pass treated, colored the way proofing output colors them.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/memento"
	"github.com/kingrea/carryover/internal/score"
	"github.com/kingrea/carryover/internal/tag"
)

// Terminal approximations of the proofing colors.
var statusColors = map[tag.Status]lipgloss.Color{
	tag.StatusDefault:   lipgloss.Color("#9400D3"),
	tag.StatusExplicit:  lipgloss.Color("#5B8DEF"),
	tag.StatusReapplied: lipgloss.Color("#00A000"),
	tag.StatusRedundant: lipgloss.Color("#FF1493"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Row is one treated record.
type Row struct {
	Context   string
	Position  string
	Status    tag.Status
	Indicator string
	Tags      []tag.ID
	Active    bool
}

// Rows collects every record that carries a status, ordered by context name
// then position.
func Rows(unit *score.Unit) []Row {
	var records []*score.Attachment
	unit.Walk(func(record *score.Attachment) {
		if record.Status != tag.StatusNone {
			records = append(records, record)
		}
	})
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Governor.Name != b.Governor.Name {
			return a.Governor.Name < b.Governor.Name
		}
		if cmp := a.Position().Cmp(b.Position()); cmp != 0 {
			return cmp < 0
		}
		return a.ID < b.ID
	})
	rows := make([]Row, len(records))
	for i, record := range records {
		rows[i] = Row{
			Context:   record.Governor.Name,
			Position:  record.Position().String(),
			Status:    record.Status,
			Indicator: indicator.Describe(record.Indicator),
			Tags:      append([]tag.ID{}, record.Tags...),
			Active:    !record.Deactivated,
		}
	}
	return rows
}

// Counts tallies rows per status.
func Counts(rows []Row) map[tag.Status]int {
	counts := map[tag.Status]int{}
	for _, row := range rows {
		counts[row.Status]++
	}
	return counts
}

// Render draws the status table for a unit.
func Render(unit *score.Unit, build tag.Build) string {
	rows := Rows(unit)
	title := titleStyle.Render(fmt.Sprintf("unit %s (%s build)", unit.Name, build))
	if len(rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No persistent indicators."))
	}
	widths := [4]int{len("context"), len("at"), len("status"), len("indicator")}
	for _, row := range rows {
		widths[0] = max(widths[0], len(row.Context))
		widths[1] = max(widths[1], len(row.Position))
		widths[2] = max(widths[2], len(row.Status))
		widths[3] = max(widths[3], len(row.Indicator))
	}
	cell := func(width int, text string) string {
		return lipgloss.NewStyle().Width(width + 2).Render(text)
	}
	lines := []string{headStyle.Render(cell(widths[0], "context") + cell(widths[1], "at") + cell(widths[2], "status") + cell(widths[3], "indicator") + "tags")}
	for _, row := range rows {
		status := lipgloss.NewStyle().Foreground(statusColors[row.Status]).Width(widths[2] + 2).Render(string(row.Status))
		tags := make([]string, len(row.Tags))
		for i, id := range row.Tags {
			tags[i] = string(id)
		}
		line := cell(widths[0], row.Context) + cell(widths[1], row.Position) + status + cell(widths[3], row.Indicator) + strings.Join(tags, ",")
		if !row.Active {
			line = dimStyle.Render(line)
		}
		lines = append(lines, line)
	}
	counts := Counts(rows)
	var summary []string
	for _, status := range []tag.Status{tag.StatusDefault, tag.StatusExplicit, tag.StatusReapplied, tag.StatusRedundant} {
		summary = append(summary, lipgloss.NewStyle().Foreground(statusColors[status]).Render(fmt.Sprintf("%s %d", status, counts[status])))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		boxStyle.Render(strings.Join(lines, "\n")),
		strings.Join(summary, dimStyle.Render(" · ")),
	)
}

// RenderState draws a persisted state map, one context per block.
func RenderState(unit string, state memento.PersistedState) string {
	title := titleStyle.Render(fmt.Sprintf("persisted state of unit %s", unit))
	if len(state) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No mementos."))
	}
	var blocks []string
	for _, name := range state.Names() {
		lines := []string{headStyle.Render(name)}
		for _, m := range state[name] {
			lines = append(lines, "  "+m.String())
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(strings.Join(blocks, "\n")))
}

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"guardrail/internal/data/history"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type panelMode int

const (
	panelViolations panelMode = iota
	panelUnits
)

type model struct {
	violationList list.Model
	unitList      list.Model
	mode          panelMode
	trendReport   *history.TrendReport
	showTrend     bool

	report     *report.Report
	graph      *graph.Graph
	violations []rules.Violation
	units      []graph.UnitMetrics
	lastUpdate time.Time
	lastErr    string

	unitDetails      unitDetails
	hasUnitDetails   bool
	unitDetailsErr   string
	selectedDepIndex int
	sourceJumpStatus string
}

// unitDetails is the drill-down view of one unit.
type unitDetails struct {
	Name         string
	Location     graph.Location
	Dependencies []graph.Edge
	Dependents   []string
}

type updateMsg struct {
	report *report.Report
	graph  *graph.Graph
	err    error
}

type sourceJumpResultMsg struct {
	target string
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.violationList.SetSize(width, height)
		m.unitList.SetSize(width, height)
	case updateMsg:
		m.lastUpdate = time.Now()
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			break
		}
		m.lastErr = ""
		m.unitDetailsErr = ""
		if msg.report != nil {
			m.report = msg.report
			m.violations = msg.report.Violations()
		}
		if msg.graph != nil {
			m.graph = msg.graph
			m.units = graph.TopFanIn(msg.graph.ComputeMetrics(), -1)
		}
		m.violationList.SetItems(violationItems(m.violations))
		m.unitList.SetItems(unitItems(m.units))
		if m.hasUnitDetails {
			m = refreshUnitDetails(m, m.unitDetails.Name)
		}
	case sourceJumpResultMsg:
		if msg.err != nil {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Source jump failed: %v", msg.err))
		} else {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Opened source: %s", msg.target))
		}
	}

	var cmd tea.Cmd
	if m.mode == panelViolations {
		m.violationList, cmd = m.violationList.Update(msg)
	} else {
		m.unitList, cmd = m.unitList.Update(msg)
	}
	return m, cmd
}

func violationItems(vs []rules.Violation) []list.Item {
	items := make([]list.Item, 0, len(vs))
	for _, v := range vs {
		title := fmt.Sprintf("[%s] %s", v.Rule, v.Subject)
		if v.Target != "" {
			title += " -> " + v.Target
		}
		desc := v.Reason
		if v.Location.File != "" {
			desc = fmt.Sprintf("%s (%s:%d)", v.Reason, v.Location.File, v.Location.Line)
		}
		items = append(items, item{title: title, desc: desc})
	}
	return items
}

func unitItems(units []graph.UnitMetrics) []list.Item {
	items := make([]list.Item, 0, len(units))
	for _, u := range units {
		items = append(items, item{
			title: u.Name,
			desc:  fmt.Sprintf("fan_in=%d fan_out=%d depth=%d", u.FanIn, u.FanOut, u.Depth),
		})
	}
	return items
}

func (m model) View() string {
	units, edges := 0, 0
	if m.graph != nil {
		units, edges = m.graph.UnitCount(), m.graph.EdgeCount()
	}
	status := statusStyle.Render(fmt.Sprintf("Last check: %v | %d units | %d dependencies",
		m.lastUpdate.Format("15:04:05"), units, edges))

	var summary string
	switch {
	case m.lastErr != "":
		summary = failStyle.Render("Check failed: " + m.lastErr)
	case m.report == nil:
		summary = statusStyle.Render("Waiting for first check")
	case m.report.Passed && m.report.Summary.Warnings == 0:
		summary = successStyle.Render("All rules pass")
	default:
		summary = fmt.Sprintf("%s | %s",
			failStyle.Render(fmt.Sprintf("%d failed", m.report.Summary.Failed+m.report.Summary.ConfigErrors+m.report.Summary.Timeouts)),
			warnStyle.Render(fmt.Sprintf("%d warnings", m.report.Summary.Warnings)))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Architecture Guardrail"), status, summary)
	help := renderHelp(m)

	body := m.violationList.View()
	if m.mode == panelUnits {
		body = renderUnitPanel(m)
	}
	if m.showTrend {
		body += "\n\n" + renderTrendOverlay(m.trendReport)
	}
	if m.sourceJumpStatus != "" {
		body += "\n\n" + m.sourceJumpStatus
	}

	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

func renderHelp(m model) string {
	if m.mode == panelUnits && m.hasUnitDetails {
		return statusStyle.Render("tab: violations | j/k: select dependency | o: open source | esc: back | t: trend | q: quit")
	}
	if m.mode == panelUnits {
		return statusStyle.Render("tab: violations | enter: unit details | /: filter | t: trend | q: quit")
	}
	return statusStyle.Render("tab: units | /: filter | t: trend | q: quit")
}

func renderUnitPanel(m model) string {
	if !m.hasUnitDetails {
		if m.unitDetailsErr != "" {
			return m.unitList.View() + "\n\n" + failStyle.Render(m.unitDetailsErr)
		}
		return m.unitList.View()
	}

	d := m.unitDetails
	var b strings.Builder
	b.WriteString(titleStyle(d.Name) + "\n")
	if d.Location.File != "" {
		b.WriteString(statusStyle.Render(fmt.Sprintf("defined in %s:%d", d.Location.File, d.Location.Line)) + "\n")
	}
	b.WriteString(fmt.Sprintf("\nDepends on (%d):\n", len(d.Dependencies)))
	for i, e := range d.Dependencies {
		cursor := "  "
		if i == m.selectedDepIndex {
			cursor = "> "
		}
		line := cursor + e.To
		if e.Location.File != "" {
			line += statusStyle.Render(fmt.Sprintf("  %s:%d", e.Location.File, e.Location.Line))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(fmt.Sprintf("\nUsed by (%d):\n", len(d.Dependents)))
	for _, name := range d.Dependents {
		b.WriteString("  " + name + "\n")
	}
	return b.String()
}

func renderTrendOverlay(trend *history.TrendReport) string {
	if trend == nil || len(trend.Points) == 0 {
		return statusStyle.Render("No run history recorded (enable [db] and run with --history).")
	}
	var b strings.Builder
	b.WriteString(titleStyle("Violation trend") + "\n")
	start := 0
	if len(trend.Points) > 10 {
		start = len(trend.Points) - 10
	}
	for _, p := range trend.Points[start:] {
		mark := successStyle.Render("pass")
		if !p.Passed {
			mark = failStyle.Render("fail")
		}
		b.WriteString(fmt.Sprintf("  %s  %s  violations=%d (%+d)\n",
			p.Timestamp.Local().Format("2006-01-02 15:04"), mark, p.Violations, p.DeltaViolations))
	}
	return b.String()
}

func initialModel(trendReport *history.TrendReport) model {
	violationList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	violationList.Title = "Violations"
	violationList.SetShowStatusBar(false)
	violationList.SetFilteringEnabled(true)

	unitList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	unitList.Title = "Units by fan-in"
	unitList.SetShowStatusBar(false)
	unitList.SetFilteringEnabled(true)

	return model{
		violationList: violationList,
		unitList:      unitList,
		mode:          panelViolations,
		trendReport:   trendReport,
		lastUpdate:    time.Now(),
	}
}

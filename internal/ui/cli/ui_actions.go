package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelViolations {
			m.mode = panelUnits
		} else {
			m.mode = panelViolations
		}
		return m, nil
	case "t":
		m.showTrend = !m.showTrend
		return m, nil
	}

	if m.mode != panelUnits {
		var cmd tea.Cmd
		m.violationList, cmd = m.violationList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		idx := m.unitList.Index()
		if idx < 0 || idx >= len(m.units) {
			return m, nil
		}
		return refreshUnitDetails(m, m.units[idx].Name), nil
	case "esc", "backspace":
		m.hasUnitDetails = false
		m.unitDetailsErr = ""
		m.selectedDepIndex = 0
		return m, nil
	case "j":
		if m.hasUnitDetails && len(m.unitDetails.Dependencies) > 0 {
			if m.selectedDepIndex < len(m.unitDetails.Dependencies)-1 {
				m.selectedDepIndex++
			}
			return m, nil
		}
	case "k":
		if m.hasUnitDetails && len(m.unitDetails.Dependencies) > 0 {
			if m.selectedDepIndex > 0 {
				m.selectedDepIndex--
			}
			return m, nil
		}
	case "o":
		if !m.hasUnitDetails {
			return m, nil
		}
		target, ok := selectedSourceTarget(m)
		if !ok {
			m.sourceJumpStatus = statusStyle.Render("No source location recorded.")
			return m, nil
		}
		return m, jumpToSourceCmd(target)
	}

	var cmd tea.Cmd
	m.unitList, cmd = m.unitList.Update(msg)
	return m, cmd
}

func refreshUnitDetails(m model, name string) model {
	if m.graph == nil {
		return m
	}
	u, ok := m.graph.Unit(name)
	if !ok {
		m.unitDetailsErr = fmt.Sprintf("unit %s is no longer in the graph", name)
		m.hasUnitDetails = false
		return m
	}
	details := unitDetails{
		Name:         u.Name,
		Location:     u.Location,
		Dependencies: m.graph.EdgesFrom(name),
	}
	for _, e := range m.graph.EdgesTo(name) {
		details.Dependents = append(details.Dependents, e.From)
	}
	if m.selectedDepIndex >= len(details.Dependencies) {
		m.selectedDepIndex = 0
	}
	m.unitDetails = details
	m.unitDetailsErr = ""
	m.hasUnitDetails = true
	return m
}

type sourceTarget struct {
	file string
	line int
}

func selectedSourceTarget(m model) (sourceTarget, bool) {
	if len(m.unitDetails.Dependencies) > 0 {
		idx := m.selectedDepIndex
		if idx < 0 {
			idx = 0
		}
		if idx >= len(m.unitDetails.Dependencies) {
			idx = len(m.unitDetails.Dependencies) - 1
		}
		dep := m.unitDetails.Dependencies[idx]
		if dep.Location.File != "" {
			return sourceTarget{file: dep.Location.File, line: max(dep.Location.Line, 1)}, true
		}
	}
	if m.unitDetails.Location.File != "" {
		return sourceTarget{file: m.unitDetails.Location.File, line: max(m.unitDetails.Location.Line, 1)}, true
	}
	return sourceTarget{}, false
}

func jumpToSourceCmd(target sourceTarget) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{target.file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", target.line), target.file}
	}
	cmd := exec.Command(editor, args...)
	label := fmt.Sprintf("%s:%d", target.file, target.line)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return sourceJumpResultMsg{target: label, err: err}
	})
}

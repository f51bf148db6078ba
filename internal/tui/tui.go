package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/tfx/model"
	"github.com/sokinpui/tfx/tfx"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))            // Blue
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// ErrInterrupted is returned by Run when the user quits before the run
// finished. Steps already applied stay applied.
var ErrInterrupted = errors.New("interrupted before the run finished")

// --- Messages ---
type stepMsg struct {
	model.StepResult
}

type summaryMsg struct {
	model.Summary
}

type errorMsg struct {
	err     error
	summary model.Summary
}

func (e errorMsg) Error() string { return e.err.Error() }

// --- Model ---
type Model struct {
	app     *tfx.App
	spinner spinner.Model
	state   state
	steps   []model.StepResult
	summary summaryMsg
	err     error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(app *tfx.App) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		app:     app,
		spinner: s,
		state:   stateProcessing,
	}
}

// Run executes app inside a bubbletea program, streaming step results as
// they finish, and returns the summary once the program exits.
func Run(app *tfx.App) (model.Summary, error) {
	p := tea.NewProgram(New(app))
	app.SetProgressCallback(func(r model.StepResult) {
		p.Send(stepMsg{r})
	})

	final, err := p.Run()
	if err != nil {
		return model.Summary{}, fmt.Errorf("error running program: %w", err)
	}
	m := final.(Model)
	if m.state == stateError {
		return m.summary.Summary, m.err
	}
	return m.summary.Summary, nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.state == stateProcessing {
				m.state = stateError
				m.err = ErrInterrupted
			}
			return m, tea.Quit
		}

	case stepMsg:
		m.steps = append(m.steps, msg.StepResult)
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		m.summary = summaryMsg{msg.summary}
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	for _, r := range m.steps {
		b.WriteString(renderStep(r))
		b.WriteString("\n")
	}

	switch m.state {
	case stateProcessing:
		b.WriteString(fmt.Sprintf("%s Processing...", m.spinner.View()))
	case stateError:
		b.WriteString(errorStyle.Render("Error: ", m.err.Error()))
		b.WriteString("\n")
	case stateSummary:
		b.WriteString(m.renderSummary())
	}
	return b.String()
}

func renderStep(r model.StepResult) string {
	var b strings.Builder
	label := faintStyle.Render(fmt.Sprintf("[%s]", r.StepID))
	switch r.Status {
	case model.StatusApplied:
		b.WriteString(fmt.Sprintf("%s %s", label, successStyle.Render(r.Message)))
	case model.StatusFailed:
		b.WriteString(fmt.Sprintf("%s %s", label, errorStyle.Render(r.Message)))
	default:
		b.WriteString(fmt.Sprintf("%s %s", label, infoStyle.Render(r.Message)))
	}

	if r.Diff != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(r.Diff, "\n"))
	}
	if len(r.Preview) > 0 {
		b.WriteString(fmt.Sprintf("\n\nFirst %d lines:", len(r.Preview)))
		for i, line := range r.Preview {
			b.WriteString(fmt.Sprintf("\n%s %s", faintStyle.Render(fmt.Sprintf("%d:", i+1)), line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if len(m.steps) > 0 {
		b.WriteString("\n")
	}
	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	if len(m.summary.Modified) > 0 {
		hasContent = true
		b.WriteString(successStyle.Render("Modified:"))
		b.WriteString("\n")
		for _, f := range m.summary.Modified {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(m.summary.Failed) > 0 {
		hasContent = true
		b.WriteString(errorStyle.Render("Failed:"))
		b.WriteString("\n")
		for _, f := range m.summary.Failed {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}

	if !hasContent && len(m.steps) == 0 && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) runApp() tea.Msg {
	summary, err := m.app.Execute()
	if err != nil {
		if e, ok := err.(*tfx.DetailedError); ok {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
		}
		return errorMsg{err: err, summary: summary}
	}
	return summaryMsg{
		Summary: summary,
	}
}

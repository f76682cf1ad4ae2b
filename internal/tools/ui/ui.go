package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg struct{}

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(90*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = fmt.Errorf("interrupted")
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	if m.done {
		if m.err == nil {
			b.WriteString(okStyle.Render("✓ " + m.title))
		} else {
			b.WriteString(failStyle.Render("✗ " + m.title + ": " + m.err.Error()))
		}
	} else {
		b.WriteString(spinnerStyle.Render(spinnerFrames[m.frame]) + " " + titleStyle.Render(m.title))
	}
	b.WriteString("\n")
	for _, d := range m.details {
		b.WriteString(detailStyle.Render("  • "+d) + "\n")
	}
	return b.String()
}

// Run executes fn while rendering a spinner, then prints the step details.
// It returns whatever fn returned.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	p := tea.NewProgram(model{title: title})
	go func() {
		details, err := fn(ctx)
		p.Send(doneMsg{details: details, err: err})
	}()
	final, runErr := p.Run()
	if runErr != nil {
		return nil, runErr
	}
	m, ok := final.(model)
	if !ok {
		return nil, fmt.Errorf("unexpected final model")
	}
	return m.details, m.err
}

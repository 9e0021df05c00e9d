package ui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	yesStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	noStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1)
)

// ConfirmModel is a single y/N question. Anything but an explicit yes is a no.
type ConfirmModel struct {
	Question string
	Answer   bool
	Done     bool
}

func (m *ConfirmModel) Init() tea.Cmd { return nil }

func (m *ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.Answer = true
	case "n", "q", "esc", "ctrl+c", "enter":
		m.Answer = false
	default:
		return m, nil
	}
	m.Done = true
	return m, tea.Quit
}

func (m *ConfirmModel) View() string {
	q := titleStyle.Render(m.Question)
	if !m.Done {
		return q + " " + subtleStyle.Render("[y/N]") + " "
	}
	answer := noStyle.Render("no")
	if m.Answer {
		answer = yesStyle.Render("yes")
	}
	return q + " " + answer + "\n"
}

// Confirm asks question on out and reads the answer from in.
func Confirm(question string, in io.Reader, out io.Writer) (bool, error) {
	m := &ConfirmModel{Question: question}
	prog := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out))
	final, err := prog.Run()
	if err != nil {
		return false, fmt.Errorf("running prompt: %w", err)
	}
	return final.(*ConfirmModel).Answer, nil
}

// Row is one label/value line of a Card.
type Row struct {
	Label string
	Value string
}

// Card renders a bordered block with a title and aligned rows.
func Card(title string, rows ...Row) string {
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(subtleStyle.Render(fmt.Sprintf("%-*s", width, r.Label)))
		b.WriteString("  ")
		b.WriteString(truncate(r.Value, 96))
	}
	return cardStyle.Render(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConfirmAnswers(t *testing.T) {
	cases := map[string]bool{
		"y":     true,
		"Y":     true,
		"n":     false,
		"N":     false,
		"enter": false,
		"esc":   false,
	}
	for k, want := range cases {
		t.Run(k, func(t *testing.T) {
			m := &ConfirmModel{Question: "Install them now?"}
			_, cmd := m.Update(key(k))

			assert.True(t, m.Done)
			assert.Equal(t, want, m.Answer)
			assert.NotNil(t, cmd)
		})
	}
}

func TestConfirmIgnoresOtherKeys(t *testing.T) {
	m := &ConfirmModel{Question: "Install them now?"}
	_, cmd := m.Update(key("x"))
	assert.False(t, m.Done)
	assert.Nil(t, cmd)

	_, cmd = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.False(t, m.Done)
	assert.Nil(t, cmd)
}

func TestConfirmView(t *testing.T) {
	m := &ConfirmModel{Question: "Install them now?"}
	assert.Contains(t, m.View(), "Install them now?")
	assert.Contains(t, m.View(), "[y/N]")

	m.Update(key("y"))
	assert.Contains(t, m.View(), "yes")
	assert.NotContains(t, m.View(), "[y/N]")
}

func TestConfirmProgram(t *testing.T) {
	var out strings.Builder
	ok, err := Confirm("Install them now?", strings.NewReader("y"), &out)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestCard(t *testing.T) {
	c := Card("Service installed",
		Row{Label: "unit", Value: "/etc/systemd/system/agent_monitor.service"},
		Row{Label: "log file", Value: "/var/log/agent_monitor.log"},
	)
	assert.Contains(t, c, "Service installed")
	assert.Contains(t, c, "/etc/systemd/system/agent_monitor.service")
	assert.Contains(t, c, "log file")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdefgh", 4))
}

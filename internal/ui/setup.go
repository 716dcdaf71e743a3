// internal/ui/setup.go
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agora/internal/config"
)

// setupForm collects per-provider credentials and the deliberation depth
// before a session begins. Keys are optional; the backend decides which
// providers it can run with.
type setupForm struct {
	keys   []textinput.Model
	labels []string
	focus  int // 0..len(keys)-1 are key fields, len(keys) is the rounds row
	rounds int
}

func newSetupForm(cfg *config.Config) setupForm {
	labels := []string{"OpenAI key", "Gemini key", "DeepSeek key"}
	defaults := []string{cfg.Keys.OpenAI, cfg.Keys.Gemini, cfg.Keys.DeepSeek}

	keys := make([]textinput.Model, len(labels))
	for i := range keys {
		in := textinput.New()
		in.Placeholder = "optional"
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
		in.CharLimit = 200
		in.Prompt = "  "
		in.SetValue(defaults[i])
		keys[i] = in
	}
	keys[0].Focus()

	return setupForm{
		keys:   keys,
		labels: labels,
		rounds: config.ClampRounds(cfg.Defaults.MaxRounds),
	}
}

func (f setupForm) keyValue(i int) string {
	return strings.TrimSpace(f.keys[i].Value())
}

func (m Model) updateSetup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "tab", "down":
		m.setup.setFocus((m.setup.focus + 1) % (len(m.setup.keys) + 1))
		return m, textinput.Blink

	case "shift+tab", "up":
		m.setup.setFocus((m.setup.focus + len(m.setup.keys)) % (len(m.setup.keys) + 1))
		return m, textinput.Blink

	case "left":
		if m.setup.onRounds() {
			m.setup.rounds = config.ClampRounds(m.setup.rounds - 1)
			return m, nil
		}

	case "right":
		if m.setup.onRounds() {
			m.setup.rounds = config.ClampRounds(m.setup.rounds + 1)
			return m, nil
		}

	case "enter":
		m.startSession()
		return m, textinput.Blink
	}

	if !m.setup.onRounds() {
		var cmd tea.Cmd
		m.setup.keys[m.setup.focus], cmd = m.setup.keys[m.setup.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (f *setupForm) onRounds() bool {
	return f.focus == len(f.keys)
}

func (f *setupForm) setFocus(focus int) {
	f.focus = focus
	for i := range f.keys {
		if i == focus {
			f.keys[i].Focus()
		} else {
			f.keys[i].Blur()
		}
	}
}

func (f setupForm) view(width, height int) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("AGORA SETUP"))
	content.WriteString("\n")
	content.WriteString(DimStyle.Render("Provider keys are sent to the backend per conversation, never stored."))
	content.WriteString("\n\n")

	for i, in := range f.keys {
		label := f.labels[i]
		if i == f.focus {
			content.WriteString(StatusWarn.Render("> " + label))
		} else {
			content.WriteString(DimStyle.Render("  " + label))
		}
		content.WriteString("\n")
		content.WriteString(in.View())
		content.WriteString("\n\n")
	}

	roundsLabel := fmt.Sprintf("Deliberation rounds: < %d >", f.rounds)
	if f.onRounds() {
		content.WriteString(StatusWarn.Render("> " + roundsLabel))
	} else {
		content.WriteString(DimStyle.Render("  " + roundsLabel))
	}
	content.WriteString("\n\n")
	content.WriteString(DimStyle.Render("tab: next field | left/right: rounds | enter: start | esc: quit"))

	box := ActiveBox.Padding(1, 2).Render(content.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// internal/ui/chat.go
package ui

import (
	"fmt"
	"strings"

	"agora/internal/export"
	"agora/internal/transcript"
)

// refreshViewport rebuilds the transcript view and scrolls to the bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderTranscript())
	m.vp.GotoBottom()
}

func (m *Model) renderTranscript() string {
	entries := transcript.Visible(m.currentEntries(), m.showReasoning)
	if len(entries) == 0 {
		return DimStyle.Render("\n  Ask a question to start a multi-agent deliberation.\n")
	}

	var sb strings.Builder
	for _, e := range entries {
		style := AgentStyle(strings.ToLower(e.Participant))

		var header string
		if e.Round > 0 {
			header = style.Render(fmt.Sprintf("[R%d] %s:", e.Round, export.DisplayName(e.Participant)))
		} else {
			header = style.Render(export.DisplayName(e.Participant) + ":")
		}
		sb.WriteString(header)
		if e.Streaming {
			sb.WriteString(DimStyle.Render(" ..."))
		}
		sb.WriteString("\n")

		sb.WriteString(m.renderContent(e))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderContent indents plain content; the arbiter's synthesis is rendered
// as markdown.
func (m *Model) renderContent(e transcript.Entry) string {
	if strings.EqualFold(e.Participant, transcript.ArbiterParticipant) && m.renderer != nil {
		if out, err := m.renderer.Render(e.Content); err == nil {
			return out
		}
	}

	var sb strings.Builder
	for _, line := range strings.Split(e.Content, "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) chatView() string {
	var sb strings.Builder

	// Header
	title := TitleStyle.Render("AGORA")
	sub := DimStyle.Render("multi-agent deliberation")
	header := title + "  " + sub
	if id := m.exportID(); id != "" && len(id) >= 8 {
		header += "  " + DimStyle.Render("["+id[:8]+"]")
	}
	if !m.showReasoning {
		header += "  " + StatusWarn.Render("reasoning hidden")
	}
	sb.WriteString(header)
	sb.WriteString("\n\n")

	sb.WriteString(m.vp.View())
	sb.WriteString("\n")

	// Status line
	switch {
	case m.ctrl != nil && m.ctrl.Loading():
		sb.WriteString(fmt.Sprintf("%s %s",
			m.spin.View(),
			StatusWarn.Render(fmt.Sprintf("Agents deliberating (round %d)", m.ctrl.Round()))))
	case m.status != "":
		sb.WriteString(m.status)
	case m.archived != nil:
		sb.WriteString(DimStyle.Render("Viewing archived conversation"))
	}
	sb.WriteString("\n")

	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(DimStyle.Render("enter: ask | ctrl+r: toggle reasoning | ctrl+e: export | ctrl+h: history | ctrl+k: reset keys | esc: quit"))

	return sb.String()
}

// internal/ui/history.go
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agora/internal/db"
	"agora/internal/transcript"
)

// historyState holds the archived-conversation browser.
type historyState struct {
	conversations []db.Conversation
	cursor        int
	scrollTop     int
	maxHeight     int
}

func (h *historyState) load(store *db.Store) error {
	conversations, err := store.ListConversations()
	if err != nil {
		return err
	}
	h.conversations = conversations
	h.cursor = 0
	h.scrollTop = 0
	if h.maxHeight == 0 {
		h.maxHeight = 20
	}
	return nil
}

func (h *historyState) up() {
	if h.cursor > 0 {
		h.cursor--
		if h.cursor < h.scrollTop {
			h.scrollTop = h.cursor
		}
	}
}

func (h *historyState) down() {
	if h.cursor < len(h.conversations)-1 {
		h.cursor++
		if h.cursor >= h.scrollTop+h.maxHeight {
			h.scrollTop = h.cursor - h.maxHeight + 1
		}
	}
}

func (h *historyState) selected() *db.Conversation {
	if h.cursor >= 0 && h.cursor < len(h.conversations) {
		return &h.conversations[h.cursor]
	}
	return nil
}

func (m Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc", "ctrl+h", "q":
		m.mode = modeChat
		return m, nil

	case "up", "k":
		m.history.up()
		return m, nil

	case "down", "j":
		m.history.down()
		return m, nil

	case "enter":
		convo := m.history.selected()
		if convo == nil {
			return m, nil
		}
		if m.ctrl != nil && m.ctrl.Loading() {
			m.status = DimStyle.Render("A deliberation is in progress")
			m.mode = modeChat
			return m, nil
		}

		messages, err := m.store.GetMessages(convo.ID)
		if err != nil {
			m.status = ErrorStyle.Render("History: " + err.Error())
			m.mode = modeChat
			return m, nil
		}
		m.archived = archivedEntries(messages)
		m.archivedID = convo.ID
		m.startedAt = convo.CreatedAt
		m.status = ""
		m.mode = modeChat
		m.refreshViewport()
		return m, nil
	}
	return m, nil
}

// archivedEntries converts stored messages into transcript entries. The
// result is non-nil even when empty, which is what marks the chat view as
// showing an archive.
func archivedEntries(messages []db.Message) []transcript.Entry {
	entries := make([]transcript.Entry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, transcript.Entry{
			Participant: msg.AgentName,
			Content:     msg.Content,
			Round:       msg.RoundNumber,
		})
	}
	return entries
}

func (h *historyState) render(width, height int) string {
	h.maxHeight = height - 10
	if h.maxHeight < 5 {
		h.maxHeight = 5
	}

	var content strings.Builder

	content.WriteString(TitleStyle.Render("PAST DELIBERATIONS"))
	content.WriteString("\n")
	content.WriteString(DimStyle.Render("Select a conversation to view its transcript"))
	content.WriteString("\n\n")

	if len(h.conversations) == 0 {
		content.WriteString(DimStyle.Render("No archived conversations yet."))
	} else {
		visibleEnd := h.scrollTop + h.maxHeight
		if visibleEnd > len(h.conversations) {
			visibleEnd = len(h.conversations)
		}

		header := fmt.Sprintf("  %-8s  %-40s  %-10s  %s", "ID", "Question", "Status", "Updated")
		content.WriteString(DimStyle.Render(header))
		content.WriteString("\n")
		content.WriteString(DimStyle.Render(strings.Repeat("-", 78)))
		content.WriteString("\n")

		for i := h.scrollTop; i < visibleEnd; i++ {
			c := h.conversations[i]

			question := truncate(c.Question, 38)

			status := "partial"
			statusStyle := StatusWarn
			if c.Completed {
				status = "complete"
				statusStyle = StatusOK
			}

			timeStr := c.UpdatedAt.Format("2006-01-02 15:04")
			if time.Since(c.UpdatedAt) < 24*time.Hour {
				timeStr = c.UpdatedAt.Format("Today 15:04")
			}

			id := c.ID
			if len(id) > 8 {
				id = id[:8]
			}

			cursor := "  "
			lineStyle := DimStyle
			if i == h.cursor {
				cursor = "> "
				lineStyle = lipgloss.NewStyle().Foreground(Cyan)
			}

			line := fmt.Sprintf("%-8s  %-40s  %s  %s",
				id, question, statusStyle.Width(10).Render(status), timeStr)
			content.WriteString(cursor)
			content.WriteString(lineStyle.Render(line))
			content.WriteString("\n")
		}

		if len(h.conversations) > h.maxHeight {
			content.WriteString("\n")
			content.WriteString(DimStyle.Render(fmt.Sprintf("Showing %d-%d of %d",
				h.scrollTop+1, visibleEnd, len(h.conversations))))
		}
	}

	content.WriteString("\n\n")
	content.WriteString(DimStyle.Render("up/down: navigate | enter: view | esc: back"))

	overlay := ActiveBox.Padding(1, 2).MaxWidth(width - 4).MaxHeight(height - 2)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		overlay.Render(content.String()))
}

// truncate cuts s to at most max runes, appending ".." when shortened. The
// question is arbitrary user text, so a byte cut could split a rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + ".."
}

// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agora/internal/transcript"
)

// Conversation contains the data needed to export a deliberation.
type Conversation struct {
	ID        string
	Question  string
	StartedAt time.Time
	Entries   []transcript.Entry
}

// Render generates a formatted markdown document from a deliberation,
// grouped by round with the arbiter's synthesis pulled out as the final
// answer.
func Render(convo *Conversation) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(convo.Question)
	sb.WriteString("\n\n")

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("**Conversation:** `%s`\n\n", convo.ID))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n\n", convo.StartedAt.Format("2006-01-02 15:04:05")))

	if agents := participants(convo.Entries); len(agents) > 0 {
		sb.WriteString("**Agents:** ")
		sb.WriteString(strings.Join(agents, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\n\n")

	lastRound := -1
	for _, e := range convo.Entries {
		name := strings.ToLower(e.Participant)
		switch name {
		case transcript.UserParticipant:
			sb.WriteString("## Question\n\n")
			sb.WriteString(blockquote(e.Content))
			sb.WriteString("\n")
			continue
		case transcript.ArbiterParticipant:
			sb.WriteString("## Final Answer\n\n")
			sb.WriteString(strings.TrimSpace(e.Content))
			sb.WriteString("\n\n")
			continue
		}

		if e.Round != lastRound {
			sb.WriteString(fmt.Sprintf("## Round %d\n\n", e.Round))
			lastRound = e.Round
		}

		sb.WriteString(fmt.Sprintf("### %s\n\n", DisplayName(e.Participant)))
		content := strings.TrimSpace(e.Content)
		if strings.Contains(content, "```") {
			// Content already carries code fences, render as-is
			sb.WriteString(content)
			sb.WriteString("\n")
		} else {
			sb.WriteString(blockquote(content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from Agora on %s*\n", time.Now().Format("2006-01-02 15:04:05")))

	return sb.String()
}

// Write exports a deliberation to a markdown file under
// <baseDir>/deliberations and returns the path written.
func Write(convo *Conversation, baseDir string) (string, error) {
	datePart := convo.StartedAt.Format("2006-01-02")
	namePart := sanitizeFilename(convo.Question)
	filename := fmt.Sprintf("%s-%s.md", datePart, namePart)

	dir := filepath.Join(baseDir, "deliberations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(Render(convo)), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return path, nil
}

// DisplayName returns a human-readable name for a participant.
func DisplayName(participant string) string {
	switch strings.ToLower(participant) {
	case "openai":
		return "OpenAI"
	case "gemini":
		return "Gemini"
	case "deepseek":
		return "DeepSeek"
	case transcript.ArbiterParticipant:
		return "Arbiter"
	case transcript.UserParticipant:
		return "You"
	case "system":
		return "System"
	default:
		return participant
	}
}

func participants(entries []transcript.Entry) []string {
	seen := make(map[string]bool)
	var agents []string
	for _, e := range entries {
		name := strings.ToLower(e.Participant)
		if name == transcript.UserParticipant || seen[name] {
			continue
		}
		seen[name] = true
		agents = append(agents, DisplayName(e.Participant))
	}
	return agents
}

func blockquote(content string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// sanitizeFilename removes/replaces characters unsuitable for filenames
func sanitizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_':
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if result == "" {
		result = "deliberation"
	}
	if len(result) > 50 {
		result = result[:50]
	}

	return result
}

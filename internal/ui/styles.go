// internal/ui/styles.go
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Cyan     = lipgloss.Color("#00FFFF")
	Green    = lipgloss.Color("#00FF00")
	Yellow   = lipgloss.Color("#FFD700")
	Orange   = lipgloss.Color("#FFA500")
	Red      = lipgloss.Color("#FF6B6B")
	Magenta  = lipgloss.Color("#FF00FF")
	SkyBlue  = lipgloss.Color("#87CEEB")
	Dim      = lipgloss.Color("#555555")
	White    = lipgloss.Color("#FFFFFF")

	// Participant colors
	OpenAIColor   = Green
	GeminiColor   = Magenta
	DeepSeekColor = Orange
	ArbiterColor  = Cyan
	UserColor     = SkyBlue
	SystemColor   = Yellow

	// Box styles
	ActiveBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan)

	InactiveBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Dim)

	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	UserStyle = lipgloss.NewStyle().
			Foreground(SkyBlue).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Dim)

	StatusOK   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	StatusWarn = lipgloss.NewStyle().Foreground(Orange).Bold(true)
)

// AgentStyle returns the style for a given participant.
func AgentStyle(participant string) lipgloss.Style {
	switch participant {
	case "openai":
		return lipgloss.NewStyle().Foreground(OpenAIColor).Bold(true)
	case "gemini":
		return lipgloss.NewStyle().Foreground(GeminiColor).Bold(true)
	case "deepseek":
		return lipgloss.NewStyle().Foreground(DeepSeekColor).Bold(true)
	case "arbiter":
		return lipgloss.NewStyle().Foreground(ArbiterColor).Bold(true)
	case "user":
		return UserStyle
	case "system":
		return lipgloss.NewStyle().Foreground(SystemColor)
	default:
		return lipgloss.NewStyle().Foreground(White)
	}
}

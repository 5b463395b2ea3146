package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Muted     = lipgloss.Color("#6B7280") // Gray
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	White     = lipgloss.Color("#FFFFFF")

	// Declaration kind colors
	KindFunc   = lipgloss.Color("#60A5FA") // Blue
	KindMethod = lipgloss.Color("#818CF8") // Indigo
	KindType   = lipgloss.Color("#F472B6") // Pink
	KindValue  = lipgloss.Color("#FB923C") // Orange

	// Base styles
	App = lipgloss.NewStyle().
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Tree entry styles
	EntrySource = lipgloss.NewStyle().
			Bold(true)

	EntryDependent = lipgloss.NewStyle().
			Foreground(Secondary)

	EntrySelected = lipgloss.NewStyle().
			Background(Primary).
			Foreground(White).
			Bold(true)

	Generated = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Tree indicators
	TreeBranch    = lipgloss.NewStyle().Foreground(Muted)
	TreeExpanded  = "▼ "
	TreeCollapsed = "▶ "
	TreeLeaf      = "  "

	// Field label in command output
	Label = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	// Help styles
	HelpKey = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpDesc = lipgloss.NewStyle().
			Foreground(Muted)

	HelpSeparator = lipgloss.NewStyle().
			Foreground(Muted).
			SetString(" • ")

	// Message styles
	Success = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningMsg = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	// Muted text style (for using Muted color as a style)
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)

// KindColor returns the color for a declaration kind name
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "func":
		return KindFunc
	case "method":
		return KindMethod
	case "type":
		return KindType
	case "var", "const":
		return KindValue
	default:
		return Primary
	}
}

// Kind returns the style of a declaration kind label
func Kind(kind string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(KindColor(kind))
}

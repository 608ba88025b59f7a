package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	PrimaryColor   = lipgloss.Color("39")  // Blue
	SecondaryColor = lipgloss.Color("212") // Pink
	AccentColor    = lipgloss.Color("76")  // Green
	ErrorColor     = lipgloss.Color("196") // Red
	WarningColor   = lipgloss.Color("214") // Orange
	MutedColor     = lipgloss.Color("240") // Gray
	TextColor      = lipgloss.Color("252") // Light gray
	BgColor        = lipgloss.Color("235") // Dark gray
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	PathStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	// List pane
	ListStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	ListFocusedStyle = ListStyle.
				BorderForeground(AccentColor)

	CursorStyle = lipgloss.NewStyle().
			Background(PrimaryColor).
			Foreground(lipgloss.Color("0"))

	FolderStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	MarkedAddStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)

	MarkedRemoveStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	MemberStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	IncompatibleStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Italic(true)

	// Pending changes pane
	PendingStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	PendingFocusedStyle = PendingStyle.
				BorderForeground(AccentColor)

	PendingTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(PrimaryColor).
				MarginBottom(1)

	// Search input
	InputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	InputFocusedStyle = InputStyle.
				BorderForeground(AccentColor)

	// Status bar styles
	StatusBarStyle = lipgloss.NewStyle().
			Background(BgColor).
			Foreground(TextColor).
			Padding(0, 1)

	StatusCollectionStyle = lipgloss.NewStyle().
				Background(PrimaryColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1).
				MarginRight(1)

	StatusRunningStyle = lipgloss.NewStyle().
				Background(AccentColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	StatusErrorStyle = lipgloss.NewStyle().
				Background(ErrorColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor)
)

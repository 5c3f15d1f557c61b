package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/voxsync/internal/ui"
	"github.com/muurk/voxsync/internal/version"
)

// Application branding constants
const (
	AppName   = "VOXSYNC DASHBOARD"
	GitHubURL = "github.com/muurk/voxsync"
)

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72 // Minimum supported terminal width
	MeterWidth       = 30 // Width of latency and CPU bars
	SliderWidth      = 24 // Width of parameter sliders
)

// Colors shared with the one-shot CLI output
var (
	PrimaryColor   = ui.PrimaryColor
	SecondaryColor = ui.SuccessColor
	WarningColor   = ui.WarningColor
	ErrorColor     = ui.ErrorColor
	SubtleColor    = ui.MutedColor
	TextColor      = ui.TextColor
	BorderColor    = ui.PrimaryColor
)

var (
	// SectionTitleStyle heads each dashboard panel
	SectionTitleStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true).
				MarginTop(1)

	// RowStyle is an unselected editable row
	RowStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(TextColor)

	// SelectedRowStyle is the row under the cursor
	SelectedRowStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(SecondaryColor).
				Bold(true)

	// RowLabelStyle pads labels so values line up
	RowLabelStyle = lipgloss.NewStyle().Width(12)

	// SpinnerStyle colours the connecting spinner
	SpinnerStyle = lipgloss.NewStyle().Foreground(PrimaryColor)

	// NoticeStyle is a transient success notice
	NoticeStyle = lipgloss.NewStyle().Foreground(SecondaryColor)

	// NoticeErrorStyle is a transient failure notice
	NoticeErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)

	// ModalStyle frames prompts and the help overlay
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	// SliderFillStyle is the filled part of a slider
	SliderFillStyle = lipgloss.NewStyle().Foreground(PrimaryColor)

	// SliderTrackStyle is the empty part of a slider
	SliderTrackStyle = lipgloss.NewStyle().Foreground(SubtleColor)
)

// BuildHeaderContent creates header content with app name and project URL
func BuildHeaderContent() string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + version.Version)

	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(GitHubURL)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

// RenderApplicationContainer wraps a screen in the bordered frame with the
// header on top and footerText pinned to the bottom.
//
//	func (m Model) View() string {
//	    return RenderApplicationContainer(m.content(), m.help(), m.Width, m.Height)
//	}
func RenderApplicationContainer(content string, footerText string, terminalWidth int, terminalHeight int) string {
	if terminalWidth < MinTerminalWidth {
		terminalWidth = MinTerminalWidth
	}
	if terminalHeight < 10 {
		terminalHeight = 10
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().Width(terminalWidth - 4)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent()),
		contentStyle.Render(content),
		footerStyle.Render(lipgloss.NewStyle().Foreground(SubtleColor).Render(footerText)),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Left, lipgloss.Top, bordered)
}

// SafeModalWidth returns the smaller of requestedWidth and what fits in the
// terminal, never less than 40
func SafeModalWidth(requestedWidth, terminalWidth int) int {
	maxWidth := terminalWidth - 4
	if maxWidth < 40 {
		maxWidth = 40
	}
	if requestedWidth < maxWidth {
		return requestedWidth
	}
	return maxWidth
}

// RenderModal centres modalContent over a dimmed screen
func RenderModal(modalContent string, terminalWidth int, terminalHeight int) string {
	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Center,
		lipgloss.Center,
		modalContent,
		lipgloss.WithWhitespaceChars("░"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("240")),
	)
}

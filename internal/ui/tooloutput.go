package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ToolOutput is a box for raw output of an external tool such as
// addr2line, shown in verbose mode.
type ToolOutput struct {
	Title string   // e.g., "addr2line --version"
	Lines []string // Output lines
	Width int      // Terminal width
}

// NewToolOutput creates a new output box
func NewToolOutput(title, content string) *ToolOutput {
	return &ToolOutput{
		Title: title,
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (o *ToolOutput) SetWidth(width int) *ToolOutput {
	o.Width = width
	return o
}

// Render returns the styled output box as a string
func (o *ToolOutput) Render() string {
	width := clampWidth(o.Width)

	inner := lipgloss.JoinVertical(lipgloss.Left,
		ToolOutputTitleStyle.Render(o.Title),
		"",
		ToolOutputContentStyle.Render(strings.Join(o.Lines, "\n")),
	)

	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (o *ToolOutput) String() string {
	return o.Render()
}

package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subnotify/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	BannerHeight    int
}

// NewLayout creates a Layout with the given terminal dimensions.
// The header, banner and status bar take one line each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
		BannerHeight:    1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header, banner and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - l.BannerHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top header bar with a title and the
// right-aligned stage indicator.
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	return titleRendered + l.fill(theme.HeaderStyle, titleRendered, statusRendered) + statusRendered
}

// RenderBanner renders a full-width single line in style. An empty text
// keeps the line blank so the content does not shift.
func (l Layout) RenderBanner(style lipgloss.Style, text string) string {
	if text == "" {
		return lipgloss.NewStyle().Width(l.Width).Render("")
	}
	return style.Width(l.Width).MaxHeight(1).Render(text)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return rendered + l.fill(theme.StatusBarStyle, rendered)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, banner, content area and status bar.
func (l Layout) RenderWithFrame(
	header string,
	banner string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		banner,
		content,
		statusBar,
	)
}

// fill pads a bar to the full width using the bar's background.
func (l Layout) fill(style lipgloss.Style, rendered ...string) string {
	gap := l.Width
	for _, r := range rendered {
		gap -= lipgloss.Width(r)
	}
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Mode selects how the background is determined.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// Theme holds all the styled components of the widget.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header bar with title and toggle control.
	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	HeaderButton lipgloss.Style

	// Panel frame around messages and input.
	Panel lipgloss.Style

	// Launcher is the floating bubble shown on narrow terminals.
	Launcher     lipgloss.Style
	LauncherHint lipgloss.Style

	UserBubble     lipgloss.Style
	BotBubble      lipgloss.Style
	FallbackBubble lipgloss.Style
	SenderLabel    lipgloss.Style

	Typing lipgloss.Style

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	SendButton       lipgloss.Style
	SendButtonBusy   lipgloss.Style

	Help lipgloss.Style
}

// NewTheme creates a theme. ModeAuto queries the terminal background;
// ModeDark and ModeLight force it.
func NewTheme(mode Mode) *Theme {
	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true)

	t.HeaderButton = lipgloss.NewStyle().
		Foreground(TextInverse).
		Bold(true)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple)

	t.Launcher = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple).
		Bold(true).
		Padding(0, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(PurpleDeep)

	t.LauncherHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		Padding(0, 1)

	t.BotBubble = lipgloss.NewStyle().
		Foreground(BotBubbleFg).
		Background(BotBubbleBg).
		Padding(0, 1)

	t.FallbackBubble = lipgloss.NewStyle().
		Foreground(FallbackBubbleFg).
		Background(FallbackBubbleBg).
		Padding(0, 1)

	t.SenderLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Typing = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.SendButton = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Padding(0, 1)

	t.SendButtonBusy = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(Overlay).
		Padding(0, 1)

	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)
}

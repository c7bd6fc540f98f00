// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the chat widget.

All colors use Lip Gloss AdaptiveColor so the widget follows the terminal's
light or dark background. The background can also be forced from config.

# Color System (colors.go)

  - Purple - Header and launcher bubble accent
  - Cyan - Input prompt and focus
  - Amber - Fallback (failed exchange) messages
  - Rose - Errors in line-oriented output

Message bubbles use semantic tokens:

	UserBubbleBg / UserBubbleFg - user messages (right-aligned)
	BotBubbleBg  / BotBubbleFg  - bot messages (left-aligned)

# Theme (theme.go)

Theme groups the lipgloss styles for the header, panel, launcher bubble,
message bubbles, typing indicator and input row:

	theme := styles.NewTheme(styles.ModeAuto)
	header := theme.Header.Width(w).Render(title)
*/
package styles

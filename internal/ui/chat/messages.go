// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatwidget/internal/session"
)

// TurnSettledMsg is sent when a greeting or message turn has finished its
// round trip and the session client has recorded the result.
type TurnSettledMsg struct {
	Greeting bool
	Outcome  session.Outcome
}

// TurnRejectedMsg is sent when the session client refused to begin a turn
// (busy or closed).
type TurnRejectedMsg struct {
	Err error
}

// runTurnCmd runs a begun turn off the event loop.
func runTurnCmd(l *lifetime, turn *session.Turn, greeting bool) tea.Cmd {
	ctx := l.context()
	return func() tea.Msg {
		return TurnSettledMsg{Greeting: greeting, Outcome: turn.Run(ctx)}
	}
}

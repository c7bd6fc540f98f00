// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat widget component for the TUI.
//
// The widget is a floating launcher bubble that opens into a chat panel. It
// renders the conversation held by a session.Client and forwards every user
// submission to it; no network activity happens in this package.
//
// # Chrome
//
// Two independent flags drive what is drawn:
//
//   - open: meaningful only on narrow terminals. When narrow and not open,
//     only the launcher bubble is shown.
//   - minimized: collapses the panel body (messages and input) to the header.
//
// The header toggle flips open on narrow terminals and minimized otherwise.
// See ComputeChrome for the full visibility table.
//
// # Turns
//
// Init begins the greeting turn. Each submission begins a message turn. The
// pre-network part (optimistic user message, pending flag) happens inside
// Update; the round trip runs as a tea.Cmd and reports back with a
// TurnSettledMsg.
//
// # Key Bindings
//
//   - Enter / Ctrl+S: send the current input
//   - Ctrl+T: header toggle (open or minimize)
//   - Enter / Space / o: open the panel from the launcher
//   - PgUp / PgDn: scroll the transcript
//   - Ctrl+C / Esc: quit
package chat

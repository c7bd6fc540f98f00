// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TurnSettledMsg:
		return m.handleSettled(msg)

	case TurnRejectedMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.client.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.layout()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.life.end()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		m.toggle()
		return m, nil
	}

	chrome := m.Chrome()
	if chrome.Launcher {
		if key.Matches(msg, m.keys.Open) {
			m.open = true
			m.layout()
			m.input.Focus()
			return m, textinput.Blink
		}
		return m, nil
	}
	if !chrome.Body {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit), key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.ViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input through the session client. While a turn is in
// flight the submission is ignored and the typed text stays in the input.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.client.Pending() {
		return m, nil
	}

	turn, err := m.client.BeginMessage(m.input.Value())
	if err != nil {
		log.Debug().Err(err).Msg("submission rejected")
		return m, nil
	}
	m.input.Reset()
	if turn.Skipped() {
		return m, nil
	}

	m.refresh()
	m.viewport.GotoBottom()
	return m, tea.Batch(runTurnCmd(m.life, turn, false), m.spinner.Tick)
}

func (m Model) handleSettled(msg TurnSettledMsg) (tea.Model, tea.Cmd) {
	if msg.Outcome.Failed() {
		log.Debug().
			Bool("greeting", msg.Greeting).
			Str("kind", msg.Outcome.Kind.String()).
			Msg("turn settled with fallback")
	}
	m.refresh()
	m.viewport.GotoBottom()
	return m, nil
}

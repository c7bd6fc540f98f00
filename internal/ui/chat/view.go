// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatwidget/internal/model"
	"github.com/jeranaias/chatwidget/internal/util"
)

const (
	launcherIcon = "💬"
	launcherHint = "enter to chat"
	sendLabel    = "Send"
	lenSendLabel = len(sendLabel) + 2

	buttonMinimize = "[–]"
	buttonRestore  = "[+]"
	buttonClose    = "[×]"
)

// View renders the widget.
func (m Model) View() string {
	if m.life.ended() {
		return ""
	}

	chrome := m.Chrome()
	if chrome.Launcher {
		return m.renderLauncher()
	}
	panel := m.renderPanel(chrome)
	if m.width == 0 || m.height == 0 || m.Narrow() {
		return panel
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Right, lipgloss.Bottom, panel)
}

// renderLauncher draws the floating bubble in the bottom-right corner.
func (m Model) renderLauncher() string {
	bubble := lipgloss.JoinVertical(lipgloss.Right,
		m.theme.Launcher.Render(launcherIcon),
		m.theme.LauncherHint.Render(launcherHint),
	)
	if m.width == 0 || m.height == 0 {
		return bubble
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Right, lipgloss.Bottom, bubble)
}

func (m Model) renderPanel(chrome Chrome) string {
	innerW := m.viewport.Width
	parts := []string{m.renderHeader(innerW)}
	if chrome.Body {
		parts = append(parts,
			m.viewport.View(),
			m.renderTyping(innerW),
			m.renderInput(innerW),
			m.renderHelp(innerW),
		)
	}
	return m.theme.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// renderHeader draws the title bar with the toggle control.
func (m Model) renderHeader(width int) string {
	button := buttonMinimize
	switch {
	case m.Narrow():
		button = buttonClose
	case m.minimized:
		button = buttonRestore
	}

	frame := m.theme.Header.GetHorizontalFrameSize()
	titleW := width - frame - util.StringWidth(button) - 1
	title := util.TruncateWidth(m.title, max(titleW, 0))
	gap := max(width-frame-util.StringWidth(title)-util.StringWidth(button), 1)

	line := m.theme.HeaderTitle.Render(title) +
		strings.Repeat(" ", gap) +
		m.theme.HeaderButton.Render(button)
	return m.theme.Header.Width(width).MaxWidth(width).Render(line)
}

func (m Model) renderTyping(width int) string {
	if !m.client.Pending() {
		return strings.Repeat(" ", max(width, 0))
	}
	return m.theme.Typing.Width(width).Render(m.spinner.View() + " " + TypingText)
}

func (m Model) renderInput(width int) string {
	send := m.theme.SendButton.Render(sendLabel)
	if m.client.Pending() {
		send = m.theme.SendButtonBusy.Render(sendLabel)
	}
	gap := max(width-lipgloss.Width(m.input.View())-lipgloss.Width(send), 1)
	row := m.input.View() + strings.Repeat(" ", gap) + send
	return m.theme.InputContainer.Width(width).Render(row)
}

func (m Model) renderHelp(width int) string {
	bindings := m.keys.ShortHelp()
	items := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		items = append(items, h.Key+" "+h.Desc)
	}
	return m.theme.Help.Width(width).MaxWidth(width).Render(strings.Join(items, " • "))
}

// renderMessages renders the transcript. User bubbles hug the right edge,
// bot bubbles the left.
func (m Model) renderMessages() string {
	msgs := m.client.Messages()
	if len(msgs) == 0 {
		return ""
	}

	width := m.viewport.Width
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	style := m.theme.BotBubble
	align := lipgloss.Left
	switch {
	case msg.IsUser():
		style = m.theme.UserBubble
		align = lipgloss.Right
	case msg.Fallback:
		style = m.theme.FallbackBubble
	}

	text := msg.Text
	if !msg.IsUser() && !msg.Fallback && m.markdown != nil {
		if out, err := m.markdown.Render(text); err == nil {
			text = strings.Trim(out, "\n")
		}
	}

	frame := style.GetHorizontalFrameSize()
	contentW := min(lipgloss.Width(text), m.bubbleWidth()-frame)
	bubble := style.Width(max(contentW, 1) + style.GetHorizontalPadding()).Render(text)
	label := m.theme.SenderLabel.Render(msg.Sender.DisplayName())

	block := lipgloss.JoinVertical(align, label, bubble)
	return lipgloss.PlaceHorizontal(width, align, block)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatwidget/internal/session"
	"github.com/jeranaias/chatwidget/internal/ui/styles"
)

const (
	// DefaultNarrowWidth is the terminal width below which the widget
	// collapses into the launcher bubble.
	DefaultNarrowWidth = 60

	// DefaultTitle is shown in the panel header.
	DefaultTitle = "🏢 MSN One Neopolis Assistant"

	// DefaultPlaceholder is shown in an empty input.
	DefaultPlaceholder = "Type your message..."

	// TypingText is shown while an exchange is in flight.
	TypingText = "Bot is typing..."

	maxPanelWidth  = 72
	maxPanelHeight = 32
	minViewport    = 1

	// Bubbles never exceed this share of the transcript width.
	bubbleWidthRatio = 0.8

	inputCharLimit = 4000
)

// Options configures a Model.
type Options struct {
	Title       string
	Placeholder string

	// NarrowWidth is the breakpoint in columns. Zero uses DefaultNarrowWidth.
	NarrowWidth int

	// Markdown renders bot replies with glamour.
	Markdown bool

	StartMinimized bool

	// Context bounds every turn. Nil uses context.Background.
	Context context.Context
}

// Model is the chat widget.
type Model struct {
	client *session.Client
	theme  *styles.Theme
	keys   KeyMap

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	markdown *glamour.TermRenderer
	useMD    bool

	title       string
	narrowWidth int

	width  int
	height int

	open      bool
	minimized bool

	life *lifetime
}

// New creates a chat widget over client.
func New(client *session.Client, theme *styles.Theme, opts Options) Model {
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.NarrowWidth <= 0 {
		opts.NarrowWidth = DefaultNarrowWidth
	}

	ti := textinput.New()
	ti.Placeholder = opts.Placeholder
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.CharLimit = inputCharLimit
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Typing

	m := Model{
		client:      client,
		theme:       theme,
		keys:        DefaultKeyMap(),
		input:       ti,
		spinner:     sp,
		viewport:    viewport.New(maxPanelWidth, maxPanelHeight),
		useMD:       opts.Markdown,
		title:       opts.Title,
		narrowWidth: opts.NarrowWidth,
		minimized:   opts.StartMinimized,
		life:        newLifetime(opts.Context),
	}
	m.layout()
	return m
}

// Init begins the greeting turn.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.beginGreeting())
}

func (m Model) beginGreeting() tea.Cmd {
	turn, err := m.client.BeginGreeting()
	if err != nil {
		log.Debug().Err(err).Msg("greeting not started")
		return func() tea.Msg { return TurnRejectedMsg{Err: err} }
	}
	return runTurnCmd(m.life, turn, true)
}

// Client returns the session client the widget renders.
func (m Model) Client() *session.Client {
	return m.client
}

// Input returns the current input text.
func (m Model) Input() string {
	return m.input.Value()
}

// Open reports whether the panel has been opened from the launcher.
func (m Model) Open() bool {
	return m.open
}

// Minimized reports whether the panel body is collapsed.
func (m Model) Minimized() bool {
	return m.minimized
}

// Narrow reports whether the terminal is below the narrow breakpoint.
// Before the first resize the widget assumes a wide terminal.
func (m Model) Narrow() bool {
	return m.width > 0 && m.width < m.narrowWidth
}

// Chrome returns what the widget currently draws.
func (m Model) Chrome() Chrome {
	return ComputeChrome(m.Narrow(), m.open, m.minimized)
}

// Chrome describes which parts of the widget are visible.
type Chrome struct {
	Launcher bool
	Panel    bool
	Body     bool
}

// ComputeChrome derives visibility from the breakpoint and the two flags.
// open only matters on narrow terminals; minimized only matters when the
// panel is shown.
func ComputeChrome(narrow, open, minimized bool) Chrome {
	panel := open || !narrow
	return Chrome{
		Launcher: narrow && !open,
		Panel:    panel,
		Body:     panel && !minimized,
	}
}

// toggle handles the header control.
func (m *Model) toggle() {
	if m.Narrow() {
		m.open = !m.open
	} else {
		m.minimized = !m.minimized
	}
	m.layout()
}

// panelSize returns the outer panel size for the current terminal.
func (m Model) panelSize() (int, int) {
	w, h := m.width, m.height
	if w == 0 || h == 0 {
		return maxPanelWidth, maxPanelHeight
	}
	if !m.Narrow() {
		w = min(w, maxPanelWidth)
		h = min(h, maxPanelHeight)
	}
	return w, h
}

// layout resizes the viewport and markdown renderer to the panel.
func (m *Model) layout() {
	pw, ph := m.panelSize()
	innerW := max(pw-m.theme.Panel.GetHorizontalFrameSize(), 1)
	innerH := ph - m.theme.Panel.GetVerticalFrameSize()

	// header + typing line + input + help
	chromeH := 1 + 1 + (1 + m.theme.InputContainer.GetVerticalFrameSize()) + 1
	m.viewport.Width = innerW
	m.viewport.Height = max(innerH-chromeH, minViewport)
	m.input.Width = max(innerW-lenSendLabel-4, 1)

	if m.useMD {
		m.markdown = newMarkdownRenderer(m.theme, m.bubbleWidth()-m.theme.BotBubble.GetHorizontalFrameSize())
	}
	m.refresh()
}

// bubbleWidth is the widest a message bubble may be.
func (m Model) bubbleWidth() int {
	return max(int(float64(m.viewport.Width)*bubbleWidthRatio), 8)
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func newMarkdownRenderer(theme *styles.Theme, width int) *glamour.TermRenderer {
	style := "light"
	if theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width, 10)),
	)
	if err != nil {
		log.Warn().Err(err).Msg("markdown renderer unavailable")
		return nil
	}
	return r
}

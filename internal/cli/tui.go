// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatwidget/internal/logging"
	"github.com/jeranaias/chatwidget/internal/ui/chat"
	"github.com/jeranaias/chatwidget/internal/ui/styles"
)

// runTUI starts the interactive widget. The TUI owns the terminal, so logs
// go to a file.
func (a *app) runTUI(ctx context.Context) error {
	logPath, err := a.cfg.LogPath()
	if err != nil {
		logPath = ""
	}
	_, closer, err := logging.SetupFile(a.cfg.Log.Level, logPath)
	if err != nil {
		fmt.Fprintln(a.errOut, WarningStyle.Render("warning:"), err, "(logging disabled)")
	}
	defer closer.Close()

	rec, closeArchive := a.openRecorder()
	defer closeArchive()

	client := a.newSessionClient(observer(rec, nil))
	defer client.Close()

	model := chat.New(client, styles.NewTheme(styles.Mode(a.cfg.UI.Theme)), chat.Options{
		Title:          a.cfg.UI.Title,
		Placeholder:    a.cfg.UI.Placeholder,
		NarrowWidth:    a.cfg.UI.NarrowWidth,
		Markdown:       a.cfg.UI.Markdown,
		StartMinimized: a.cfg.UI.StartMinimized,
		Context:        ctx,
	})

	log.Info().Str("endpoint", a.cfg.Endpoint.URL).Msg("starting widget")

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(a.in),
		tea.WithOutput(a.out),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run widget")
	}
	return nil
}

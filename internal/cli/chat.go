// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/chatwidget/internal/config"
	"github.com/jeranaias/chatwidget/internal/model"
	"github.com/jeranaias/chatwidget/internal/session"
)

const plainPrompt = "you> "

func (a *app) chatCommand() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a conversation",
		Long: `Start a conversation with the assistant.

By default this opens the widget. With --plain (or when stdin/stdout is not a
terminal) it runs a line-oriented session instead. Type /help for commands.`,
		Example: `  chatwidget chat
  chatwidget chat --plain
  printf 'Hello\n' | chatwidget chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain || !IsTTY() || !IsStdoutTTY() {
				return a.runPlain(cmd.Context())
			}
			return a.runTUI(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&plain, "plain", "p", false, "line-oriented chat without the widget")
	return cmd
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader yields one line of user input per call. io.EOF ends the session.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerReader provides line editing and persistent history on a terminal.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &linerReader{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(r.historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history (0600) and restores the terminal.
func (r *linerReader) Close() error {
	if r.historyFile != "" && config.EnsureConfigDir() == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// scanReader reads piped input without echoing a prompt.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) ReadLine(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Close() error { return nil }

func (a *app) newLineReader() lineReader {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return newLinerReader()
	}
	return &scanReader{scanner: bufio.NewScanner(a.in)}
}

// =============================================================================
// SESSION LOOP
// =============================================================================

// runPlain is the line-oriented shell. It follows the same session contract
// as the widget: greet once, then one exchange per non-blank line.
func (a *app) runPlain(ctx context.Context) error {
	a.consoleLogging()

	rec, closeArchive := a.openRecorder()
	defer closeArchive()

	client := a.newSessionClient(observer(rec, nil))
	defer client.Close()

	input := a.newLineReader()
	defer input.Close()

	fmt.Fprintln(a.out, TitleStyle.Render(a.cfg.UI.Title))
	a.greet(ctx, client)

	for {
		line, err := input.ReadLine(PromptStyle.Render(plainPrompt))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "read input")
		}

		text := strings.TrimSpace(line)
		if name, ok := plainCommandName(text); ok {
			if done := a.plainCommand(ctx, client, name); done {
				return nil
			}
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		outcome, err := client.SendMessage(turnCtx, text)
		stop()
		if err != nil {
			fmt.Fprintln(a.errOut, ErrorStyle.Render("error:"), err)
			continue
		}
		a.printOutcome(outcome)
	}
}

func (a *app) greet(ctx context.Context, client *session.Client) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	outcome, err := client.InitializeSession(turnCtx)
	if err != nil {
		fmt.Fprintln(a.errOut, ErrorStyle.Render("error:"), err)
		return
	}
	a.printOutcome(outcome)
}

// plainCommands maps each recognised slash command to its canonical name.
var plainCommands = map[string]string{
	"/quit":    "quit",
	"/exit":    "quit",
	"/q":       "quit",
	"/reset":   "reset",
	"/new":     "reset",
	"/session": "session",
	"/help":    "help",
	"/?":       "help",
}

// plainCommandName reports whether text is a known slash command. Anything
// else, including unknown "/..." lines, is sent to the endpoint.
func plainCommandName(text string) (string, bool) {
	name, ok := plainCommands[strings.ToLower(text)]
	return name, ok
}

// plainCommand runs a command returned by plainCommandName. It returns true
// when the session should end.
func (a *app) plainCommand(ctx context.Context, client *session.Client, name string) bool {
	switch name {
	case "quit":
		return true
	case "reset":
		client.Reset()
		fmt.Fprintln(a.out, DimStyle.Render("Started a new conversation."))
		a.greet(ctx, client)
	case "session":
		id := client.SessionID()
		if id == "" {
			id = "(none)"
		}
		fmt.Fprintln(a.out, RenderLabel("Session:")+ValueStyle.Render(id))
		fmt.Fprintln(a.out, RenderLabel("Conversation:")+ValueStyle.Render(client.ConversationID()))
		fmt.Fprintln(a.out, RenderLabel("Messages:")+ValueStyle.Render(fmt.Sprint(len(client.Messages()))))
	case "help":
		fmt.Fprintln(a.out, DimStyle.Render("/reset    start a new conversation"))
		fmt.Fprintln(a.out, DimStyle.Render("/session  show the session and conversation ids"))
		fmt.Fprintln(a.out, DimStyle.Render("/quit     leave"))
	}
	return false
}

func (a *app) printOutcome(o session.Outcome) {
	if o.Skipped || o.Stale {
		return
	}
	label := BotLabelStyle.Render(model.SenderBot.DisplayName() + ":")
	text := o.Reply.Text
	if o.Failed() {
		text = WarningStyle.Render(text)
	}
	fmt.Fprintln(a.out, label, text)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/chatwidget/internal/session"
)

// MaxStdinSize caps a query read from stdin.
const MaxStdinSize = 64 * 1024

func (a *app) askCommand() *cobra.Command {
	var (
		jsonOut bool
		raw     bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send a single message and print the reply",
		Long: `Send one message to the endpoint and print the reply.

The question is taken from the arguments, or from stdin when it is piped.
Replies are rendered as markdown on a terminal unless --raw is given.`,
		Example: `  chatwidget ask "What are the library opening hours?"
  echo "Where is city hall?" | chatwidget ask
  chatwidget ask --json "Hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.consoleLogging()

			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				q, err := a.readStdinQuery()
				if err != nil {
					return err
				}
				query = q
			}
			if query == "" {
				return errors.New("no question given (pass it as an argument or pipe it on stdin)")
			}
			return a.ask(cmd.Context(), query, jsonOut, raw)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the reply as a JSON envelope")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

// readStdinQuery reads the whole of stdin when it is not a terminal.
func (a *app) readStdinQuery() (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(a.in, MaxStdinSize+1))
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	if len(data) > MaxStdinSize {
		return "", errors.Errorf("stdin exceeds %d bytes", MaxStdinSize)
	}
	return strings.TrimSpace(string(data)), nil
}

func (a *app) ask(ctx context.Context, query string, jsonOut, raw bool) error {
	rec, closeArchive := a.openRecorder()
	defer closeArchive()

	client := a.newSessionClient(observer(rec, nil))
	defer client.Close()

	start := time.Now()
	outcome, err := client.SendMessage(ctx, query)
	if err != nil {
		return err
	}

	if jsonOut {
		return a.writeAskJSON(query, outcome, time.Since(start))
	}

	text := outcome.Reply.Text
	if !raw && !outcome.Failed() && a.cfg.UI.Markdown && IsStdoutTTY() {
		text = renderMarkdown(text, GetTerminalWidth())
	}
	fmt.Fprintln(a.out, strings.TrimRight(text, "\n"))

	if outcome.Failed() {
		return errors.Wrap(outcome.Err, "exchange failed")
	}
	return nil
}

func (a *app) writeAskJSON(query string, o session.Outcome, elapsed time.Duration) error {
	data := AskData{
		Query:     query,
		Response:  o.Reply.Text,
		SessionID: o.SessionID,
		Fallback:  o.Failed(),
		Duration:  elapsed.Round(time.Millisecond).String(),
	}
	resp := NewJSONResponse("ask", data)
	if o.Failed() {
		data.Kind = o.Kind.String()
		resp = NewJSONErrorResponse("ask", o.Err)
		resp.Data = data
	}
	return resp.Write(a.out)
}

// renderMarkdown renders text with glamour, returning it unchanged on error.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatwidget/internal/config"
	"github.com/jeranaias/chatwidget/internal/exchange"
	"github.com/jeranaias/chatwidget/internal/logging"
	"github.com/jeranaias/chatwidget/internal/session"
	"github.com/jeranaias/chatwidget/internal/storage"
)

// Version information, overridden at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app carries state shared by every command.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	endpoint   string
	logLevel   string
	noHistory  bool

	cfg *config.Config
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	root := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error:"), err)
		return 1
	}
	return 0
}

// NewRootCommand builds the chatwidget command tree.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "chatwidget",
		Short: "Terminal chat widget for the MSN One Neopolis assistant",
		Long: `chatwidget opens a chat panel in the terminal and talks to a remote
conversational endpoint (POST /chat).

Without a subcommand it starts the interactive widget. On terminals narrower
than ui.narrow_width the widget starts as a floating bubble; press enter to
open it.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsTTY() || !IsStdoutTTY() {
				return a.runPlain(cmd.Context())
			}
			return a.runTUI(cmd.Context())
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default ~/.chatwidget/config.toml)")
	flags.StringVarP(&a.endpoint, "endpoint", "e", "", "chat endpoint URL (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")
	flags.BoolVar(&a.noHistory, "no-history", false, "do not archive this conversation")

	root.AddCommand(
		a.chatCommand(),
		a.askCommand(),
		a.serveCommand(),
		a.historyCommand(),
		a.configCommand(),
	)
	return root
}

// loadConfig resolves the configuration once per invocation. Flags win over
// the environment, which wins over the file.
func (a *app) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		if _, statErr := os.Stat(a.configPath); statErr != nil {
			// Not created yet: "config init --config path" writes it.
			cfg = config.Default()
			cfg.ApplyEnvOverrides()
		} else if cfg, err = config.LoadFromPath(a.configPath); err != nil {
			return err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return err
		}
		if err != nil {
			fmt.Fprintln(a.errOut, WarningStyle.Render("warning:"), err, "(using defaults)")
		}
	}

	if a.endpoint != "" {
		cfg.Endpoint.URL = a.endpoint
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.noHistory {
		cfg.History.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	a.cfg = cfg
	return nil
}

// consoleLogging sends logs to stderr for line-oriented commands.
func (a *app) consoleLogging() {
	logging.SetupConsole(a.cfg.Log.Level)
}

// newSessionClient builds a session client against the configured endpoint.
func (a *app) newSessionClient(onChange func(session.Snapshot)) *session.Client {
	transport := exchange.NewClient(a.cfg.Endpoint.URL).
		WithTimeout(a.cfg.Endpoint.Timeout()).
		WithUserAgent("chatwidget/" + Version)

	return session.New(transport, session.Options{
		MissingID: session.MissingIDPolicy(a.cfg.Session.MissingID),
		OnChange:  onChange,
	})
}

// openRecorder opens the transcript archive when history is enabled. The
// returned close function is always safe to call.
func (a *app) openRecorder() (*storage.Recorder, func()) {
	if !a.cfg.History.Enabled {
		return nil, func() {}
	}
	path, err := a.cfg.HistoryPath()
	if err != nil {
		log.Warn().Err(err).Msg("history disabled")
		return nil, func() {}
	}
	archive, err := storage.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("history disabled")
		return nil, func() {}
	}
	return storage.NewRecorder(archive, a.cfg.Endpoint.URL), func() {
		if err := archive.Close(); err != nil {
			log.Warn().Err(err).Msg("close history")
		}
	}
}

// observer adapts a recorder to a session change listener.
func observer(rec *storage.Recorder, next func(session.Snapshot)) func(session.Snapshot) {
	return func(snap session.Snapshot) {
		if rec != nil {
			rec.Observe(snap.ConversationID, snap.SessionID, snap.Messages)
		}
		if next != nil {
			next(snap)
		}
	}
}

// openArchive opens the archive for the history commands.
func (a *app) openArchive() (*storage.Archive, error) {
	path, err := a.cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

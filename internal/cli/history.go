// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatwidget/internal/storage"
)

func (a *app) historyCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse archived conversations",
		Long: `Browse conversations archived by the widget.

Conversation IDs may be abbreviated to any unique prefix.`,
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json, yaml, markdown")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(cmd.Context(), func(ctx context.Context, ar *storage.Archive) error {
				metas, err := ar.List(ctx, limit)
				if err != nil {
					return err
				}
				return a.writeMetas(output, metas)
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum conversations to list (0 for all)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(cmd.Context(), func(ctx context.Context, ar *storage.Archive) error {
				conv, err := ar.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return a.writeConversation(output, conv)
			})
		},
	}

	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Find conversations containing text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(cmd.Context(), func(ctx context.Context, ar *storage.Archive) error {
				metas, err := ar.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return a.writeMetas(output, metas)
			})
		},
	}

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(cmd.Context(), func(ctx context.Context, ar *storage.Archive) error {
				if err := ar.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(a.out, SuccessStyle.Render("deleted"), args[0])
				return nil
			})
		},
	}

	var confirm bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear history without --confirm")
			}
			return a.withArchive(cmd.Context(), func(ctx context.Context, ar *storage.Archive) error {
				if err := ar.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, SuccessStyle.Render("history cleared"))
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&confirm, "confirm", false, "confirm deletion of all conversations")

	cmd.AddCommand(list, show, search, del, clearCmd)
	return cmd
}

func (a *app) withArchive(ctx context.Context, fn func(context.Context, *storage.Archive) error) error {
	ar, err := a.openArchive()
	if err != nil {
		return err
	}
	defer ar.Close()
	return fn(ctx, ar)
}

func (a *app) writeMetas(output string, metas []storage.ConversationMeta) error {
	format, err := ParseFormat(output)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON, FormatYAML:
		if metas == nil {
			metas = []storage.ConversationMeta{}
		}
		return writeStructured(a.out, format, metas)
	default:
		_, err := fmt.Fprint(a.out, storage.FormatConversationList(metas))
		if len(metas) == 0 {
			fmt.Fprintln(a.out)
		}
		return err
	}
}

func (a *app) writeConversation(output string, conv *storage.StoredConversation) error {
	format, err := ParseFormat(output)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON, FormatYAML:
		return writeStructured(a.out, format, conv)
	case FormatMarkdown:
		_, err := fmt.Fprint(a.out, conv.ExportMarkdown())
		return err
	}

	fmt.Fprintln(a.out, RenderLabel("Conversation:")+ValueStyle.Render(conv.ID))
	fmt.Fprintln(a.out, RenderLabel("Created:")+ValueStyle.Render(conv.CreatedAt.Format("2006-01-02 15:04:05")))
	if conv.SessionID != "" {
		fmt.Fprintln(a.out, RenderLabel("Session:")+ValueStyle.Render(conv.SessionID))
	}
	fmt.Fprintln(a.out, RenderSeparator())
	for _, msg := range conv.Messages {
		label := PromptStyle.Render(msg.Sender.DisplayName() + ":")
		if !msg.IsUser() {
			label = BotLabelStyle.Render(msg.Sender.DisplayName() + ":")
		}
		fmt.Fprintf(a.out, "%s %s %s\n", DimStyle.Render(msg.At.Format("15:04")), label, msg.Text)
	}
	return nil
}

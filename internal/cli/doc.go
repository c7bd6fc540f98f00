// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatwidget command tree.
//
// Commands:
//
//	chatwidget                 interactive widget (plain shell when not a TTY)
//	chatwidget chat [--plain]  conversation, widget or line-oriented
//	chatwidget ask "question"  one exchange, reply on stdout
//	chatwidget serve           local stand-in for the chat endpoint
//	chatwidget history ...     list, show, search, delete, clear archives
//	chatwidget config ...      show, init, path, get, set, keys
//
// Global flags --config, --endpoint, --log-level and --no-history override
// the loaded configuration for a single invocation.
package cli

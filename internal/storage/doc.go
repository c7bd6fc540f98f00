// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives chat transcripts in a local SQLite database.
//
// The archive is write-only from the widget's point of view: every launch
// starts an empty conversation, and the archive is read back only by the
// history commands.
//
// # Key Types
//
//   - Archive: SQLite-backed transcript store
//   - Recorder: appends new messages from session snapshots to an Archive
//   - StoredConversation: a conversation with its messages, for export
//   - ConversationMeta: lightweight metadata for listing
//
// # Usage
//
//	archive, err := storage.Open(path)
//	rec := storage.NewRecorder(archive, endpoint)
//	client := session.New(transport, session.Options{
//	    OnChange: func(s session.Snapshot) {
//	        rec.Observe(s.ConversationID, s.SessionID, s.Messages)
//	    },
//	})
//
// List and load conversations:
//
//	metas, err := archive.List(ctx, 20)
//	conv, err := archive.Load(ctx, metas[0].ID)
//
// # Storage Location
//
// Transcripts are stored in ~/.chatwidget/history.db unless history.path is set.
package storage

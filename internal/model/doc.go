// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat widget conversation.
//
// # Key Types
//
//   - Sender: who produced a message (user or bot)
//   - Message: one immutable chat line
//   - Conversation: the ordered, append-only list of messages shown in the panel
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Append(model.NewUserMessage("Hello"))
//	for _, msg := range conv.Snapshot() {
//	    fmt.Println(msg.Sender.DisplayName(), msg.Text)
//	}
package model

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/chatwidget/internal/model"
	"github.com/jeranaias/chatwidget/internal/util"
)

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation represents an archived conversation.
type StoredConversation struct {
	ID        string          `json:"id" yaml:"id"`
	Endpoint  string          `json:"endpoint" yaml:"endpoint"`
	SessionID string          `json:"session_id" yaml:"session_id"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
	Messages  []model.Message `json:"messages" yaml:"messages"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id" yaml:"id"`
	Endpoint     string    `json:"endpoint" yaml:"endpoint"`
	SessionID    string    `json:"session_id" yaml:"session_id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
	Preview      string    `json:"preview" yaml:"preview"` // First user message truncated
}

const previewLen = 80

func previewText(s string) string {
	return util.TruncateRunes(util.FirstLine(s), previewLen)
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders the conversation as Markdown with sender labels.
func (c *StoredConversation) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Conversation " + c.ID + "\n\n")
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n")
	if c.Endpoint != "" {
		sb.WriteString("Endpoint: " + c.Endpoint + "\n\n")
	}
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString("**" + msg.Sender.DisplayName() + "** (" + msg.At.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Text)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// ExportJSON exports the conversation as pretty-printed JSON.
func (c *StoredConversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Preview returns the first user message, truncated. Empty if there is none.
func (c *StoredConversation) Preview() string {
	for _, msg := range c.Messages {
		if msg.IsUser() && msg.Text != "" {
			return msg.Preview(previewLen)
		}
	}
	return ""
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatConversationList formats conversations as a fixed-width table.
func FormatConversationList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString(formatPadded("ID", 12) + " " + formatPadded("Updated", 16) + " " + formatPadded("Messages", 8) + " Preview\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")

	for _, m := range metas {
		id := m.ID
		if len(id) > 12 {
			id = id[:12]
		}
		sb.WriteString(formatPadded(id, 12) + " " +
			formatPadded(m.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			formatPadded(strconv.Itoa(m.MessageCount), 8) + " " +
			util.TruncateWidth(m.Preview, 30) + "\n")
	}
	return sb.String()
}

// formatPadded pads s with spaces to width terminal cells.
func formatPadded(s string, width int) string {
	w := util.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

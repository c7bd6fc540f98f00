// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// FallbackText is shown in place of a bot reply when an exchange fails.
const FallbackText = "⚠️ Something went wrong. Please try again."

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies the origin of a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Assistant"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat line. Messages are values and are never mutated
// after creation; the conversation hands out copies.
type Message struct {
	ID     string    `json:"id" yaml:"id"`
	Sender Sender    `json:"from" yaml:"from"`
	Text   string    `json:"text" yaml:"text"`
	At     time.Time `json:"at" yaml:"at"`

	// Fallback marks the fixed error text shown when an exchange failed.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		At:     time.Now(),
	}
}

// NewUserMessage creates a message typed by the user.
func NewUserMessage(text string) Message {
	return NewMessage(SenderUser, text)
}

// NewBotMessage creates a message carrying the endpoint's reply.
func NewBotMessage(text string) Message {
	return NewMessage(SenderBot, text)
}

// NewFallbackMessage creates the bot message shown after a failed exchange.
func NewFallbackMessage() Message {
	msg := NewMessage(SenderBot, FallbackText)
	msg.Fallback = true
	return msg
}

// IsUser reports whether the message was typed by the user.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// Preview returns a truncated single-line preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Text)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) <= maxLen {
		return string(runes)
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

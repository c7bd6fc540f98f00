// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"

	"github.com/google/uuid"
)

// Conversation holds the messages shown in the chat panel. Insertion order is
// display order; messages are only ever appended.
type Conversation struct {
	mu sync.RWMutex

	id       string
	messages []Message
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	return &Conversation{
		id:       uuid.NewString(),
		messages: make([]Message, 0, 16),
	}
}

// ID returns the conversation identifier. It is local to this process and
// unrelated to the endpoint's session id.
func (c *Conversation) ID() string {
	return c.id
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Snapshot returns a copy of all messages in display order.
func (c *Conversation) Snapshot() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Since returns a copy of the messages after the first n.
func (c *Conversation) Since(n int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(c.messages) {
		return nil
	}
	out := make([]Message, len(c.messages)-n)
	copy(out, c.messages[n:])
	return out
}

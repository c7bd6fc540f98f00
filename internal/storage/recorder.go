// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatwidget/internal/model"
)

// Recorder mirrors a live conversation into an Archive. It remembers how many
// messages of the current conversation are already stored and appends only
// the new ones. A change of conversation id starts a new archived record.
type Recorder struct {
	mu       sync.Mutex
	archive  *Archive
	endpoint string

	conversationID string
	written        int
}

// NewRecorder creates a recorder that tags conversations with endpoint.
func NewRecorder(archive *Archive, endpoint string) *Recorder {
	return &Recorder{archive: archive, endpoint: endpoint}
}

// Sync appends any messages not yet archived. Conversations with no
// messages are not recorded.
func (r *Recorder) Sync(ctx context.Context, conversationID, sessionID string, msgs []model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversationID != r.conversationID {
		r.conversationID = conversationID
		r.written = 0
	}
	if len(msgs) <= r.written {
		return nil
	}

	if r.written == 0 {
		createdAt := msgs[0].At
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if err := r.archive.EnsureConversation(ctx, conversationID, r.endpoint, createdAt); err != nil {
			return err
		}
	}

	fresh := msgs[r.written:]
	if err := r.archive.AppendMessages(ctx, conversationID, sessionID, r.written, fresh); err != nil {
		return err
	}
	r.written = len(msgs)
	return nil
}

// Observe is a session change listener. Failures are logged, never returned:
// archiving must not disturb the conversation.
func (r *Recorder) Observe(conversationID, sessionID string, msgs []model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Sync(ctx, conversationID, sessionID, msgs); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("could not archive messages")
	}
}

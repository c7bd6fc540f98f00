// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatwidget/internal/model"
)

const testEndpoint = "http://localhost:8787/chat"

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func messagesAt(base time.Time, pairs ...string) []model.Message {
	var msgs []model.Message
	for i := 0; i+1 < len(pairs); i += 2 {
		msg := model.NewMessage(model.Sender(pairs[i]), pairs[i+1])
		msg.At = base.Add(time.Duration(i) * time.Second)
		msgs = append(msgs, msg)
	}
	return msgs
}

// =============================================================================
// ARCHIVE TESTS
// =============================================================================

func TestArchive_SaveAndLoad(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	base := time.Now()

	msgs := messagesAt(base, "bot", "Welcome!", "user", "Hello", "bot", "Hi there")
	msgs[2].Fallback = true

	require.NoError(t, archive.EnsureConversation(ctx, "conv-1", testEndpoint, base))
	require.NoError(t, archive.AppendMessages(ctx, "conv-1", "abc123", 0, msgs))

	conv, err := archive.Load(ctx, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, testEndpoint, conv.Endpoint)
	assert.Equal(t, "abc123", conv.SessionID)
	require.Len(t, conv.Messages, 3)
	for i, msg := range conv.Messages {
		assert.Equal(t, msgs[i].ID, msg.ID)
		assert.Equal(t, msgs[i].Sender, msg.Sender)
		assert.Equal(t, msgs[i].Text, msg.Text)
		assert.True(t, msgs[i].At.Equal(msg.At))
	}
	assert.True(t, conv.Messages[2].Fallback)
	assert.Equal(t, "Hello", conv.Preview())
}

func TestArchive_LoadNotFound(t *testing.T) {
	archive := openTestArchive(t)

	_, err := archive.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestArchive_LoadByPrefix(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, archive.EnsureConversation(ctx, "abcd-1111", testEndpoint, now))
	require.NoError(t, archive.EnsureConversation(ctx, "abcd-2222", testEndpoint, now))
	require.NoError(t, archive.EnsureConversation(ctx, "ffff-3333", testEndpoint, now))

	conv, err := archive.Load(ctx, "ffff")
	require.NoError(t, err)
	assert.Equal(t, "ffff-3333", conv.ID)

	_, err = archive.Load(ctx, "abcd")
	assert.ErrorIs(t, err, ErrAmbiguousID)

	// Wildcards in the prefix are literal.
	_, err = archive.Load(ctx, "%")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestArchive_ListOrderAndLimit(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, archive.EnsureConversation(ctx, id, testEndpoint, at))
		require.NoError(t, archive.AppendMessages(ctx, id, "", 0, messagesAt(at, "user", "question "+id)))
	}

	metas, err := archive.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, "new", metas[0].ID)
	assert.Equal(t, "old", metas[2].ID)
	assert.Equal(t, 1, metas[0].MessageCount)
	assert.Equal(t, "question new", metas[0].Preview)

	metas, err = archive.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestArchive_Search(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, archive.EnsureConversation(ctx, "a", testEndpoint, now))
	require.NoError(t, archive.AppendMessages(ctx, "a", "", 0, messagesAt(now, "user", "Where is City Hall?")))
	require.NoError(t, archive.EnsureConversation(ctx, "b", testEndpoint, now))
	require.NoError(t, archive.AppendMessages(ctx, "b", "", 0, messagesAt(now, "user", "100% sure")))

	metas, err := archive.Search(ctx, "city hall")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "a", metas[0].ID)

	metas, err = archive.Search(ctx, "100%")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "b", metas[0].ID)

	metas, err = archive.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestArchive_DeleteAndClear(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"one", "two"} {
		require.NoError(t, archive.EnsureConversation(ctx, id, testEndpoint, now))
		require.NoError(t, archive.AppendMessages(ctx, id, "", 0, messagesAt(now, "user", "hi")))
	}

	require.NoError(t, archive.Delete(ctx, "one"))
	_, err := archive.Load(ctx, "one")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, archive.Delete(ctx, "one"), ErrConversationNotFound)

	require.NoError(t, archive.Clear(ctx))
	metas, err := archive.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestArchive_UnicodeContent(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	text := "⚠️ Something went wrong. 日本語 テスト 🎉"
	require.NoError(t, archive.EnsureConversation(ctx, "u", testEndpoint, now))
	require.NoError(t, archive.AppendMessages(ctx, "u", "", 0, messagesAt(now, "bot", text)))

	conv, err := archive.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, text, conv.Messages[0].Text)
}

// =============================================================================
// RECORDER TESTS
// =============================================================================

func TestRecorder_AppendsOnlyNewMessages(t *testing.T) {
	archive := openTestArchive(t)
	rec := NewRecorder(archive, testEndpoint)
	ctx := context.Background()

	msgs := messagesAt(time.Now(), "bot", "Welcome!", "user", "Hello", "bot", "Hi there")

	require.NoError(t, rec.Sync(ctx, "conv", "", nil))
	require.NoError(t, rec.Sync(ctx, "conv", "abc123", msgs[:1]))
	require.NoError(t, rec.Sync(ctx, "conv", "abc123", msgs[:2]))
	require.NoError(t, rec.Sync(ctx, "conv", "abc123", msgs[:2]))
	require.NoError(t, rec.Sync(ctx, "conv", "abc123", msgs))

	conv, err := archive.Load(ctx, "conv")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "Hi there", conv.Messages[2].Text)
	assert.Equal(t, "abc123", conv.SessionID)
}

func TestRecorder_NewConversationOnReset(t *testing.T) {
	archive := openTestArchive(t)
	rec := NewRecorder(archive, testEndpoint)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, rec.Sync(ctx, "first", "", messagesAt(now, "bot", "Welcome!")))
	require.NoError(t, rec.Sync(ctx, "second", "", nil))
	require.NoError(t, rec.Sync(ctx, "second", "", messagesAt(now, "bot", "Welcome back!")))

	metas, err := archive.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestRecorder_ObserveSwallowsErrors(t *testing.T) {
	archive := openTestArchive(t)
	rec := NewRecorder(archive, testEndpoint)
	require.NoError(t, archive.Close())

	assert.NotPanics(t, func() {
		rec.Observe("conv", "", messagesAt(time.Now(), "bot", "Welcome!"))
	})
}

// =============================================================================
// FORMATTING TESTS
// =============================================================================

func TestStoredConversation_ExportMarkdown(t *testing.T) {
	conv := &StoredConversation{
		ID:        "conv-1",
		Endpoint:  testEndpoint,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Messages:  messagesAt(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "user", "Hello", "bot", "Hi there"),
	}

	md := conv.ExportMarkdown()
	assert.True(t, strings.HasPrefix(md, "# Conversation conv-1\n"))
	assert.Contains(t, md, "**You** (03:04):\n\nHello")
	assert.Contains(t, md, "**Assistant** (03:04):\n\nHi there")
	assert.Contains(t, md, "Endpoint: "+testEndpoint)
}

func TestStoredConversation_ExportJSON(t *testing.T) {
	conv := &StoredConversation{ID: "conv-1", Messages: messagesAt(time.Now(), "user", "Hello")}

	data, err := conv.ExportJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"from": "user"`)
	assert.Contains(t, string(data), `"text": "Hello"`)
	assert.Equal(t, 1, conv.MessageCount())
}

func TestFormatConversationList(t *testing.T) {
	assert.Equal(t, "No conversations found.", FormatConversationList(nil))

	out := FormatConversationList([]ConversationMeta{{
		ID:           "0123456789abcdef",
		UpdatedAt:    time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC),
		MessageCount: 3,
		Preview:      "Where is the nearest library in Neopolis, please?",
	}})

	assert.Contains(t, out, "0123456789ab ")
	assert.NotContains(t, out, "0123456789abc")
	assert.Contains(t, out, "2025-01-02 03:04")
	assert.Contains(t, out, "...")
}

func TestFormatPadded(t *testing.T) {
	assert.Equal(t, "ab   ", formatPadded("ab", 5))
	assert.Equal(t, "abcdef", formatPadded("abcdef", 3))
	assert.Equal(t, "日本 ", formatPadded("日本", 5))
}

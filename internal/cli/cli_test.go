// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatwidget/internal/devserver"
	"github.com/jeranaias/chatwidget/internal/model"
	"github.com/jeranaias/chatwidget/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{
		"CHATWIDGET_ENDPOINT",
		"CHATWIDGET_TIMEOUT",
		"CHATWIDGET_LOG_LEVEL",
		"CHATWIDGET_HISTORY",
		"CHATWIDGET_MISSING_SESSION_ID",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	ForceColorsEnabled(false)
	return home
}

func startDevServer(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(devserver.New(devserver.Config{}).Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/chat"
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(append([]string{"--log-level", "disabled"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// =============================================================================
// OUTPUT FORMATS
// =============================================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"md", FormatMarkdown, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "", "--help")
	require.NoError(t, err)
	for _, name := range []string{"chat", "ask", "serve", "history", "config"} {
		assert.Contains(t, out, name)
	}
}

// =============================================================================
// ASK
// =============================================================================

func TestAskPrintsReply(t *testing.T) {
	isolate(t)
	endpoint := startDevServer(t)

	out, _, err := run(t, "", "ask", "--endpoint", endpoint, "--no-history", "--raw", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "You said: Hello\n", out)
}

func TestAskReadsStdin(t *testing.T) {
	isolate(t)
	endpoint := startDevServer(t)

	out, _, err := run(t, "  Where is city hall?  \n", "ask", "--endpoint", endpoint, "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "You said: Where is city hall?")
}

func TestAskWithoutQuestionFails(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "   ", "ask", "--no-history")
	assert.Error(t, err)
}

func TestAskJSON(t *testing.T) {
	isolate(t)
	endpoint := startDevServer(t)

	out, _, err := run(t, "", "ask", "--endpoint", endpoint, "--no-history", "--json", "Hello")
	require.NoError(t, err)

	var resp struct {
		Success bool    `json:"success"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Hello", resp.Data.Query)
	assert.Equal(t, "You said: Hello", resp.Data.Response)
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.False(t, resp.Data.Fallback)
}

func TestAskFailureShowsFallback(t *testing.T) {
	isolate(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	out, _, err := run(t, "", "ask", "--endpoint", ts.URL, "--no-history", "Hello")
	assert.Error(t, err)
	assert.Contains(t, out, model.FallbackText)
}

// =============================================================================
// PLAIN CHAT
// =============================================================================

func TestPlainChatSession(t *testing.T) {
	isolate(t)
	endpoint := startDevServer(t)

	out, _, err := run(t, "Hello\n\n/session\n/quit\nnever sent\n",
		"chat", "--plain", "--endpoint", endpoint, "--no-history")
	require.NoError(t, err)

	assert.Contains(t, out, devserver.DefaultGreeting)
	assert.Contains(t, out, "You said: Hello")
	assert.NotContains(t, out, "(none)")
	assert.NotContains(t, out, "never sent")
}

func TestPlainCommandName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/quit", "quit", true},
		{"/EXIT", "quit", true},
		{"/new", "reset", true},
		{"/session", "session", true},
		{"/?", "help", true},
		{"quit", "", false},
		{"exit", "", false},
		{"/weather today", "", false},
		{"/unknown", "", false},
	}
	for _, tt := range tests {
		got, ok := plainCommandName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPlainChatSendsCommandLikeText(t *testing.T) {
	isolate(t)
	endpoint := startDevServer(t)

	out, _, err := run(t, "exit\n/weather today\n/session\n/quit\n",
		"chat", "--plain", "--endpoint", endpoint, "--no-history")
	require.NoError(t, err)

	assert.Contains(t, out, "You said: exit")
	assert.Contains(t, out, "You said: /weather today")
	assert.Contains(t, out, "Conversation:")
}

func TestPlainChatArchivesHistory(t *testing.T) {
	home := isolate(t)
	endpoint := startDevServer(t)

	_, _, err := run(t, "Hello\n", "chat", "--plain", "--endpoint", endpoint)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".chatwidget", "history.db"))

	out, _, err := run(t, "", "history", "list", "-o", "json")
	require.NoError(t, err)

	var metas []storage.ConversationMeta
	require.NoError(t, json.Unmarshal([]byte(out), &metas))
	require.Len(t, metas, 1)
	assert.Equal(t, 3, metas[0].MessageCount)
	assert.Equal(t, "Hello", metas[0].Preview)

	out, _, err = run(t, "", "history", "show", metas[0].ID[:8], "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "You said: Hello")

	out, _, err = run(t, "", "history", "search", "said", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, metas[0].ID)

	_, _, err = run(t, "", "history", "clear")
	assert.Error(t, err, "clear requires --confirm")

	_, _, err = run(t, "", "history", "clear", "--confirm")
	require.NoError(t, err)
	out, _, err = run(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations found.")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigInitSetGet(t *testing.T) {
	home := isolate(t)

	out, _, err := run(t, "", "config", "path")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(home, ".chatwidget", "config.toml"), path)

	_, _, err = run(t, "", "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, _, err = run(t, "", "config", "init")
	assert.Error(t, err, "init refuses to overwrite")

	_, _, err = run(t, "", "config", "set", "ui.narrow_width", "50")
	require.NoError(t, err)

	out, _, err = run(t, "", "config", "get", "ui.narrow_width")
	require.NoError(t, err)
	assert.Equal(t, "50", strings.TrimSpace(out))
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "", "config", "set", "session.missing_id", "sometimes")
	assert.Error(t, err)
}

func TestConfigShowFormats(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "config", "show", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "narrow_width: 60")

	out, _, err = run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "narrow_width = 60")

	out, _, err = run(t, "", "--endpoint", "http://127.0.0.1:9/chat", "config", "show", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"url": "http://127.0.0.1:9/chat"`)
}

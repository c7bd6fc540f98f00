// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatwidget/internal/exchange"
	"github.com/jeranaias/chatwidget/internal/model"
)

var (
	// ErrBusy is returned when a turn is begun while another is in flight.
	ErrBusy = errors.New("an exchange is already in flight")

	// ErrClosed is returned once the client has been closed.
	ErrClosed = errors.New("session client is closed")
)

// Exchanger performs one request/response round trip with the endpoint.
type Exchanger interface {
	Exchange(ctx context.Context, req exchange.Request) (*exchange.Response, error)
}

// MissingIDPolicy decides what happens to the stored session id when a
// successful response carries no session_id field.
type MissingIDPolicy string

const (
	// MissingIDReset stores "" (no session yet).
	MissingIDReset MissingIDPolicy = "reset"
	// MissingIDKeep retains the previously stored id.
	MissingIDKeep MissingIDPolicy = "keep"
)

// Valid reports whether p is a known policy.
func (p MissingIDPolicy) Valid() bool {
	return p == MissingIDReset || p == MissingIDKeep
}

// Options configures a Client.
type Options struct {
	// MissingID applies to both the greeting and message exchanges.
	// Defaults to MissingIDReset.
	MissingID MissingIDPolicy

	// OnChange, if set, is called after every state change with a snapshot.
	// It runs on the goroutine that caused the change, outside the lock.
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of the client state.
type Snapshot struct {
	// ConversationID changes on Reset.
	ConversationID string
	Messages       []model.Message
	SessionID      string
	Pending        bool
}

// Client is the session client. The zero value is not usable; call New.
type Client struct {
	mu sync.Mutex

	transport Exchanger
	policy    MissingIDPolicy
	onChange  func(Snapshot)

	conv       *model.Conversation
	sessionID  string
	pending    bool
	generation uint64
	cancel     context.CancelFunc
	closed     bool
}

// New creates a client that sends exchanges through transport.
func New(transport Exchanger, opts Options) *Client {
	policy := opts.MissingID
	if !policy.Valid() {
		policy = MissingIDReset
	}
	return &Client{
		transport: transport,
		policy:    policy,
		onChange:  opts.OnChange,
		conv:      model.NewConversation(),
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// InitializeSession sends the empty greeting query with the current session
// id and appends the reply. Only ErrBusy and ErrClosed are returned; exchange
// failures show up as the fallback message and in Outcome.Err.
func (c *Client) InitializeSession(ctx context.Context) (Outcome, error) {
	turn, err := c.BeginGreeting()
	if err != nil {
		return Outcome{}, err
	}
	return turn.Run(ctx), nil
}

// SendMessage appends text as a user message, sends it and appends the reply.
// Blank or whitespace-only text is a no-op: Outcome.Skipped is set, nothing
// is appended and no request is issued.
func (c *Client) SendMessage(ctx context.Context, text string) (Outcome, error) {
	turn, err := c.BeginMessage(text)
	if err != nil {
		return Outcome{}, err
	}
	return turn.Run(ctx), nil
}

// BeginGreeting marks the client pending and snapshots the greeting request.
func (c *Client) BeginGreeting() (*Turn, error) {
	return c.begin(turnGreeting, "")
}

// BeginMessage trims text and, unless it is blank, appends the user message
// and marks the client pending before any network activity.
func (c *Client) BeginMessage(text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Turn{skipped: true}, nil
	}
	return c.begin(turnMessage, text)
}

func (c *Client) begin(kind turnKind, text string) (*Turn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.pending {
		c.mu.Unlock()
		log.Debug().Str("turn", kind.String()).Msg("rejected turn while exchange in flight")
		return nil, ErrBusy
	}

	if kind == turnMessage {
		c.conv.Append(model.NewUserMessage(text))
	}
	c.pending = true

	turn := &Turn{
		client:     c,
		kind:       kind,
		generation: c.generation,
		req: exchange.Request{
			Query:     text,
			SessionID: c.sessionID,
		},
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return turn, nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Reset drops the conversation and session id, as a full reload would.
// An in-flight exchange is cancelled and its late reply discarded.
func (c *Client) Reset() {
	c.mu.Lock()
	c.invalidateLocked()
	c.conv = model.NewConversation()
	c.sessionID = ""
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Close cancels any in-flight exchange and rejects further turns.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
	c.closed = true
}

func (c *Client) invalidateLocked() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.pending = false
}

// =============================================================================
// ACCESSORS
// =============================================================================

// SessionID returns the stored session id ("" before the first session).
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Pending reports whether an exchange is in flight.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Messages returns a copy of the conversation in display order.
func (c *Client) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Snapshot()
}

// ConversationID returns the local id of the current conversation.
func (c *Client) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.ID()
}

// Snapshot returns messages, session id and pending flag taken together.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() Snapshot {
	return Snapshot{
		ConversationID: c.conv.ID(),
		Messages:       c.conv.Snapshot(),
		SessionID:      c.sessionID,
		Pending:        c.pending,
	}
}

func (c *Client) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}

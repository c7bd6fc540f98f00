// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatwidget/internal/exchange"
	"github.com/jeranaias/chatwidget/internal/model"
)

type turnKind int

const (
	turnGreeting turnKind = iota
	turnMessage
)

func (k turnKind) String() string {
	if k == turnGreeting {
		return "greeting"
	}
	return "message"
}

// Outcome describes how a turn settled.
type Outcome struct {
	// Skipped is set for blank input; nothing was appended or sent.
	Skipped bool

	// Stale is set when the client was reset or closed while the exchange was
	// in flight; the reply was discarded.
	Stale bool

	// Reply is the bot message appended by this turn: the endpoint's text, or
	// the fallback message when Err is set.
	Reply model.Message

	// Err is the swallowed transport error, nil on success.
	Err error

	// Kind classifies Err when the transport tagged it.
	Kind exchange.Kind

	// SessionID is the stored session id after the turn settled.
	SessionID string
}

// Failed reports whether the exchange failed and the fallback was shown.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Turn is one begun exchange. Run it exactly once; later calls return the
// first outcome.
type Turn struct {
	client     *Client
	kind       turnKind
	req        exchange.Request
	generation uint64
	skipped    bool

	once    sync.Once
	outcome Outcome
}

// Skipped reports whether the turn was a blank-input no-op.
func (t *Turn) Skipped() bool {
	return t.skipped
}

// Run performs the exchange and settles the turn. The pending flag is cleared
// on every exit path, including a panicking transport.
func (t *Turn) Run(ctx context.Context) Outcome {
	if t.skipped {
		return Outcome{Skipped: true}
	}
	t.once.Do(func() {
		t.outcome = t.run(ctx)
	})
	return t.outcome
}

func (t *Turn) run(ctx context.Context) Outcome {
	c := t.client

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if t.generation != c.generation {
		c.mu.Unlock()
		return Outcome{Stale: true}
	}
	c.cancel = cancel
	c.mu.Unlock()

	settled := false
	defer func() {
		if !settled {
			c.abandon(t)
		}
	}()

	resp, err := c.transport.Exchange(ctx, t.req)
	out := c.settle(t, resp, err)
	settled = true
	return out
}

// settle applies the result of a turn, unless the turn has gone stale.
func (c *Client) settle(t *Turn, resp *exchange.Response, err error) Outcome {
	if err == nil && resp == nil {
		err = &exchange.Error{Kind: exchange.KindParse, Err: errors.New("transport returned no response")}
	}

	out, snap, ok := c.applyLocked(t, resp, err)
	if !ok {
		log.Debug().Str("turn", t.kind.String()).Msg("discarded stale exchange result")
		return out
	}
	if out.Err != nil {
		log.Warn().
			Err(out.Err).
			Str("turn", t.kind.String()).
			Str("kind", out.Kind.String()).
			Msg("exchange failed; showing fallback")
	}

	c.notify(snap)
	return out
}

// applyLocked records the reply under the lock. ok is false for a stale turn.
func (c *Client) applyLocked(t *Turn, resp *exchange.Response, err error) (out Outcome, snap Snapshot, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.generation != c.generation {
		return Outcome{Stale: true, Err: err}, Snapshot{}, false
	}

	out.Err = err
	if err != nil {
		out.Reply = model.NewFallbackMessage()
		if kind, found := exchange.KindOf(err); found {
			out.Kind = kind
		}
	} else {
		out.Reply = model.NewBotMessage(resp.Response)
		c.applySessionIDLocked(resp)
	}
	c.conv.Append(out.Reply)
	c.pending = false
	c.cancel = nil
	out.SessionID = c.sessionID
	return out, c.snapshotLocked(), true
}

// abandon clears the pending flag for a turn that never reached settle.
func (c *Client) abandon(t *Turn) {
	c.mu.Lock()
	if t.generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.cancel = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Client) applySessionIDLocked(resp *exchange.Response) {
	if resp.HasSessionID() {
		c.sessionID = resp.SessionIDOrEmpty()
		return
	}
	if c.policy == MissingIDReset {
		c.sessionID = ""
	}
}

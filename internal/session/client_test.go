// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatwidget/internal/exchange"
	"github.com/jeranaias/chatwidget/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeExchanger records requests and answers from a queue of scripted replies.
type fakeExchanger struct {
	mu       sync.Mutex
	requests []exchange.Request
	replies  []fakeReply

	// block, if set, is waited on (or ctx) before answering.
	block chan struct{}
	// started is closed-over signal that Exchange has been entered.
	started chan struct{}
}

type fakeReply struct {
	resp *exchange.Response
	err  error
}

func reply(text string, sessionID *string) fakeReply {
	return fakeReply{resp: &exchange.Response{Response: text, SessionID: sessionID}}
}

func failure(err error) fakeReply {
	return fakeReply{err: err}
}

func strPtr(s string) *string { return &s }

func (f *fakeExchanger) Exchange(ctx context.Context, req exchange.Request) (*exchange.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var r fakeReply
	if len(f.replies) > 0 {
		r = f.replies[0]
		f.replies = f.replies[1:]
	} else {
		r = reply("ok", nil)
	}
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &exchange.Error{Kind: exchange.KindNetwork, Err: ctx.Err()}
		}
	}
	return r.resp, r.err
}

func (f *fakeExchanger) Requests() []exchange.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exchange.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestClient(replies ...fakeReply) (*Client, *fakeExchanger) {
	fake := &fakeExchanger{replies: replies}
	return New(fake, Options{}), fake
}

func senders(msgs []model.Message) []model.Sender {
	out := make([]model.Sender, len(msgs))
	for i, m := range msgs {
		out[i] = m.Sender
	}
	return out
}

// =============================================================================
// GREETING TESTS
// =============================================================================

func TestInitializeSession_Welcome(t *testing.T) {
	client, fake := newTestClient(reply("Welcome!", strPtr("abc123")))

	out, err := client.InitializeSession(context.Background())
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, exchange.Request{Query: "", SessionID: ""}, reqs[0])

	msgs := client.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderBot, msgs[0].Sender)
	assert.Equal(t, "Welcome!", msgs[0].Text)
	assert.Equal(t, "abc123", client.SessionID())
	assert.False(t, client.Pending())

	assert.False(t, out.Failed())
	assert.Equal(t, "Welcome!", out.Reply.Text)
	assert.Equal(t, "abc123", out.SessionID)
}

func TestInitializeSession_AbsentSessionIDStoresEmpty(t *testing.T) {
	client, _ := newTestClient(reply("Hello there", nil))

	_, err := client.InitializeSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", client.SessionID())
}

func TestInitializeSession_Failure(t *testing.T) {
	client, _ := newTestClient(failure(&exchange.Error{Kind: exchange.KindNetwork, Err: errors.New("dial tcp: refused")}))

	out, err := client.InitializeSession(context.Background())
	require.NoError(t, err, "exchange failures never propagate")

	msgs := client.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderBot, msgs[0].Sender)
	assert.Equal(t, model.FallbackText, msgs[0].Text)
	assert.True(t, msgs[0].Fallback)
	assert.Equal(t, "", client.SessionID())
	assert.False(t, client.Pending())

	assert.True(t, out.Failed())
	assert.Equal(t, exchange.KindNetwork, out.Kind)
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSendMessage_HelloHiThere(t *testing.T) {
	client, fake := newTestClient(
		reply("Welcome!", strPtr("abc123")),
		reply("Hi there", strPtr("abc123")),
	)
	ctx := context.Background()

	_, err := client.InitializeSession(ctx)
	require.NoError(t, err)
	out, err := client.SendMessage(ctx, "Hello")
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, exchange.Request{Query: "Hello", SessionID: "abc123"}, reqs[1])

	msgs := client.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []model.Sender{model.SenderBot, model.SenderUser, model.SenderBot}, senders(msgs))
	assert.Equal(t, "Hello", msgs[1].Text)
	assert.Equal(t, "Hi there", msgs[2].Text)
	assert.Equal(t, "abc123", client.SessionID())
	assert.Equal(t, "Hi there", out.Reply.Text)
}

func TestSendMessage_TrimsText(t *testing.T) {
	client, fake := newTestClient()

	_, err := client.SendMessage(context.Background(), "  Hello \n")
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Hello", reqs[0].Query)
	assert.Equal(t, "Hello", client.Messages()[0].Text)
}

func TestSendMessage_BlankIsNoOp(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tabs and newlines", "\t\n \r\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, fake := newTestClient()

			out, err := client.SendMessage(context.Background(), tc.text)
			require.NoError(t, err)
			assert.True(t, out.Skipped)
			assert.Empty(t, fake.Requests())
			assert.Empty(t, client.Messages())
			assert.False(t, client.Pending())
		})
	}
}

func TestSendMessage_Failure(t *testing.T) {
	client, _ := newTestClient(
		reply("Welcome!", strPtr("abc123")),
		failure(&exchange.Error{Kind: exchange.KindServer, Status: 502}),
	)
	ctx := context.Background()

	_, _ = client.InitializeSession(ctx)
	out, err := client.SendMessage(ctx, "Hello")
	require.NoError(t, err)

	msgs := client.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.SenderUser, msgs[1].Sender)
	assert.Equal(t, "Hello", msgs[1].Text)
	assert.Equal(t, model.FallbackText, msgs[2].Text)
	assert.Equal(t, "abc123", client.SessionID(), "session id unchanged on failure")
	assert.False(t, client.Pending())
	assert.Equal(t, exchange.KindServer, out.Kind)
}

func TestSendMessage_UntaggedErrorStillFallsBack(t *testing.T) {
	client, _ := newTestClient(failure(errors.New("boom")))

	out, err := client.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	assert.True(t, out.Failed())
	assert.Equal(t, exchange.Kind(0), out.Kind)
	assert.Equal(t, model.FallbackText, client.Messages()[1].Text)
}

func TestSendMessage_SessionContinuity(t *testing.T) {
	client, fake := newTestClient(
		reply("Welcome!", strPtr("s1")),
		reply("one", strPtr("s2")),
		reply("two", strPtr("s3")),
	)
	ctx := context.Background()

	_, _ = client.InitializeSession(ctx)
	_, _ = client.SendMessage(ctx, "first")
	_, _ = client.SendMessage(ctx, "second")

	reqs := fake.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "", reqs[0].SessionID)
	assert.Equal(t, "s1", reqs[1].SessionID)
	assert.Equal(t, "s2", reqs[2].SessionID)
	assert.Equal(t, "s3", client.SessionID())
}

func TestSendMessage_OneUserAndOneBotPerSend(t *testing.T) {
	client, _ := newTestClient(
		reply("a", nil),
		failure(errors.New("down")),
		reply("c", nil),
	)
	ctx := context.Background()

	for i, text := range []string{"x", "y", "z"} {
		before := len(client.Messages())
		_, err := client.SendMessage(ctx, text)
		require.NoError(t, err)

		msgs := client.Messages()
		require.Len(t, msgs, before+2, "send %d", i)
		assert.Equal(t, model.SenderUser, msgs[before].Sender)
		assert.Equal(t, model.SenderBot, msgs[before+1].Sender)
	}
}

// =============================================================================
// MISSING SESSION ID POLICY TESTS
// =============================================================================

func TestMissingIDPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy MissingIDPolicy
		want   string
	}{
		{"reset clears", MissingIDReset, ""},
		{"keep retains", MissingIDKeep, "abc123"},
		{"invalid defaults to reset", MissingIDPolicy("bogus"), ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeExchanger{replies: []fakeReply{
				reply("Welcome!", strPtr("abc123")),
				reply("no id", nil),
			}}
			client := New(fake, Options{MissingID: tc.policy})
			ctx := context.Background()

			_, _ = client.InitializeSession(ctx)
			_, _ = client.SendMessage(ctx, "Hello")
			assert.Equal(t, tc.want, client.SessionID())
		})
	}
}

func TestMissingIDPolicy_PresentEmptyAlwaysStored(t *testing.T) {
	fake := &fakeExchanger{replies: []fakeReply{
		reply("Welcome!", strPtr("abc123")),
		reply("cleared", strPtr("")),
	}}
	client := New(fake, Options{MissingID: MissingIDKeep})
	ctx := context.Background()

	_, _ = client.InitializeSession(ctx)
	_, _ = client.SendMessage(ctx, "Hello")
	assert.Equal(t, "", client.SessionID())
}

// =============================================================================
// PENDING / SINGLE-FLIGHT TESTS
// =============================================================================

func TestPending_TrueOnlyWhileInFlight(t *testing.T) {
	fake := &fakeExchanger{
		replies: []fakeReply{reply("Hi there", nil)},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	client := New(fake, Options{})
	assert.False(t, client.Pending())

	turn, err := client.BeginMessage("Hello")
	require.NoError(t, err)

	// The user message is visible before the round trip.
	assert.True(t, client.Pending())
	msgs := client.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text)

	done := make(chan Outcome, 1)
	go func() { done <- turn.Run(context.Background()) }()

	<-fake.started
	assert.True(t, client.Pending())

	close(fake.block)
	out := <-done
	assert.False(t, client.Pending())
	assert.Equal(t, "Hi there", out.Reply.Text)
}

func TestBegin_BusyWhilePending(t *testing.T) {
	fake := &fakeExchanger{block: make(chan struct{})}
	client := New(fake, Options{})

	turn, err := client.BeginMessage("first")
	require.NoError(t, err)

	_, err = client.BeginMessage("second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = client.BeginGreeting()
	assert.ErrorIs(t, err, ErrBusy)
	_, err = client.SendMessage(context.Background(), "third")
	assert.ErrorIs(t, err, ErrBusy)

	// Rejected sends append nothing.
	assert.Len(t, client.Messages(), 1)

	close(fake.block)
	turn.Run(context.Background())
	assert.Len(t, client.Messages(), 2)

	_, err = client.SendMessage(context.Background(), "fourth")
	assert.NoError(t, err)
}

func TestBegin_BlankDoesNotConflictWithPending(t *testing.T) {
	fake := &fakeExchanger{block: make(chan struct{})}
	client := New(fake, Options{})

	_, err := client.BeginMessage("first")
	require.NoError(t, err)

	turn, err := client.BeginMessage("   ")
	require.NoError(t, err)
	assert.True(t, turn.Skipped())
	assert.True(t, turn.Run(context.Background()).Skipped)
	close(fake.block)
}

type panicExchanger struct{}

func (panicExchanger) Exchange(context.Context, exchange.Request) (*exchange.Response, error) {
	panic("transport exploded")
}

func TestPending_ClearedWhenTransportPanics(t *testing.T) {
	client := New(panicExchanger{}, Options{})

	turn, err := client.BeginMessage("Hello")
	require.NoError(t, err)
	assert.Panics(t, func() { turn.Run(context.Background()) })
	assert.False(t, client.Pending())

	// The client stays usable.
	_, err = client.BeginMessage("again")
	assert.NoError(t, err)
}

type emptyExchanger struct{}

func (emptyExchanger) Exchange(context.Context, exchange.Request) (*exchange.Response, error) {
	return nil, nil
}

func TestSendMessage_NilResponseShowsFallback(t *testing.T) {
	client := New(emptyExchanger{}, Options{})

	done := make(chan Outcome, 1)
	go func() {
		out, _ := client.SendMessage(context.Background(), "Hello")
		done <- out
	}()

	select {
	case out := <-done:
		assert.True(t, out.Failed())
		assert.Equal(t, exchange.KindParse, out.Kind)
		assert.Equal(t, model.FallbackText, out.Reply.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage did not settle")
	}
	assert.False(t, client.Pending())

	msgs := client.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Fallback)
}

func TestTurn_RunIsIdempotent(t *testing.T) {
	client, fake := newTestClient(reply("once", nil))

	turn, err := client.BeginMessage("Hello")
	require.NoError(t, err)
	first := turn.Run(context.Background())
	second := turn.Run(context.Background())

	assert.Equal(t, first.Reply.ID, second.Reply.ID)
	assert.Len(t, fake.Requests(), 1)
	assert.Len(t, client.Messages(), 2)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestReset_DiscardsStaleReply(t *testing.T) {
	fake := &fakeExchanger{
		replies: []fakeReply{reply("late", strPtr("old"))},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	client := New(fake, Options{})

	turn, err := client.BeginMessage("Hello")
	require.NoError(t, err)

	done := make(chan Outcome, 1)
	go func() { done <- turn.Run(context.Background()) }()
	<-fake.started

	client.Reset()
	out := <-done

	assert.True(t, out.Stale)
	assert.Empty(t, client.Messages())
	assert.Equal(t, "", client.SessionID())
	assert.False(t, client.Pending())
}

func TestReset_AllowsNewTurn(t *testing.T) {
	fake := &fakeExchanger{block: make(chan struct{})}
	client := New(fake, Options{})

	stale, err := client.BeginMessage("Hello")
	require.NoError(t, err)
	client.Reset()

	fake.mu.Lock()
	fake.block = nil
	fake.mu.Unlock()

	_, err = client.SendMessage(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Len(t, client.Messages(), 2)

	// Running the older turn after the reset touches nothing.
	out := stale.Run(context.Background())
	assert.True(t, out.Stale)
	assert.Len(t, client.Messages(), 2)
	assert.Len(t, fake.Requests(), 1)
}

func TestClose_RejectsFurtherTurns(t *testing.T) {
	client, _ := newTestClient()
	client.Close()

	_, err := client.BeginGreeting()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = client.SendMessage(context.Background(), "Hello")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_CancelsInFlight(t *testing.T) {
	fake := &fakeExchanger{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	client := New(fake, Options{})

	turn, err := client.BeginGreeting()
	require.NoError(t, err)

	done := make(chan Outcome, 1)
	go func() { done <- turn.Run(context.Background()) }()
	<-fake.started

	client.Close()
	select {
	case out := <-done:
		assert.True(t, out.Stale)
		assert.True(t, out.Failed())
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight exchange was not cancelled")
	}
	assert.Empty(t, client.Messages())
}

// =============================================================================
// OBSERVATION TESTS
// =============================================================================

func TestOnChange_ReportsEachMutation(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot
	fake := &fakeExchanger{replies: []fakeReply{reply("Hi there", strPtr("abc123"))}}
	client := New(fake, Options{OnChange: func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, s)
	}})

	_, err := client.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 2)

	assert.True(t, snaps[0].Pending)
	assert.Len(t, snaps[0].Messages, 1)

	assert.False(t, snaps[1].Pending)
	assert.Len(t, snaps[1].Messages, 2)
	assert.Equal(t, "abc123", snaps[1].SessionID)
}

func TestSnapshot_IsACopy(t *testing.T) {
	client, _ := newTestClient(reply("Welcome!", nil))
	_, _ = client.InitializeSession(context.Background())

	snap := client.Snapshot()
	snap.Messages[0].Text = "mutated"
	assert.Equal(t, "Welcome!", client.Messages()[0].Text)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the chat widget's session client.
//
// The client owns three pieces of state: the conversation shown in the panel,
// the opaque session id issued by the endpoint, and the pending flag that is
// true exactly while one exchange is in flight. Every exchange failure is
// turned into the fixed fallback bot message and never escapes the client.
//
// # Key Types
//
//   - Client: session state plus the two operations (greeting and message)
//   - Turn: one begun exchange; Run performs the round trip and settles it
//   - Outcome: what happened to a turn (reply, failure kind, skipped, stale)
//   - Exchanger: the transport, satisfied by *exchange.Client
//
// # Usage
//
// Blocking callers use the one-shot operations:
//
//	client := session.New(exchange.NewClient(url), session.Options{})
//	client.InitializeSession(ctx)
//	out, err := client.SendMessage(ctx, "Hello")
//
// Event-loop hosts split the work so the optimistic user message is visible
// before the network round trip:
//
//	turn, err := client.BeginMessage(text) // appends user message, sets pending
//	go func() { turn.Run(ctx) }()           // appends reply or fallback, clears pending
//
// # Concurrency
//
// At most one exchange is in flight: Begin* returns ErrBusy while pending.
// Reset and Close bump a generation counter and cancel the in-flight request;
// a turn from an older generation settles without touching state.
package session

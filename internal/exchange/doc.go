// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange implements the HTTP transport for the conversational
// endpoint behind the chat widget.
//
// One exchange is one POST of {"query", "session_id"} answered by
// {"response", "session_id"?}. The client never retries and never backs off;
// failures come back as *Error tagged with a Kind so callers can tell a dead
// network from a bad status or an unreadable body.
//
// # Key Types
//
//   - Client: JSON-over-HTTP client for the /chat endpoint
//   - Request, Response: wire payloads
//   - Error, Kind: tagged failure (network, server status, parse)
//
// # Usage
//
//	client := exchange.NewClient(exchange.DefaultEndpoint)
//	resp, err := client.Exchange(ctx, exchange.Request{Query: "Hello", SessionID: id})
//	if kind, ok := exchange.KindOf(err); ok && kind == exchange.KindServer {
//	    // endpoint reachable but unhappy
//	}
package exchange

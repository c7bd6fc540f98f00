// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devserver provides a local stand-in for the chat endpoint.
//
// It speaks the same contract as the production service so the widget can be
// developed and tested offline:
//
//   - POST /chat   - {"query", "session_id"} -> {"response", "session_id"}
//   - GET  /health - liveness and session count
//
// An empty query is answered with the configured greeting; any other query
// is echoed back. Unknown or empty session ids are replaced with a fresh
// uuid, so every reply carries a session_id.
//
// # Usage
//
//	srv := devserver.New(devserver.Config{Addr: "127.0.0.1:8787"})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package devserver

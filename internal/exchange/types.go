// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeranaias/chatwidget/internal/util"
)

// Request is the body sent to the endpoint.
type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// Response is the body returned by the endpoint. SessionID is a pointer so an
// absent field can be told apart from an empty one.
type Response struct {
	Response  string  `json:"response"`
	SessionID *string `json:"session_id,omitempty"`
}

// HasSessionID reports whether the endpoint returned a session id field.
func (r *Response) HasSessionID() bool {
	return r != nil && r.SessionID != nil
}

// SessionIDOrEmpty returns the returned session id, or "" when absent.
func (r *Response) SessionIDOrEmpty() string {
	if !r.HasSessionID() {
		return ""
	}
	return *r.SessionID
}

// wireResponse is decoded first so a missing "response" field is detectable.
type wireResponse struct {
	Response  *string `json:"response"`
	SessionID *string `json:"session_id"`
}

// =============================================================================
// TAGGED ERRORS
// =============================================================================

// Kind classifies why an exchange failed.
type Kind int

const (
	// KindNetwork: the request never produced an HTTP response (DNS, refused,
	// reset, timeout, cancelled).
	KindNetwork Kind = iota + 1
	// KindServer: the endpoint answered with a non-2xx status.
	KindServer
	// KindParse: the body could not be read or decoded into a Response.
	KindParse
)

// String returns the lowercase name of the kind, used as a log field.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is returned by Client.Exchange for every failure.
type Error struct {
	Kind   Kind
	Status int // HTTP status, set for KindServer
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("exchange failed (%s, HTTP %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("exchange failed (%s): %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, if err wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Kind, true
	}
	return 0, false
}

func networkError(err error) error {
	return &Error{Kind: KindNetwork, Err: err}
}

func serverError(status int, body []byte) error {
	msg := util.TruncateRunes(string(body), 200)
	return &Error{Kind: KindServer, Status: status, Err: errors.Errorf("unexpected status: %s", msg)}
}

func parseError(err error) error {
	return &Error{Kind: KindParse, Err: err}
}

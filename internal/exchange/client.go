// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEndpoint is the production conversational endpoint.
	DefaultEndpoint = "https://chat.msnone-neopolis.com/chat"

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 1 * 1024 * 1024

	userAgent = "chatwidget/0.1.0"
)

// sharedHTTPClient pools connections across exchanges. It has no timeout of
// its own; deadlines come from the context or Client.WithTimeout.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// Client performs exchanges against a single endpoint URL.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// NewClient creates a client for endpoint. An empty endpoint selects
// DefaultEndpoint.
func NewClient(endpoint string) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: sharedHTTPClient,
		userAgent:  userAgent,
	}
}

// WithTimeout bounds each exchange. Zero means no client-side timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// Endpoint returns the URL exchanges are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Timeout returns the per-exchange timeout (0 = none).
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Exchange posts req and decodes the reply. Every failure is an *Error.
func (c *Client) Exchange(ctx context.Context, req Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		// A Request of two strings always marshals; keep the tag anyway.
		return nil, parseError(errors.Wrap(err, "marshal request"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, networkError(errors.Wrap(err, "create request"))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	// Query text is never logged.
	start := time.Now()
	log.Debug().
		Str("endpoint", c.endpoint).
		Bool("has_session", req.SessionID != "").
		Msg("exchange request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(errors.Wrap(err, "request failed"))
	}
	defer resp.Body.Close()

	data, err := readBody(resp.Body)
	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(data)).
		Msg("exchange response")
	if err != nil {
		return nil, parseError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp.StatusCode, data)
	}

	return decodeResponse(data)
}

// readBody reads at most MaxResponseSize bytes and rejects anything larger.
func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if len(data) > MaxResponseSize {
		return nil, errors.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

func decodeResponse(data []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, parseError(errors.Wrap(err, "decode response"))
	}
	if wire.Response == nil {
		return nil, parseError(errors.New(`response body has no "response" field`))
	}
	return &Response{
		Response:  *wire.Response,
		SessionID: wire.SessionID,
	}, nil
}

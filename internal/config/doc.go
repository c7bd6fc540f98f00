// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatwidget.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - EndpointConfig: Chat endpoint URL and request timeout
//   - SessionConfig: Session id handling
//   - UIConfig: Widget chrome, breakpoints and rendering
//   - HistoryConfig: Transcript archive location
//   - ServerConfig: Local development endpoint
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CHATWIDGET_*), including values from .env files
//   - ~/.chatwidget/config.toml
//   - ~/.chatwidget/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
// Access settings:
//
//	url := cfg.Endpoint.URL
//	timeout := cfg.Endpoint.Timeout()
package config

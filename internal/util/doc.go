// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat widget packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync (config save)
//   - TruncateRunes: UTF-8 safe truncation with ellipsis (history listings)
//   - TruncateWidth: terminal-cell aware truncation (panel header)
//
// # Usage
//
//	title := util.TruncateWidth(cfg.UI.Title, panelWidth-4)
//	err := util.AtomicWriteFile(path, data, 0600)
package util

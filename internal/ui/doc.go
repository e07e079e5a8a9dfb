// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui renders the chat interface.
//
// The package is a thin adapter: key events translate into Store and
// Controller calls, and the view renders whatever the Store holds.
// Business rules live in internal/turn and internal/chat; nothing here
// mutates chat state directly.
package ui

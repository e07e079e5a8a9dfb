// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the in-memory collection of conversations.
//
// The Store is the single source of truth for conversation and message
// state within a running session. It knows nothing about the network or
// the terminal; it is mutated only by the turn controller and by explicit
// user actions (rename, delete, clear, edit).
//
// # Key Types
//
//   - Store: conversation list (most-recent-first) plus the current
//     conversation pointer
//
// # Invariants
//
//   - once initialized the store always contains at least one conversation
//   - at most one conversation is current at a time
//   - message order within a conversation is append order, never reordered
package chat

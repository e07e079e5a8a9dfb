// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides best-effort local persistence for chat state.
//
// The server is the durable store for conversation existence; this
// adapter only improves continuity across restarts. Save failures are
// logged and swallowed, load failures degrade to "start fresh"; loss of
// this data is never treated as an error.
//
// Layout under the data directory mirrors the web client's localStorage
// keys: a serialized conversation array, the current-conversation id,
// and the encoded model/provider selection string.
package storage

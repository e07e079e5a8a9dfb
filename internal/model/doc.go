// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: one chat thread; its ID doubles as the server-side
//     session key and never changes for the thread's lifetime
//   - Message: single message with role, content, timestamp, and optional
//     attachment/provider metadata
//   - Role: message role enumeration (user, assistant, system)
//
// # Usage
//
// Create a new conversation and append a message:
//
//	conv := model.NewConversation()
//	conv.AddMessage(model.NewUserMessage("Hello!"))
//
// A system-role message is client-surfaced error or status text shown in
// the chat timeline; it is never sent to the server as history.
package model

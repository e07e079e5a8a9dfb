// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the Premium Chat backend.
//
// The client owns no state: it translates the handful of operations the
// core needs (create/clear/delete/rename session, send a chat turn,
// generate an image) into JSON calls against the backend's REST surface.
//
// Cancellation is context-based. A context cancelled before a response
// arrives surfaces as the distinguished ErrCancelled, never as a generic
// connection error, so the turn controller can tell a user pause apart
// from a network outage.
//
// # Usage
//
//	client := api.NewClient()
//	result, err := client.SendTurn(ctx, api.TurnRequest{
//	    Message:        "hello",
//	    SessionID:      conv.ID,
//	    IncludeHistory: true,
//	    MaxHistory:     50,
//	})
package api

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn drives the message-send/pause/continue lifecycle.
//
// The Controller is the state machine governing one conversation turn:
// dispatch, in-flight tracking, pause (cancel) and resume (continue),
// success/failure resolution and provider fallback bookkeeping. It is the
// only place in the client where concurrency and cancellation matter.
//
// # States
//
//	Idle → Sending → (Completed | Failed | Cancelled)
//
// Completed and Failed return to Idle unconditionally. Cancelled becomes
// Paused: an empty assistant placeholder marks the suspended turn and no
// request is in flight. Paused returns to Sending on resume.
//
// # Invariants
//
//   - at most one request handle is outstanding per controller
//   - a SendTurn while Sending is a no-op with zero side effects
//   - Pause outside Sending and Continue outside Paused are no-ops
//   - the pause placeholder never survives a resume
//
// All user-visible failures become ordinary system-role timeline entries,
// preserving chronological history instead of transient notifications.
package turn

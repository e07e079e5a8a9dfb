// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"premiumchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem marks client-surfaced error/status text. It is rendered
	// in the timeline like any other message but excluded from history
	// sent to the server.
	RoleSystem Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Messages are immutable once appended; the one exception is the edit
// operation on the store, which replaces the message and truncates
// everything after it.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content. Empty only for a paused placeholder.
	Content string `json:"content"`

	// Attachment (user messages)
	ImageData string `json:"image_data,omitempty"` // inline base64 payload
	FileName  string `json:"file_name,omitempty"`

	// Response metadata (assistant messages)
	ProviderUsed string  `json:"provider_used,omitempty"`
	ResponseTime float64 `json:"response_time,omitempty"` // seconds

	// Edit tracking
	Edited   bool      `json:"edited,omitempty"`
	EditedAt time.Time `json:"edited_at,omitempty"`

	// IsPaused is true only for the empty assistant placeholder inserted
	// when an in-flight turn is paused. The placeholder is removed on
	// resume and must never survive as a persisted empty message.
	IsPaused bool `json:"is_paused,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message with response metadata.
func NewAssistantMessage(content, provider string, responseTime float64) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.ProviderUsed = provider
	msg.ResponseTime = responseTime
	return msg
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewPausedPlaceholder creates the empty assistant placeholder that marks a
// paused turn.
func NewPausedPlaceholder() *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.IsPaused = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// HasImage returns true if the message carries an inline image attachment.
func (m *Message) HasImage() bool {
	return m.ImageData != ""
}

// MarkEdited records that the message content was replaced by the user.
func (m *Message) MarkEdited() {
	m.Edited = true
	m.EditedAt = time.Now()
}

// =============================================================================
// ID GENERATION
// =============================================================================

// generateMessageID creates a unique message ID. Collision resistance is
// all that matters; no ordering semantics are derived from the content.
func generateMessageID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"premiumchat/internal/logging"
	"premiumchat/internal/model"
)

// =============================================================================
// STORE
// =============================================================================

// Store owns the in-memory list of conversations and the current pointer.
//
// The list is kept most-recent-first: new conversations are inserted at
// the head. The Store is safe for concurrent use; Bubble Tea commands run
// in goroutines. Accessors that return live pointers (Current, Get,
// Conversations) are for callers that are the only mutator at the time;
// anything rendering while a turn may be appending reads CurrentSnapshot
// instead.
type Store struct {
	mu sync.Mutex

	conversations []*model.Conversation
	currentID     string
}

// NewStore creates an empty store. Call Init (or CreateConversation)
// before use so the ≥1-conversation invariant holds.
func NewStore() *Store {
	return &Store{}
}

// Init seeds the store from persisted state. Unknown current IDs and an
// empty list both degrade to a fresh conversation, never to an error.
func (s *Store) Init(conversations []*model.Conversation, currentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = conversations

	if s.findLocked(currentID) != nil {
		s.currentID = currentID
	} else if len(s.conversations) > 0 {
		s.currentID = s.conversations[0].ID
	} else {
		s.createLocked()
	}
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// CreateConversation generates a new conversation, inserts it at the head
// of the list, selects it and returns it. Always succeeds.
func (s *Store) CreateConversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() *model.Conversation {
	conv := model.NewConversation()
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.currentID = conv.ID
	return conv
}

// Current returns the current conversation, or nil before Init. The
// returned pointer is live; see CurrentSnapshot for concurrent readers.
func (s *Store) Current() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.currentID)
}

// CurrentSnapshot returns a copy of the current conversation that is
// safe to iterate while a turn appends concurrently: the struct and the
// message slice are copied under the lock. Messages themselves are never
// mutated once stored, so sharing the message pointers is safe. Returns
// nil before Init.
func (s *Store) CurrentSnapshot() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(s.currentID)
	if conv == nil {
		return nil
	}
	snap := *conv
	snap.Messages = make([]*model.Message, len(conv.Messages))
	copy(snap.Messages, conv.Messages)
	return &snap
}

// CurrentID returns the current conversation's ID.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Conversations returns the conversation list, most recent first.
func (s *Store) Conversations() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Get returns a conversation by ID, or nil.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id)
}

// SelectConversation sets the current pointer. Selecting an unknown ID is
// a logic error on the caller's side; it is logged and ignored.
func (s *Store) SelectConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		logging.L().Warn("select of unknown conversation", zap.String("id", id))
		return
	}
	s.currentID = id
}

// RenameConversation sets a new title. Empty or whitespace-only titles
// are rejected (no-op).
func (s *Store) RenameConversation(id, newTitle string) bool {
	if strings.TrimSpace(newTitle) == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return false
	}
	conv.SetTitle(newTitle)
	return true
}

// DeriveTitle sets the conversation title from its first message text.
// A no-op unless the conversation holds exactly one message, so only the
// opening message of a thread ever names it.
func (s *Store) DeriveTitle(conversationID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil || conv.MessageCount() != 1 {
		return
	}
	conv.DeriveTitle(text)
}

// DeleteConversation removes a conversation. If it was current, the
// next-most-recent remaining conversation is selected; if none remain, a
// fresh conversation is created and selected. Returns the deleted
// conversation, or nil if the ID was unknown.
func (s *Store) DeleteConversation(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	deleted := s.conversations[idx]
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.currentID == id {
		if len(s.conversations) > 0 {
			s.currentID = s.conversations[0].ID
		} else {
			s.createLocked()
		}
	}

	return deleted
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessage pushes a message onto the target conversation. A missing
// conversation is logged and ignored; the caller must already hold a
// valid reference.
func (s *Store) AppendMessage(conversationID string, msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		logging.L().Warn("append to unknown conversation",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", msg.ID))
		return
	}
	conv.AddMessage(msg)
}

// RemoveMessage deletes a single message by ID. Used to drop the paused
// placeholder on resume. Returns true if the message was present.
func (s *Store) RemoveMessage(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return false
	}
	return conv.RemoveMessage(messageID)
}

// MessagesAfter returns how many messages follow the target message.
// The edit flow surfaces this count in its confirmation prompt. Returns
// -1 if the conversation or message is unknown.
func (s *Store) MessagesAfter(conversationID, messageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return -1
	}
	idx := conv.MessageIndex(messageID)
	if idx == -1 {
		return -1
	}
	return len(conv.Messages) - idx - 1
}

// TruncateFrom removes the target message and everything after it.
// Returns the number of removed messages, or -1 if the conversation or
// message is unknown. This is destructive and non-reversible; the caller
// is responsible for confirming with the user first.
func (s *Store) TruncateFrom(conversationID, messageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return -1
	}
	idx := conv.MessageIndex(messageID)
	if idx == -1 {
		return -1
	}

	removed := len(conv.Messages) - idx
	conv.Messages = conv.Messages[:idx]
	return removed
}

// ClearMessages empties the conversation's message sequence but keeps the
// conversation itself.
func (s *Store) ClearMessages(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		logging.L().Warn("clear of unknown conversation", zap.String("id", conversationID))
		return
	}
	conv.ClearMessages()
}

// =============================================================================
// INTERNAL
// =============================================================================

// findLocked looks a conversation up by ID. Callers hold s.mu.
func (s *Store) findLocked(id string) *model.Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

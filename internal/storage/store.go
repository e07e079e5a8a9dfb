// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"premiumchat/internal/logging"
	"premiumchat/internal/model"
	"premiumchat/internal/util"
)

// File names under the data directory. The pair mirrors the web client's
// localStorage keys (premium_chats / premium_current_chat); the selection
// file mirrors selectedModelConfig.
const (
	chatsFile     = "chats.json"
	currentFile   = "current_chat"
	selectionFile = "selected_model"
)

// =============================================================================
// STORE
// =============================================================================

// Store mirrors chat state to disk.
type Store struct {
	// Dir is the data directory, default ~/.premiumchat.
	Dir string
}

// NewStore creates a store rooted at the default data directory.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithDir(filepath.Join(homeDir, ".premiumchat"))
}

// NewStoreWithDir creates a store with a custom data directory.
func NewStoreWithDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{Dir: dir}, nil
}

// =============================================================================
// CHAT STATE
// =============================================================================

// Save writes the conversation list and current pointer. Any failure is
// logged and swallowed: persistence is an optimization, not a guarantee,
// and must never propagate to the caller.
func (s *Store) Save(conversations []*model.Conversation, currentID string) {
	data, err := json.MarshalIndent(conversations, "", "  ")
	if err != nil {
		logging.L().Warn("failed to serialize conversations", zap.Error(err))
		return
	}

	if err := util.AtomicWriteFile(filepath.Join(s.Dir, chatsFile), data, 0644); err != nil {
		logging.L().Warn("failed to persist conversations", zap.Error(err))
		return
	}

	if err := util.AtomicWriteFile(filepath.Join(s.Dir, currentFile), []byte(currentID), 0644); err != nil {
		logging.L().Warn("failed to persist current chat id", zap.Error(err))
	}
}

// Load reads the persisted state. On any failure (missing files, corrupt
// JSON) it returns an empty list and "" so the caller starts fresh.
func (s *Store) Load() ([]*model.Conversation, string) {
	data, err := os.ReadFile(filepath.Join(s.Dir, chatsFile))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.L().Warn("failed to read persisted conversations", zap.Error(err))
		}
		return nil, ""
	}

	var conversations []*model.Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		logging.L().Warn("corrupt conversation data, starting fresh", zap.Error(err))
		return nil, ""
	}

	currentID := ""
	if raw, err := os.ReadFile(filepath.Join(s.Dir, currentFile)); err == nil {
		currentID = string(raw)
	}

	return conversations, currentID
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// SaveSelection persists the encoded model/provider selection string.
func (s *Store) SaveSelection(encoded string) {
	if err := util.AtomicWriteFile(filepath.Join(s.Dir, selectionFile), []byte(encoded), 0644); err != nil {
		logging.L().Warn("failed to persist model selection", zap.Error(err))
	}
}

// LoadSelection reads the encoded selection string, or "" when absent.
func (s *Store) LoadSelection() string {
	raw, err := os.ReadFile(filepath.Join(s.Dir, selectionFile))
	if err != nil {
		return ""
	}
	return string(raw)
}

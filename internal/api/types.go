// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

// =============================================================================
// REQUEST TYPES
// =============================================================================

// TurnRequest is the body of POST /api/chat/.
type TurnRequest struct {
	Message        string `json:"message"`
	SessionID      string `json:"session_id"`
	IncludeHistory bool   `json:"include_history"`
	MaxHistory     int    `json:"max_history"`

	// Attachment
	ImageData     string `json:"image_data,omitempty"`
	ImageFilename string `json:"image_filename,omitempty"`

	// Model/provider selection; empty means the server chooses.
	Model     string   `json:"model,omitempty"`
	Providers []string `json:"providers,omitempty"`
	Provider  string   `json:"provider,omitempty"`

	// ContinueGeneration marks the re-dispatch of a paused turn.
	ContinueGeneration bool `json:"continue_generation,omitempty"`
}

// createSessionRequest is the body of POST /api/sessions/.
type createSessionRequest struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

// renameSessionRequest is the body of POST /api/sessions/{id}/rename/.
type renameSessionRequest struct {
	Title string `json:"title"`
}

// imageRequest is the body of POST /api/generate-image/.
type imageRequest struct {
	Prompt string `json:"prompt"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TurnResult is the outcome of a chat turn. The backend reports
// application-level failures in-band with Success=false and the error
// text in ErrorText; those are not Go errors.
type TurnResult struct {
	Success         bool
	Text            string
	ServerMessageID string
	ProviderUsed    string
	ResponseTime    float64
	ErrorText       string
}

// turnResponse is the raw wire shape of POST /api/chat/. On failure the
// backend reuses the response field for the error text.
type turnResponse struct {
	Success      bool    `json:"success"`
	Response     string  `json:"response"`
	MessageID    string  `json:"message_id"`
	ProviderUsed string  `json:"provider_used"`
	ResponseTime float64 `json:"response_time"`
}

// ImageResult is the outcome of an image generation request.
type ImageResult struct {
	Success      bool
	ImageURL     string
	ImageData    string
	ProviderUsed string
	ResponseTime float64
	ErrorText    string
}

// imageResponse is the raw wire shape of POST /api/generate-image/.
type imageResponse struct {
	Success      bool    `json:"success"`
	ImageURL     string  `json:"image_url"`
	ImageData    string  `json:"image_data"`
	ProviderUsed string  `json:"provider_used"`
	ResponseTime float64 `json:"response_time"`
	Message      string  `json:"message"`
}

// ProviderInfo describes one backend provider as reported by
// GET /api/providers/.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
	Status string   `json:"status"`
}

// providersResponse is the raw wire shape of GET /api/providers/.
type providersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

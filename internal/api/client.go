// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeCancelled
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeHTTPStatus
)

// Sentinel errors for easy checking.
var (
	// ErrCancelled marks a request aborted through its context before a
	// response arrived. This is the pause path, not a failure.
	ErrCancelled = &ClientError{Type: ErrTypeCancelled, Message: "request cancelled"}

	// ErrConnection marks transport-level failures (network unreachable,
	// DNS, connection refused).
	ErrConnection = &ClientError{Type: ErrTypeConnection, Message: "connection failed"}
)

// IsCancelled reports whether err is the distinguished cancellation
// condition.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the API base URL including the /api prefix
	// (default: http://127.0.0.1:8000/api)
	BaseURL string

	// CSRFToken is sent as X-CSRFToken on every request when non-empty.
	// The hosting page supplied it in the web client; here it comes from
	// configuration.
	CSRFToken string

	// SessionOpTimeout bounds the best-effort session operations
	// (create/clear/delete/rename). Chat turns are NOT bounded: the
	// backend may legitimately generate for minutes, and only an
	// explicit pause cancels a turn.
	SessionOpTimeout time.Duration

	// RequestsPerSecond paces outgoing calls (default: 5). Protects the
	// backend from accidental rapid-fire dispatch.
	RequestsPerSecond float64
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000/api",
		SessionOpTimeout:  30 * time.Second,
		RequestsPerSecond: 5,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Premium Chat backend.
// It is safe for concurrent use, though the turn controller only ever
// keeps a single chat call in flight.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000/api"
	}
	if config.SessionOpTimeout == 0 {
		config.SessionOpTimeout = 30 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 5
	}

	return &Client{
		config: config,
		// No Timeout on the http.Client: chat turns have no deadline.
		// Session ops get bounded contexts instead.
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// CreateSession registers a conversation on the server. Fire-and-forget
// from the caller's perspective: the conversation exists locally whether
// or not this call succeeds.
func (c *Client) CreateSession(ctx context.Context, id, title string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.SessionOpTimeout)
	defer cancel()

	body := createSessionRequest{SessionID: id, Title: title}
	resp, err := c.doJSON(ctx, http.MethodPost, "/sessions/", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// ClearSession wipes a session's history on the server. Best-effort.
func (c *Client) ClearSession(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.SessionOpTimeout)
	defer cancel()

	resp, err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+id+"/clear/", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// DeleteSession removes a session on the server. Best-effort.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.SessionOpTimeout)
	defer cancel()

	resp, err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+id+"/", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// RenameSession updates a session's title on the server. Best-effort.
func (c *Client) RenameSession(ctx context.Context, id, title string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.SessionOpTimeout)
	defer cancel()

	body := renameSessionRequest{Title: title}
	resp, err := c.doJSON(ctx, http.MethodPost, "/sessions/"+id+"/rename/", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// =============================================================================
// CHAT TURN
// =============================================================================

// SendTurn dispatches one chat turn. The context is the cancellation
// token: cancelling it before the response arrives returns ErrCancelled.
//
// An HTTP 200 with success=false is an application-level failure and is
// reported in-band through the returned TurnResult, not as an error.
func (c *Client) SendTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/chat/", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var wire turnResponse
	if err := decodeJSON(ctx, resp.Body, &wire); err != nil {
		return nil, err
	}

	result := &TurnResult{
		Success:         wire.Success,
		ProviderUsed:    wire.ProviderUsed,
		ResponseTime:    wire.ResponseTime,
		ServerMessageID: wire.MessageID,
	}
	if wire.Success {
		result.Text = wire.Response
	} else {
		// The backend reuses the response field for error text.
		result.ErrorText = wire.Response
	}
	return result, nil
}

// =============================================================================
// IMAGE GENERATION
// =============================================================================

// GenerateImage asks the backend to generate an image from a prompt.
// Like SendTurn it has no deadline; only the caller's context cancels it.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/generate-image/", imageRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var wire imageResponse
	if err := decodeJSON(ctx, resp.Body, &wire); err != nil {
		return nil, err
	}

	result := &ImageResult{
		Success:      wire.Success,
		ImageURL:     wire.ImageURL,
		ImageData:    wire.ImageData,
		ProviderUsed: wire.ProviderUsed,
		ResponseTime: wire.ResponseTime,
	}
	if !wire.Success {
		result.ErrorText = wire.Message
	}
	return result, nil
}

// =============================================================================
// PROVIDER LISTING
// =============================================================================

// ListProviders fetches the providers the backend currently exposes.
func (c *Client) ListProviders(ctx context.Context) ([]ProviderInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.SessionOpTimeout)
	defer cancel()

	resp, err := c.doJSON(ctx, http.MethodGet, "/providers/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var wire providersResponse
	if err := decodeJSON(ctx, resp.Body, &wire); err != nil {
		return nil, err
	}
	return wire.Providers, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// doJSON issues one request with the standard headers. Context
// cancellation is mapped to ErrCancelled, everything else transport-level
// to a connection ClientError wrapping ErrConnection.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, cancelOrConnection(err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to encode request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", c.config.CSRFToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cancelOrConnection(err)
	}
	return resp, nil
}

// cancelOrConnection distinguishes a user-triggered abort from a real
// transport failure.
func cancelOrConnection(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return &ClientError{Type: ErrTypeConnection, Message: "connection failed", Cause: err}
}

// checkStatus maps non-2xx responses to an HTTP-status ClientError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &ClientError{
		Type:    ErrTypeHTTPStatus,
		Message: "unexpected status from backend: " + resp.Status,
	}
}

// decodeJSON decodes a response body with a typed error on failure. A
// cancellation can land while the body is still being read; it surfaces
// here as a truncated read and is mapped back to ErrCancelled.
func decodeJSON(ctx context.Context, r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrCancelled
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response body", Cause: err}
	}
	return nil
}

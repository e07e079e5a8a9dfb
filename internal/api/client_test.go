// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient points a client at a test server with pacing disabled
// enough not to slow the suite down.
func newTestClient(ts *httptest.Server) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:           ts.URL + "/api",
		CSRFToken:         "test-token",
		SessionOpTimeout:  5 * time.Second,
		RequestsPerSecond: 1000,
	})
}

// =============================================================================
// CHAT TURN TESTS
// =============================================================================

func TestSendTurnSuccess(t *testing.T) {
	var got TurnRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/" {
			t.Errorf("path = %q, want /api/chat/", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.Header.Get("X-CSRFToken") != "test-token" {
			t.Error("missing CSRF token header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":       true,
			"response":      "Hello back",
			"message_id":    "srv_1",
			"provider_used": "OpenaiChat",
			"response_time": 1.25,
		})
	}))
	defer ts.Close()

	client := newTestClient(ts)
	result, err := client.SendTurn(context.Background(), TurnRequest{
		Message:        "Hello",
		SessionID:      "chat_abc",
		IncludeHistory: true,
		MaxHistory:     50,
		Model:          "gpt-4",
		Providers:      []string{"P1", "P2"},
		Provider:       "P1",
	})
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.Text != "Hello back" {
		t.Errorf("Text = %q, want %q", result.Text, "Hello back")
	}
	if result.ProviderUsed != "OpenaiChat" {
		t.Errorf("ProviderUsed = %q", result.ProviderUsed)
	}
	if result.ServerMessageID != "srv_1" {
		t.Errorf("ServerMessageID = %q", result.ServerMessageID)
	}

	// Wire shape assertions.
	if got.SessionID != "chat_abc" || !got.IncludeHistory || got.MaxHistory != 50 {
		t.Errorf("request body = %+v", got)
	}
	if got.Model != "gpt-4" || len(got.Providers) != 2 || got.Provider != "P1" {
		t.Errorf("selection fields = %+v", got)
	}
}

func TestSendTurnApplicationFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  false,
			"response": "All providers are busy",
		})
	}))
	defer ts.Close()

	client := newTestClient(ts)
	result, err := client.SendTurn(context.Background(), TurnRequest{Message: "x", SessionID: "s"})
	if err != nil {
		t.Fatalf("application failure must not be a Go error, got %v", err)
	}

	if result.Success {
		t.Error("expected Success=false")
	}
	if result.ErrorText != "All providers are busy" {
		t.Errorf("ErrorText = %q", result.ErrorText)
	}
}

func TestSendTurnCancelled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer ts.Close()
	defer close(release)

	client := newTestClient(ts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.SendTurn(ctx, TurnRequest{Message: "x", SessionID: "s"})
	if !IsCancelled(err) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSendTurnCancelledWhileReadingBody(t *testing.T) {
	headersSent := make(chan struct{})
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(headersSent)
		<-release
	}))
	defer ts.Close()
	defer close(release)

	client := newTestClient(ts)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.SendTurn(ctx, TurnRequest{Message: "x", SessionID: "s"})
		errCh <- err
	}()

	// Cancel only after the response headers are out, so the abort lands
	// while the body is being read rather than during the round trip.
	<-headersSent
	cancel()

	if err := <-errCh; !IsCancelled(err) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSendTurnConnectionFailure(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{
		BaseURL:           "http://127.0.0.1:1", // nothing listens here
		RequestsPerSecond: 1000,
	})

	_, err := client.SendTurn(context.Background(), TurnRequest{Message: "x", SessionID: "s"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsCancelled(err) {
		t.Fatal("connection failure must not look like cancellation")
	}

	var cerr *ClientError
	if !errors.As(err, &cerr) || cerr.Type != ErrTypeConnection {
		t.Errorf("expected connection-typed ClientError, got %v", err)
	}
}

// =============================================================================
// SESSION OPERATION TESTS
// =============================================================================

func TestSessionOperations(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := newTestClient(ts)
	ctx := context.Background()

	if err := client.CreateSession(ctx, "chat_1", "New chat"); err != nil {
		t.Errorf("CreateSession: %v", err)
	}
	if err := client.ClearSession(ctx, "chat_1"); err != nil {
		t.Errorf("ClearSession: %v", err)
	}
	if err := client.RenameSession(ctx, "chat_1", "Renamed"); err != nil {
		t.Errorf("RenameSession: %v", err)
	}
	if err := client.DeleteSession(ctx, "chat_1"); err != nil {
		t.Errorf("DeleteSession: %v", err)
	}

	want := []call{
		{http.MethodPost, "/api/sessions/"},
		{http.MethodDelete, "/api/sessions/chat_1/clear/"},
		{http.MethodPost, "/api/sessions/chat_1/rename/"},
		{http.MethodDelete, "/api/sessions/chat_1/"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestHTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := newTestClient(ts)
	err := client.CreateSession(context.Background(), "chat_1", "t")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

// =============================================================================
// IMAGE GENERATION TESTS
// =============================================================================

func TestGenerateImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate-image/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":       true,
			"image_url":     "https://img.example/1.png",
			"provider_used": "Flux",
			"response_time": 4.2,
		})
	}))
	defer ts.Close()

	client := newTestClient(ts)
	result, err := client.GenerateImage(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if !result.Success || result.ImageURL == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestGenerateImageFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "image providers unavailable",
		})
	}))
	defer ts.Close()

	client := newTestClient(ts)
	result, err := client.GenerateImage(context.Background(), "x")
	if err != nil {
		t.Fatalf("in-band failure must not be a Go error: %v", err)
	}
	if result.Success || result.ErrorText != "image providers unavailable" {
		t.Errorf("result = %+v", result)
	}
}

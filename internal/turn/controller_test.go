// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"strings"
	"sync"
	"testing"

	"premiumchat/internal/api"
	"premiumchat/internal/chat"
	"premiumchat/internal/model"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// fakeGateway records requests and answers through a pluggable respond
// function. The started channel signals each time a turn reaches the
// gateway, so tests can sequence pauses deterministically.
type fakeGateway struct {
	mu       sync.Mutex
	requests []api.TurnRequest
	started  chan struct{}

	respond func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{started: make(chan struct{}, 16)}
}

func (g *fakeGateway) SendTurn(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	respond := g.respond
	g.mu.Unlock()

	g.started <- struct{}{}

	if respond != nil {
		return respond(ctx, req)
	}
	return &api.TurnResult{Success: true, Text: "ok"}, nil
}

func (g *fakeGateway) GenerateImage(ctx context.Context, prompt string) (*api.ImageResult, error) {
	g.started <- struct{}{}
	return &api.ImageResult{Success: true, ImageURL: "https://img.example/x.png"}, nil
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *fakeGateway) lastRequest() api.TurnRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

// blockUntilCancelled makes the gateway behave like a hung backend that
// only returns when the caller cancels.
func blockUntilCancelled(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
	<-ctx.Done()
	return nil, api.ErrCancelled
}

// fakePersister counts persistence calls.
type fakePersister struct {
	mu         sync.Mutex
	saves      int
	selections []string
}

func (p *fakePersister) Save(conversations []*model.Conversation, currentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
}

func (p *fakePersister) SaveSelection(encoded string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selections = append(p.selections, encoded)
}

func (p *fakePersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func newTestController() (*Controller, *chat.Store, *fakeGateway, *fakePersister) {
	store := chat.NewStore()
	store.CreateConversation()
	gateway := newFakeGateway()
	persist := &fakePersister{}
	return NewController(store, gateway, persist), store, gateway, persist
}

// pauseMidFlight starts a turn against a hung backend, pauses it, and
// waits for the turn to resolve into the Paused state.
func pauseMidFlight(t *testing.T, c *Controller, gateway *fakeGateway, text string) {
	t.Helper()
	gateway.respond = blockUntilCancelled

	done := make(chan struct{})
	go func() {
		c.SendTurn(text, nil)
		close(done)
	}()

	<-gateway.started
	c.Pause()
	<-done

	if c.State() != StatePaused {
		t.Fatalf("state = %v, want paused", c.State())
	}
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSendTurnSuccess(t *testing.T) {
	c, store, gateway, persist := newTestController()
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: true, Text: "Hi!", ProviderUsed: "OpenaiChat", ResponseTime: 1.2}, nil
	}

	c.SendTurn("Hello", nil)

	conv := store.Current()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want 2", conv.MessageCount())
	}
	if conv.Messages[0].Role != model.RoleUser || conv.Messages[0].Content != "Hello" {
		t.Errorf("user message = %+v", conv.Messages[0])
	}
	reply := conv.Messages[1]
	if reply.Role != model.RoleAssistant || reply.Content != "Hi!" {
		t.Errorf("assistant message = %+v", reply)
	}
	if reply.ProviderUsed != "OpenaiChat" || reply.ResponseTime != 1.2 {
		t.Errorf("metadata = %+v", reply)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
	if persist.saveCount() != 1 {
		t.Errorf("saves = %d, want 1 (persist on every Idle-bound exit)", persist.saveCount())
	}

	req := gateway.lastRequest()
	if !req.IncludeHistory || req.MaxHistory != DefaultMaxHistory {
		t.Errorf("history params = %+v", req)
	}
	if req.ContinueGeneration {
		t.Error("fresh turn must not be a continuation")
	}
}

func TestSendTurnEmptyInputIsNoop(t *testing.T) {
	c, store, gateway, _ := newTestController()

	c.SendTurn("   ", nil)

	if store.Current().MessageCount() != 0 {
		t.Error("empty input must have no side effects")
	}
	if gateway.requestCount() != 0 {
		t.Error("empty input must not reach the gateway")
	}
}

func TestSendTurnImageOnly(t *testing.T) {
	c, store, gateway, _ := newTestController()

	c.SendTurn("", &Attachment{Data: "base64data", FileName: "cat.png"})

	conv := store.Current()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want 2", conv.MessageCount())
	}
	if conv.Messages[0].Content != ImageContentText {
		t.Errorf("content = %q, want placeholder text", conv.Messages[0].Content)
	}
	req := gateway.lastRequest()
	if req.ImageData != "base64data" || req.ImageFilename != "cat.png" {
		t.Errorf("image fields = %+v", req)
	}
}

func TestTurnExclusivity(t *testing.T) {
	c, store, gateway, _ := newTestController()

	release := make(chan struct{})
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		<-release
		return &api.TurnResult{Success: true, Text: "ok"}, nil
	}

	done := make(chan struct{})
	go func() {
		c.SendTurn("first", nil)
		close(done)
	}()
	<-gateway.started

	// A second send while Sending has no observable effect.
	c.SendTurn("second", nil)

	if n := store.Current().MessageCount(); n != 1 {
		t.Errorf("messages = %d, want 1 (no duplicate user message)", n)
	}
	if gateway.requestCount() != 1 {
		t.Errorf("requests = %d, want 1 (no second handle)", gateway.requestCount())
	}

	close(release)
	<-done
}

func TestTitleDerivation(t *testing.T) {
	long := "Explain quantum physics in simple terms for a curious ten-year-old who loves astronomy"

	c, store, _, _ := newTestController()
	c.SendTurn(long, nil)

	want := string([]rune(long)[:50]) + "..."
	if got := store.Current().Title; got != want {
		t.Errorf("title = %q, want %q", got, want)
	}

	// A short first message becomes the title verbatim; later messages
	// never touch the title.
	c2, store2, _, _ := newTestController()
	c2.SendTurn("Short question", nil)
	c2.SendTurn("Another message", nil)
	if got := store2.Current().Title; got != "Short question" {
		t.Errorf("title = %q, want %q", got, "Short question")
	}
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestApplicationFailure(t *testing.T) {
	c, store, gateway, _ := newTestController()
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: false, ErrorText: "All providers are busy"}, nil
	}

	c.SendTurn("hello", nil)

	conv := store.Current()
	last := conv.LastMessage()
	if last.Role != model.RoleSystem || last.Content != "All providers are busy" {
		t.Errorf("system message = %+v", last)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestApplicationFailureFallbackText(t *testing.T) {
	c, store, gateway, _ := newTestController()
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: false}, nil
	}

	c.SendTurn("hello", nil)

	if got := store.Current().LastMessage().Content; got != FallbackErrorText {
		t.Errorf("content = %q, want fallback text", got)
	}
}

func TestTransportFailure(t *testing.T) {
	c, store, gateway, _ := newTestController()
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return nil, api.ErrConnection
	}

	c.SendTurn("hello", nil)

	last := store.Current().LastMessage()
	if last.Role != model.RoleSystem || last.Content != ConnectivityErrorText {
		t.Errorf("system message = %+v", last)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

// =============================================================================
// PROVIDER ROTATION TESTS
// =============================================================================

func TestProviderRotationOnFailure(t *testing.T) {
	c, _, gateway, _ := newTestController()
	c.SetSelection(Selection{Model: "gpt-4", Providers: []string{"P1", "P2", "P3"}})
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: false, ErrorText: "busy"}, nil
	}

	for _, want := range []string{"P2", "P3", "P1"} {
		c.SendTurn("hello", nil)
		if got := c.Selection().ActiveProvider(); got != want {
			t.Errorf("active = %q, want %q", got, want)
		}
	}
}

func TestProviderRotationIsAdvisory(t *testing.T) {
	c, _, gateway, _ := newTestController()
	c.SetSelection(Selection{Model: "gpt-4", Providers: []string{"P1", "P2"}})
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: false, ErrorText: "busy"}, nil
	}

	c.SendTurn("hello", nil)

	// Rotation does not auto-retry the failed turn.
	if gateway.requestCount() != 1 {
		t.Errorf("requests = %d, want 1", gateway.requestCount())
	}
}

func TestProviderAffinityAdoption(t *testing.T) {
	c, _, gateway, _ := newTestController()
	c.SetSelection(Selection{Model: "gpt-4", Providers: []string{"P1", "P2", "P3"}})
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: true, Text: "ok", ProviderUsed: "P3"}, nil
	}

	c.SendTurn("hello", nil)

	if got := c.Selection().ActiveProvider(); got != "P3" {
		t.Errorf("active = %q, want P3 (server-driven affinity)", got)
	}
}

func TestSelectionFieldsOnWire(t *testing.T) {
	c, _, gateway, _ := newTestController()
	c.SetSelection(Selection{Model: "gpt-4", Providers: []string{"P1", "P2"}})

	c.SendTurn("hello", nil)

	req := gateway.lastRequest()
	if req.Model != "gpt-4" || req.Provider != "P1" || len(req.Providers) != 2 {
		t.Errorf("selection on wire = %+v", req)
	}

	// Automatic selection sends no selection fields.
	c2, _, gateway2, _ := newTestController()
	c2.SendTurn("hello", nil)
	req2 := gateway2.lastRequest()
	if req2.Model != "" || req2.Provider != "" || req2.Providers != nil {
		t.Errorf("auto selection must omit selection fields, got %+v", req2)
	}
}

// =============================================================================
// PAUSE / CONTINUE TESTS
// =============================================================================

func TestPauseProducesPlaceholder(t *testing.T) {
	c, store, gateway, _ := newTestController()

	pauseMidFlight(t, c, gateway, "hello")

	conv := store.Current()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want user + placeholder", conv.MessageCount())
	}
	last := conv.LastMessage()
	if !last.IsPaused || last.Role != model.RoleAssistant || !last.IsEmpty() {
		t.Errorf("placeholder = %+v", last)
	}
	if c.PendingPlaceholderID() != last.ID {
		t.Error("placeholder id must be tracked")
	}
}

func TestPauseIdempotence(t *testing.T) {
	c, store, gateway, _ := newTestController()

	pauseMidFlight(t, c, gateway, "hello")

	// A second pause after the first must change nothing.
	c.Pause()

	placeholders := 0
	for _, m := range store.Current().Messages {
		if m.IsPaused {
			placeholders++
		}
	}
	if placeholders != 1 {
		t.Errorf("placeholders = %d, want exactly 1", placeholders)
	}
	if c.State() != StatePaused {
		t.Errorf("state = %v, want paused", c.State())
	}
}

func TestPauseWhenIdleIsNoop(t *testing.T) {
	c, store, _, _ := newTestController()

	c.Pause()

	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
	if store.Current().MessageCount() != 0 {
		t.Error("pause outside Sending must not touch the timeline")
	}
}

func TestContinueCleansUpPlaceholder(t *testing.T) {
	c, store, gateway, _ := newTestController()

	pauseMidFlight(t, c, gateway, "hello")

	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: true, Text: "resumed answer"}, nil
	}
	c.Continue()

	conv := store.Current()
	for _, m := range conv.Messages {
		if m.IsPaused {
			t.Error("no message may remain paused after resume")
		}
	}

	// Timeline: the original user message plus the resumed answer. No
	// duplicate user message from the continuation.
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want 2", conv.MessageCount())
	}
	if conv.Messages[0].Content != "hello" || conv.Messages[1].Content != "resumed answer" {
		t.Errorf("timeline = [%q, %q]", conv.Messages[0].Content, conv.Messages[1].Content)
	}

	req := gateway.lastRequest()
	if !req.ContinueGeneration {
		t.Error("resume must set the continuation flag")
	}
	if req.Message != "hello" {
		t.Errorf("resumed message = %q, want the last user message", req.Message)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestContinueWhenNotPausedIsNoop(t *testing.T) {
	c, store, gateway, _ := newTestController()

	c.Continue()

	if gateway.requestCount() != 0 {
		t.Error("continue outside Paused must not dispatch")
	}
	if store.Current().MessageCount() != 0 {
		t.Error("continue outside Paused must not touch the timeline")
	}
}

func TestNewSendAbandonsPausedTurn(t *testing.T) {
	c, store, gateway, _ := newTestController()

	pauseMidFlight(t, c, gateway, "first")

	gateway.respond = nil
	c.SendTurn("second", nil)

	conv := store.Current()
	for _, m := range conv.Messages {
		if m.IsPaused {
			t.Error("abandoned placeholder must not survive a new send")
		}
	}
	if c.PendingPlaceholderID() != "" {
		t.Error("placeholder pointer must clear on a new send")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

// =============================================================================
// EDIT TESTS
// =============================================================================

func TestEditTruncatesAndResends(t *testing.T) {
	c, store, gateway, _ := newTestController()
	conv := store.Current()

	u1 := model.NewUserMessage("U1")
	for _, m := range []*model.Message{
		u1,
		model.NewAssistantMessage("A1", "", 0),
		model.NewUserMessage("U2"),
		model.NewAssistantMessage("A2", "", 0),
	} {
		store.AppendMessage(conv.ID, m)
	}

	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		return &api.TurnResult{Success: true, Text: "A1 regenerated"}, nil
	}

	if !c.EditMessage(u1.ID, "U1 edited") {
		t.Fatal("edit should be accepted")
	}

	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want 2 (old U1/A1/U2/A2 gone)", conv.MessageCount())
	}
	newU1 := conv.Messages[0]
	if newU1.Content != "U1 edited" || newU1.Role != model.RoleUser {
		t.Errorf("edited message = %+v", newU1)
	}
	if !newU1.Edited {
		t.Error("replacement must be marked edited")
	}
	if conv.Messages[1].Content != "A1 regenerated" {
		t.Errorf("reply = %q", conv.Messages[1].Content)
	}
}

func TestEditRejectsNonUserTarget(t *testing.T) {
	c, store, _, _ := newTestController()
	conv := store.Current()
	a := model.NewAssistantMessage("answer", "", 0)
	store.AppendMessage(conv.ID, a)

	if c.EditMessage(a.ID, "rewrite") {
		t.Error("assistant messages must not be editable")
	}
	if conv.MessageCount() != 1 {
		t.Error("rejected edit must have no side effects")
	}
}

func TestEditHoldsOffConcurrentSend(t *testing.T) {
	c, store, gateway, _ := newTestController()
	conv := store.Current()
	u := model.NewUserMessage("U1")
	store.AppendMessage(conv.ID, u)
	store.AppendMessage(conv.ID, model.NewAssistantMessage("A1", "", 0))

	release := make(chan struct{})
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		<-release
		return &api.TurnResult{Success: true, Text: "regenerated"}, nil
	}

	done := make(chan struct{})
	go func() {
		c.EditMessage(u.ID, "U1 edited")
		close(done)
	}()
	<-gateway.started

	// The edited turn is in flight. A send arriving now must not open a
	// second request or touch the truncated timeline.
	c.SendTurn("interloper", nil)

	if gateway.requestCount() != 1 {
		t.Errorf("requests = %d, want 1 (single in-flight handle)", gateway.requestCount())
	}
	if n := store.Current().MessageCount(); n != 1 {
		t.Errorf("messages = %d, want just the edited message", n)
	}

	close(release)
	<-done

	conv = store.Current()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want edited message + reply", conv.MessageCount())
	}
	if conv.Messages[0].Content != "U1 edited" || conv.Messages[1].Content != "regenerated" {
		t.Errorf("timeline = [%q, %q]", conv.Messages[0].Content, conv.Messages[1].Content)
	}
}

func TestEditRejectedWhileSending(t *testing.T) {
	c, store, gateway, _ := newTestController()
	conv := store.Current()
	u := model.NewUserMessage("U1")
	store.AppendMessage(conv.ID, u)

	release := make(chan struct{})
	gateway.respond = func(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error) {
		<-release
		return &api.TurnResult{Success: true, Text: "ok"}, nil
	}

	done := make(chan struct{})
	go func() {
		c.SendTurn("hold", nil)
		close(done)
	}()
	<-gateway.started

	if c.EditMessage(u.ID, "changed") {
		t.Error("edit must be rejected while Sending")
	}

	close(release)
	<-done
}

// =============================================================================
// IMAGE GENERATION TESTS
// =============================================================================

func TestGenerateImage(t *testing.T) {
	c, store, _, _ := newTestController()

	c.GenerateImage("a red fox")

	conv := store.Current()
	if conv.MessageCount() != 2 {
		t.Fatalf("messages = %d, want 2", conv.MessageCount())
	}
	reply := conv.Messages[1]
	if reply.Role != model.RoleAssistant || !strings.Contains(reply.Content, "https://img.example/x.png") {
		t.Errorf("reply = %+v", reply)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

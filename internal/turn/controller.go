// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"premiumchat/internal/api"
	"premiumchat/internal/chat"
	"premiumchat/internal/logging"
	"premiumchat/internal/model"
)

// DefaultMaxHistory is how many prior messages the server is asked to
// include as context for a turn.
const DefaultMaxHistory = 50

// User-visible texts for failures the server did not describe. These are
// timeline entries, not transient notifications.
const (
	// FallbackErrorText is shown for application-level failures without
	// server-supplied text.
	FallbackErrorText = "An error occurred while getting a response."

	// ConnectivityErrorText is shown when the backend cannot be reached.
	ConnectivityErrorText = "Could not reach the server. Check your internet connection."

	// ImageContentText stands in for the message text when the user
	// sends an image with no caption.
	ImageContentText = "Image"
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's lifecycle state.
type State int

const (
	// StateIdle: no turn in progress.
	StateIdle State = iota
	// StateSending: exactly one request is in flight.
	StateSending
	// StatePaused: a turn was cancelled mid-flight; its placeholder is in
	// the timeline and no request is outstanding.
	StatePaused
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Gateway is the narrow slice of the backend client the controller needs.
type Gateway interface {
	SendTurn(ctx context.Context, req api.TurnRequest) (*api.TurnResult, error)
	GenerateImage(ctx context.Context, prompt string) (*api.ImageResult, error)
}

// Persister mirrors chat state to local storage, best-effort.
type Persister interface {
	Save(conversations []*model.Conversation, currentID string)
	SaveSelection(encoded string)
}

// Attachment is an inline image the user attached to a turn.
type Attachment struct {
	Data     string // base64 payload
	FileName string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives one conversation turn at a time.
//
// SendTurn, Continue and GenerateImage block until the turn resolves;
// callers run them from a goroutine (a Bubble Tea command) and use Pause
// from the event loop to cancel. All state transitions happen under one
// mutex, so observers always see a consistent (state, placeholder, handle)
// triple.
type Controller struct {
	mu sync.Mutex

	store   *chat.Store
	gateway Gateway
	persist Persister

	selection Selection

	state                State
	cancel               context.CancelFunc
	pendingPlaceholderID string

	maxHistory int
}

// NewController wires the controller to its collaborators.
func NewController(store *chat.Store, gateway Gateway, persist Persister) *Controller {
	return &Controller{
		store:      store,
		gateway:    gateway,
		persist:    persist,
		maxHistory: DefaultMaxHistory,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsGenerating reports whether a request is in flight.
func (c *Controller) IsGenerating() bool {
	return c.State() == StateSending
}

// IsPaused reports whether a paused turn is waiting to be resumed.
func (c *Controller) IsPaused() bool {
	return c.State() == StatePaused
}

// Selection returns a copy of the current model/provider selection.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// SetSelection replaces the model/provider selection and persists its
// encoded form.
func (c *Controller) SetSelection(sel Selection) {
	c.mu.Lock()
	c.selection = sel
	encoded := sel.Encode()
	c.mu.Unlock()

	c.persist.SaveSelection(encoded)
}

// =============================================================================
// SEND
// =============================================================================

// SendTurn dispatches one conversation turn and blocks until it resolves.
//
// Preconditions: text non-empty or image present, and no request in
// flight. A call while Sending is a no-op with zero side effects; the UI
// disables send during generation, but the controller stays safe if
// invoked anyway. A call while Paused abandons the paused turn: the
// placeholder is removed and the new message goes out as a fresh turn.
func (c *Controller) SendTurn(text string, image *Attachment) {
	text = strings.TrimSpace(text)
	if text == "" && image == nil {
		return
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return
	}

	conv := c.store.Current()
	if conv == nil {
		c.mu.Unlock()
		logging.L().Error("send with no current conversation")
		return
	}

	c.abandonPauseLocked(conv)

	// Optimistic append: the user message is always shown, even if the
	// network call later fails.
	content := text
	if content == "" {
		content = ImageContentText
	}
	userMsg := model.NewUserMessage(content)
	if image != nil {
		userMsg.ImageData = image.Data
		userMsg.FileName = image.FileName
	}
	c.store.AppendMessage(conv.ID, userMsg)
	c.store.DeriveTitle(conv.ID, content)

	req := c.buildRequestLocked(conv.ID, content, image, false)
	ctx := c.beginSendingLocked()
	c.mu.Unlock()

	c.dispatch(ctx, conv, req)
}

// =============================================================================
// PAUSE / CONTINUE
// =============================================================================

// Pause cancels the in-flight request. Valid only while Sending; a pause
// in any other state is a no-op, as is a second pause for the same turn.
// The resulting state (placeholder message, Paused) is produced by the
// dispatch path's cancellation branch, so an explicit pause and a race
// outcome are indistinguishable.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSending || c.cancel == nil {
		return
	}

	cancel := c.cancel
	c.cancel = nil // consumed: a second Pause finds nothing to cancel
	cancel()
}

// Continue resumes a paused turn. Valid only while Paused; otherwise a
// no-op. The placeholder is removed from the timeline and the most recent
// user message is re-dispatched as a continuation, without a fresh
// optimistic append.
func (c *Controller) Continue() {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return
	}

	conv := c.store.Current()
	if conv == nil {
		c.state = StateIdle
		c.mu.Unlock()
		return
	}

	if c.pendingPlaceholderID != "" {
		c.store.RemoveMessage(conv.ID, c.pendingPlaceholderID)
		c.pendingPlaceholderID = ""
	}

	lastUser := conv.LastUserMessage()
	if lastUser == nil {
		// Nothing to resume; the paused turn is simply dropped.
		c.state = StateIdle
		c.persistLocked()
		c.mu.Unlock()
		return
	}

	var image *Attachment
	if lastUser.HasImage() {
		image = &Attachment{Data: lastUser.ImageData, FileName: lastUser.FileName}
	}

	req := c.buildRequestLocked(conv.ID, lastUser.Content, image, true)
	ctx := c.beginSendingLocked()
	c.mu.Unlock()

	c.dispatch(ctx, conv, req)
}

// PendingPlaceholderID returns the id of the paused placeholder, or "".
func (c *Controller) PendingPlaceholderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingPlaceholderID
}

// =============================================================================
// EDIT
// =============================================================================

// EditMessage replaces a user message's content and regenerates from
// there: the target message and everything after it are removed, then the
// new text is sent as if freshly typed.
//
// Valid only while Idle and only for user-role messages. The operation is
// destructive; callers surface Store.MessagesAfter to the user for
// confirmation before invoking it. Returns false when the edit was
// rejected.
//
// The truncation and the re-send enter Sending under a single lock hold,
// so no other turn can start between them.
func (c *Controller) EditMessage(messageID, newText string) bool {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return false
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return false
	}

	conv := c.store.Current()
	if conv == nil {
		c.mu.Unlock()
		return false
	}

	target := conv.MessageByID(messageID)
	if target == nil || target.Role != model.RoleUser {
		c.mu.Unlock()
		return false
	}

	c.store.TruncateFrom(conv.ID, messageID)

	userMsg := model.NewUserMessage(newText)
	userMsg.MarkEdited()
	c.store.AppendMessage(conv.ID, userMsg)
	c.store.DeriveTitle(conv.ID, newText)

	req := c.buildRequestLocked(conv.ID, newText, nil, false)
	ctx := c.beginSendingLocked()
	c.mu.Unlock()

	c.dispatch(ctx, conv, req)
	return true
}

// =============================================================================
// IMAGE GENERATION
// =============================================================================

// GenerateImage runs an image-generation turn: the prompt enters the
// timeline as a user message and the result (or failure) as the reply.
// Pause works the same way as for a chat turn, except a cancelled image
// has no continuation: the turn just ends.
func (c *Controller) GenerateImage(prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return
	}

	conv := c.store.Current()
	if conv == nil {
		c.mu.Unlock()
		return
	}

	c.abandonPauseLocked(conv)

	c.store.AppendMessage(conv.ID, model.NewUserMessage(prompt))
	c.store.DeriveTitle(conv.ID, prompt)

	ctx := c.beginSendingLocked()
	c.mu.Unlock()

	result, err := c.gateway.GenerateImage(ctx, prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case api.IsCancelled(err):
		logging.L().Info("image generation cancelled")
	case err != nil:
		c.store.AppendMessage(conv.ID, model.NewSystemMessage(ConnectivityErrorText))
	case result.Success:
		ref := result.ImageURL
		if ref == "" {
			ref = result.ImageData
		}
		msg := model.NewAssistantMessage("![generated image]("+ref+")", result.ProviderUsed, result.ResponseTime)
		c.store.AppendMessage(conv.ID, msg)
	default:
		text := result.ErrorText
		if text == "" {
			text = FallbackErrorText
		}
		c.store.AppendMessage(conv.ID, model.NewSystemMessage(text))
	}

	c.state = StateIdle
	c.cancel = nil
	c.persistLocked()
}

// =============================================================================
// DISPATCH
// =============================================================================

// dispatch runs one prepared request to resolution. Exactly one of four
// outcomes applies:
//
//   - cancelled: placeholder appended, state → Paused, no error surfaced
//   - transport failure: generic connectivity system message, → Idle
//   - application failure: server (or fallback) text as a system message,
//     provider round-robin advanced as a hint, → Idle
//   - success: assistant message appended, server-driven provider
//     affinity adopted, → Idle
//
// Every Idle-bound exit persists the store and clears the handle.
func (c *Controller) dispatch(ctx context.Context, conv *model.Conversation, req api.TurnRequest) {
	result, err := c.gateway.SendTurn(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case api.IsCancelled(err):
		placeholder := model.NewPausedPlaceholder()
		c.store.AppendMessage(conv.ID, placeholder)
		c.pendingPlaceholderID = placeholder.ID
		c.state = StatePaused
		c.cancel = nil
		return

	case err != nil:
		logging.L().Warn("turn transport failure", zap.Error(err))
		c.store.AppendMessage(conv.ID, model.NewSystemMessage(ConnectivityErrorText))

	case result.Success:
		msg := model.NewAssistantMessage(result.Text, result.ProviderUsed, result.ResponseTime)
		if result.ServerMessageID != "" {
			msg.ID = result.ServerMessageID
		}
		c.store.AppendMessage(conv.ID, msg)
		// Server-driven provider affinity: stick with whatever provider
		// actually answered, when it is one of the candidates.
		c.selection.Adopt(result.ProviderUsed)

	default:
		text := result.ErrorText
		if text == "" {
			text = FallbackErrorText
		}
		c.store.AppendMessage(conv.ID, model.NewSystemMessage(text))
		// Advisory rotation only: the next attempt starts from the next
		// candidate, but the failed turn is not retried automatically.
		c.selection.Advance()
	}

	c.state = StateIdle
	c.cancel = nil
	c.persistLocked()
}

// =============================================================================
// INTERNAL
// =============================================================================

// beginSendingLocked creates the cancellation handle and enters Sending.
// Callers hold c.mu.
func (c *Controller) beginSendingLocked() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StateSending
	return ctx
}

// abandonPauseLocked drops a paused turn when the user moves on to a new
// message: the placeholder leaves the timeline and the pointer clears.
// Callers hold c.mu.
func (c *Controller) abandonPauseLocked(conv *model.Conversation) {
	if c.state != StatePaused {
		return
	}
	if c.pendingPlaceholderID != "" {
		c.store.RemoveMessage(conv.ID, c.pendingPlaceholderID)
		c.pendingPlaceholderID = ""
	}
	c.state = StateIdle
}

// buildRequestLocked assembles the wire request for a turn. Callers hold
// c.mu (the selection is read under the lock).
func (c *Controller) buildRequestLocked(conversationID, text string, image *Attachment, continuation bool) api.TurnRequest {
	req := api.TurnRequest{
		Message:            text,
		SessionID:          conversationID,
		IncludeHistory:     true,
		MaxHistory:         c.maxHistory,
		ContinueGeneration: continuation,
	}

	if image != nil {
		req.ImageData = image.Data
		req.ImageFilename = image.FileName
		if req.ImageFilename == "" {
			req.ImageFilename = "image.jpg"
		}
	}

	if !c.selection.IsAuto() {
		req.Model = c.selection.Model
		req.Providers = c.selection.Providers
		req.Provider = c.selection.ActiveProvider()
	}

	return req
}

// persistLocked mirrors the store to local storage. Callers hold c.mu.
// Persistence is fire-and-forget; the in-memory store stays authoritative.
func (c *Controller) persistLocked() {
	c.persist.Save(c.store.Conversations(), c.store.CurrentID())
}

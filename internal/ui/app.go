// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"premiumchat/internal/api"
	"premiumchat/internal/chat"
	"premiumchat/internal/i18n"
	"premiumchat/internal/logging"
	"premiumchat/internal/turn"
)

// sessionOpTimeout bounds the backend session bookkeeping calls made from
// UI commands. Chat turns themselves are unbounded; see internal/api.
const sessionOpTimeout = 30 * time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// turnDoneMsg reports that a blocking controller call returned. The
// controller already updated the store; the UI only needs to re-render.
type turnDoneMsg struct{}

// sessionOpMsg reports a backend session bookkeeping call. Failures are
// logged, never surfaced: local state is authoritative.
type sessionOpMsg struct {
	op  string
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	store     *chat.Store
	ctrl      *turn.Controller
	client    *api.Client
	locale    *i18n.Locale
	theme     *Theme
	keys      KeyMap
	fontScale float64

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	quitting bool
}

// New builds the chat view around an initialized store and controller.
// fontScale stretches or shrinks the markdown wrap budget; zero means
// an unscaled width.
func New(store *chat.Store, ctrl *turn.Controller, client *api.Client, locale *i18n.Locale, theme *Theme, fontScale float64) Model {
	ta := textarea.New()
	ta.Placeholder = locale.T("chat.placeholder")
	ta.Prompt = "│ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.HeaderTitle

	return Model{
		store:     store,
		ctrl:      ctrl,
		client:    client,
		locale:    locale,
		theme:     theme,
		keys:      DefaultKeyMap(),
		fontScale: fontScale,
		textarea:  ta,
		spinner:   sp,
	}
}

// Init starts the spinner tick and the textarea cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update routes events. Key handling is intentionally shallow: every
// binding maps to one Store or Controller operation plus, where the
// backend mirrors the operation, a fire-and-forget session command.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport(true)

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	case turnDoneMsg:
		m.refreshViewport(true)

	case sessionOpMsg:
		if msg.err != nil {
			logging.L().Warn("session op failed", zap.String("op", msg.op), zap.Error(msg.err))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		// The controller appends the optimistic user message from a
		// command goroutine; re-render on ticks so it shows before the
		// turn resolves.
		if m.ctrl.State() != turn.StateIdle {
			m.refreshViewport(true)
		}
	}

	var taCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	cmds = append(cmds, taCmd)

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// handleKey dispatches chat shortcuts. Returns handled=false for keys the
// textarea and viewport should see instead.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Send):
		text := m.textarea.Value()
		if m.ctrl.IsGenerating() {
			return m, nil, true
		}
		m.textarea.Reset()
		m.refreshViewport(true)
		return m, m.sendCmd(text), true

	case key.Matches(msg, m.keys.Pause):
		m.ctrl.Pause()
		return m, nil, true

	case key.Matches(msg, m.keys.Resume):
		if !m.ctrl.IsPaused() {
			return m, nil, true
		}
		return m, m.continueCmd(), true

	case key.Matches(msg, m.keys.NewChat):
		conv := m.store.CreateConversation()
		m.refreshViewport(true)
		return m, m.createSessionCmd(conv.ID, conv.Title), true

	case key.Matches(msg, m.keys.NextChat):
		m.cycleConversation(1)
		return m, nil, true

	case key.Matches(msg, m.keys.PrevChat):
		m.cycleConversation(-1)
		return m, nil, true

	case key.Matches(msg, m.keys.ClearChat):
		id := m.store.CurrentID()
		m.store.ClearMessages(id)
		m.refreshViewport(true)
		return m, m.clearSessionCmd(id), true

	case key.Matches(msg, m.keys.DeleteChat):
		deleted := m.store.DeleteConversation(m.store.CurrentID())
		m.refreshViewport(true)
		if deleted == nil {
			return m, nil, true
		}
		return m, m.deleteSessionCmd(deleted.ID), true
	}

	return m, nil, false
}

// cycleConversation moves the current pointer through the list, wrapping
// at both ends.
func (m *Model) cycleConversation(delta int) {
	convs := m.store.Conversations()
	if len(convs) < 2 {
		return
	}

	cur := m.store.CurrentID()
	for i, c := range convs {
		if c.ID == cur {
			next := (i + delta + len(convs)) % len(convs)
			m.store.SelectConversation(convs[next].ID)
			break
		}
	}
	m.refreshViewport(true)
}

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd wraps the blocking SendTurn call in a command. Pause stays
// responsive because it runs on the event loop while this goroutine is
// parked in the controller.
func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.SendTurn(text, nil)
		return turnDoneMsg{}
	}
}

func (m Model) continueCmd() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Continue()
		return turnDoneMsg{}
	}
}

func (m Model) createSessionCmd(id, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sessionOpTimeout)
		defer cancel()
		return sessionOpMsg{op: "create", err: m.client.CreateSession(ctx, id, title)}
	}
}

func (m Model) clearSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sessionOpTimeout)
		defer cancel()
		return sessionOpMsg{op: "clear", err: m.client.ClearSession(ctx, id)}
	}
}

func (m Model) deleteSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sessionOpTimeout)
		defer cancel()
		return sessionOpMsg{op: "delete", err: m.client.DeleteSession(ctx, id)}
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.textarea.SetWidth(width - 4)

	vpHeight := height - m.headerHeight() - m.inputHeight() - m.statusHeight()
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
}

func (m Model) headerHeight() int { return 2 }
func (m Model) inputHeight() int  { return m.textarea.Height() + 2 }
func (m Model) statusHeight() int { return 1 }

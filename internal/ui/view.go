// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"premiumchat/internal/model"
	"premiumchat/internal/turn"
	"premiumchat/internal/util"
)

// View renders header, transcript, input and status bar top to bottom.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return ""
	}

	return strings.Join([]string{
		m.headerView(),
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width - 2).Render(m.textarea.View()),
		m.statusView(),
	}, "\n")
}

func (m Model) headerView() string {
	title := m.locale.T("app.title")
	if conv := m.store.CurrentSnapshot(); conv != nil {
		title = fmt.Sprintf("%s — %s", m.locale.T("app.title"), conv.Title)
	}
	if m.width > 10 {
		title = util.TruncateWidth(title, m.width-10)
	}
	count := fmt.Sprintf("[%d]", len(m.store.Conversations()))

	line := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.HeaderTitle.Render(title),
		" ",
		m.theme.MessageMeta.Render(count),
	)
	return m.theme.Header.Render(line) + "\n"
}

func (m Model) statusView() string {
	var state string
	switch m.ctrl.State() {
	case turn.StateSending:
		state = m.spinner.View() + m.locale.T("status.sending")
	case turn.StatePaused:
		state = m.locale.T("status.paused") + " · " + m.locale.T("chat.continue") + " (ctrl+r)"
	default:
		state = m.locale.T("status.idle")
	}

	sel := m.ctrl.Selection()
	detail := "auto"
	if !sel.IsAuto() {
		detail = sel.Model
		if p := sel.ActiveProvider(); p != "" {
			detail += " · " + p
		}
	}

	left := m.theme.StatusState.Render(state) + "  " + m.theme.StatusDetail.Render(detail)
	help := m.theme.Help.Render(m.locale.T("keys.help"))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 2
	if gap < 1 {
		return m.theme.StatusBar.Render(left)
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + help)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the current conversation into the viewport.
// It reads a snapshot: re-renders fire on spinner ticks while the
// controller goroutine is still appending to the live conversation.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}

	conv := m.store.CurrentSnapshot()
	if conv == nil || conv.IsEmpty() {
		m.viewport.SetContent(m.theme.MessageMeta.Render(m.locale.T("chat.empty")))
		return
	}

	renderer := m.markdownRenderer()

	var b strings.Builder
	for _, msg := range conv.Messages {
		b.WriteString(m.renderMessage(msg, renderer))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// renderMessage formats one timeline entry: a styled role label, the body
// (markdown for assistant replies, plain for the rest), and a meta line
// with provider and latency when the server reported them.
func (m Model) renderMessage(msg *model.Message, renderer *glamour.TermRenderer) string {
	var b strings.Builder

	switch msg.Role {
	case model.RoleUser:
		b.WriteString(m.theme.UserLabel.Render(m.locale.T("role.you")))
		if msg.Edited {
			b.WriteString(m.theme.MessageMeta.Render(" (edited)"))
		}
		b.WriteString("\n")
		b.WriteString(msg.Content)

	case model.RoleAssistant:
		b.WriteString(m.theme.AssistantLabel.Render(m.locale.T("role.assistant")))
		b.WriteString("\n")
		if msg.IsPaused {
			b.WriteString(m.theme.PausedText.Render(m.locale.T("chat.paused")))
		} else {
			b.WriteString(m.renderMarkdown(msg.Content, renderer))
			if meta := m.metaLine(msg); meta != "" {
				b.WriteString("\n")
				b.WriteString(m.theme.MessageMeta.Render(meta))
			}
		}

	case model.RoleSystem:
		b.WriteString(m.theme.SystemLabel.Render(m.locale.T("role.system")))
		b.WriteString("\n")
		b.WriteString(m.theme.SystemText.Render(msg.Content))
	}

	b.WriteString("\n")
	return b.String()
}

func (m Model) metaLine(msg *model.Message) string {
	var parts []string
	if msg.ProviderUsed != "" {
		parts = append(parts, msg.ProviderUsed)
	}
	if msg.ResponseTime > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", msg.ResponseTime))
	}
	return strings.Join(parts, " · ")
}

// renderMarkdown renders assistant markdown, falling back to the raw text
// when the renderer is unavailable or fails.
func (m Model) renderMarkdown(content string, renderer *glamour.TermRenderer) string {
	if renderer == nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// markdownRenderer builds a renderer sized to the current viewport. A nil
// return degrades to plain text.
func (m Model) markdownRenderer() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.wrapWidth()),
	)
	if err != nil {
		return nil
	}
	return r
}

// wrapWidth is the word-wrap budget for rendered markdown: the viewport
// width shrunk by the configured font scale, so larger terminal fonts
// get proportionally shorter lines. Never below a readable floor.
func (m Model) wrapWidth() int {
	width := m.viewport.Width - 2
	if m.fontScale > 0 {
		width = int(float64(width) / m.fontScale)
	}
	if width < 20 {
		width = 20
	}
	return width
}

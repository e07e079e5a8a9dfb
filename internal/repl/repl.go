// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repl is the plain-terminal front end, used with --plain or when
// stdout is not a TTY worth drawing on. It drives the same Store and
// Controller as the full-screen UI through a liner read loop.
//
// Interactive commands:
//
//	/help, /h        Show available commands
//	/new             Start a new chat
//	/chats           List chats
//	/switch N        Switch to chat number N
//	/rename TITLE    Rename the current chat
//	/clear           Clear the current chat
//	/delete          Delete the current chat
//	/continue        Resume a paused generation
//	/model [SEL]     Show or set the model selection
//	/image PROMPT    Generate an image
//	/edit N TEXT     Edit message N and regenerate from there
//	/providers       List backend providers
//	/history         Show the current chat's messages
//	/quit, /q        Exit
//	Ctrl+C           Pause the in-flight generation
package repl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"premiumchat/internal/api"
	"premiumchat/internal/chat"
	"premiumchat/internal/i18n"
	"premiumchat/internal/logging"
	"premiumchat/internal/model"
	"premiumchat/internal/turn"
	"premiumchat/internal/util"
)

const sessionOpTimeout = 30 * time.Second

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	replyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	systemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// =============================================================================
// INPUT
// =============================================================================

// input wraps liner with persistent history.
type input struct {
	line        *liner.State
	historyFile string
}

func newInput(dataDir string) *input {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &input{
		line:        line,
		historyFile: filepath.Join(dataDir, "repl_history"),
	}
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *input) read(prompt string) (string, error) {
	s, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) != "" {
		in.line.AppendHistory(s)
	}
	return s, nil
}

func (in *input) close() {
	if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		in.line.WriteHistory(f)
		f.Close()
	}
	in.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// REPL is the plain-terminal session.
type REPL struct {
	store  *chat.Store
	ctrl   *turn.Controller
	client *api.Client
	locale *i18n.Locale
	in     *input

	// lastShown tracks how many messages of the current conversation have
	// been printed, so each turn only prints its new tail.
	lastShown map[string]int
}

// New builds a REPL over an initialized store and controller. dataDir is
// where the input history lives.
func New(store *chat.Store, ctrl *turn.Controller, client *api.Client, locale *i18n.Locale, dataDir string) *REPL {
	return &REPL{
		store:     store,
		ctrl:      ctrl,
		client:    client,
		locale:    locale,
		in:        newInput(dataDir),
		lastShown: make(map[string]int),
	}
}

// Run executes the read loop until the user exits.
func (r *REPL) Run() error {
	defer r.in.close()

	// Trace id ties this terminal session's log lines together across
	// chats.
	traceID := uuid.NewString()
	logging.L().Info("repl session start", zap.String("trace_id", traceID))

	fmt.Println(promptStyle.Render(r.locale.T("app.title")))
	fmt.Println(infoStyle.Render("Type a message and press Enter. Commands: /help, /quit. Ctrl+C pauses generation."))
	fmt.Println()

	// Ctrl+C during generation pauses the turn instead of killing the
	// process; liner reports ErrPromptAborted when pressed at the prompt.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if r.ctrl.IsGenerating() {
				r.ctrl.Pause()
			}
		}
	}()

	r.syncShown()

	for {
		line, err := r.in.read(promptStyle.Render("> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			// EOF (Ctrl+D) or a broken terminal: exit cleanly.
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !r.handleCommand(line) {
				return nil
			}
			continue
		}

		r.ctrl.SendTurn(line, nil)
		r.printNew()

		if r.ctrl.IsPaused() {
			fmt.Println(infoStyle.Render(r.locale.T("chat.paused") + " — /continue to resume"))
		}
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// handleCommand runs one slash command. Returns false to exit.
func (r *REPL) handleCommand(line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h", "/?":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return false

	case "/new":
		conv := r.store.CreateConversation()
		r.sessionOp("create", func(ctx context.Context) error {
			return r.client.CreateSession(ctx, conv.ID, conv.Title)
		})
		fmt.Println(commandStyle.Render("[" + r.locale.T("chat.new") + "]"))
		r.syncShown()

	case "/chats":
		r.printChats()

	case "/switch":
		r.switchChat(args)

	case "/rename":
		title := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		r.renameChat(title)

	case "/clear":
		id := r.store.CurrentID()
		r.store.ClearMessages(id)
		r.sessionOp("clear", func(ctx context.Context) error {
			return r.client.ClearSession(ctx, id)
		})
		r.syncShown()
		fmt.Println(commandStyle.Render("[cleared]"))

	case "/delete":
		deleted := r.store.DeleteConversation(r.store.CurrentID())
		if deleted != nil {
			r.sessionOp("delete", func(ctx context.Context) error {
				return r.client.DeleteSession(ctx, deleted.ID)
			})
		}
		r.syncShown()
		fmt.Println(commandStyle.Render("[deleted]"))

	case "/continue":
		if !r.ctrl.IsPaused() {
			fmt.Println(infoStyle.Render("[nothing to continue]"))
			break
		}
		// The placeholder leaves the timeline on resume; rewind the shown
		// counter so the reply prints.
		r.syncShown()
		if n := r.lastShown[r.store.CurrentID()]; n > 0 {
			r.lastShown[r.store.CurrentID()] = n - 1
		}
		r.ctrl.Continue()
		r.printNew()

	case "/model", "/m":
		r.handleModel(args)

	case "/image":
		prompt := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		if prompt == "" {
			fmt.Println(infoStyle.Render("usage: /image PROMPT"))
			break
		}
		r.ctrl.GenerateImage(prompt)
		r.printNew()

	case "/edit":
		r.editMessage(line)

	case "/providers":
		r.printProviders()

	case "/history":
		r.printHistory()

	default:
		fmt.Println(infoStyle.Render("unknown command: " + cmd + " (/help for commands)"))
	}

	return true
}

func (r *REPL) switchChat(args []string) {
	convs := r.store.Conversations()
	if len(args) == 0 {
		r.printChats()
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(convs) {
		fmt.Println(infoStyle.Render("usage: /switch N (see /chats)"))
		return
	}
	r.store.SelectConversation(convs[n-1].ID)
	r.syncShown()
	fmt.Println(commandStyle.Render("[" + convs[n-1].Title + "]"))
}

func (r *REPL) renameChat(title string) {
	id := r.store.CurrentID()
	if !r.store.RenameConversation(id, title) {
		fmt.Println(infoStyle.Render("usage: /rename TITLE"))
		return
	}
	r.sessionOp("rename", func(ctx context.Context) error {
		return r.client.RenameSession(ctx, id, title)
	})
	fmt.Println(commandStyle.Render("[renamed]"))
}

func (r *REPL) handleModel(args []string) {
	if len(args) == 0 {
		fmt.Println(infoStyle.Render("selection: ") + commandStyle.Render(r.ctrl.Selection().Encode()))
		return
	}
	sel := turn.ParseSelection(args[0])
	r.ctrl.SetSelection(sel)
	fmt.Println(commandStyle.Render("[selection: " + sel.Encode() + "]"))
}

// editMessage handles "/edit N TEXT": replaces user message N (as numbered
// by /history) and regenerates from there. Later messages are removed, so
// the count is surfaced before dispatch.
func (r *REPL) editMessage(line string) {
	conv := r.store.Current()
	pieces := strings.SplitN(line, " ", 3)
	if conv == nil || len(pieces) < 3 {
		fmt.Println(infoStyle.Render("usage: /edit N TEXT (see /history for numbers)"))
		return
	}

	n, err := strconv.Atoi(pieces[1])
	if err != nil || n < 1 || n > conv.MessageCount() {
		fmt.Println(infoStyle.Render("usage: /edit N TEXT (see /history for numbers)"))
		return
	}
	target := conv.Messages[n-1]

	newText := strings.TrimSpace(pieces[2])
	if after := r.store.MessagesAfter(conv.ID, target.ID); after > 0 {
		fmt.Println(infoStyle.Render(fmt.Sprintf("[removing %d later messages]", after)))
	}

	r.syncShown()
	if !r.ctrl.EditMessage(target.ID, newText) {
		fmt.Println(infoStyle.Render("[edit rejected: only user messages can be edited while idle]"))
		return
	}
	r.lastShown[conv.ID] = conv.MessageCount() - 1
	r.printNew()
}

func (r *REPL) printProviders() {
	ctx, cancel := context.WithTimeout(context.Background(), sessionOpTimeout)
	defer cancel()

	providers, err := r.client.ListProviders(ctx)
	if err != nil {
		fmt.Println(systemStyle.Render("[could not fetch providers: " + err.Error() + "]"))
		return
	}
	for _, p := range providers {
		fmt.Printf("  %s %s %s\n",
			commandStyle.Render(p.Name),
			infoStyle.Render(p.Status),
			infoStyle.Render(strings.Join(p.Models, ", ")))
	}
}

// sessionOp runs a backend bookkeeping call with a bounded context.
// Failures are logged only; local state is authoritative.
func (r *REPL) sessionOp(op string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionOpTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logging.L().Warn("session op failed", zap.String("op", op), zap.Error(err))
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// syncShown marks the current conversation's messages as already printed.
func (r *REPL) syncShown() {
	if conv := r.store.Current(); conv != nil {
		r.lastShown[conv.ID] = conv.MessageCount()
	}
}

// printNew prints messages appended since the last print, skipping the
// echo of the user's own input.
func (r *REPL) printNew() {
	conv := r.store.Current()
	if conv == nil {
		return
	}

	from := r.lastShown[conv.ID]
	for _, msg := range conv.Messages[min(from, len(conv.Messages)):] {
		if msg.Role == model.RoleUser {
			continue
		}
		r.printMessage(msg)
	}
	r.lastShown[conv.ID] = conv.MessageCount()
}

func (r *REPL) printMessage(msg *model.Message) {
	switch msg.Role {
	case model.RoleUser:
		fmt.Println(userStyle.Render(r.locale.T("role.you")+":") + " " + msg.Content)
	case model.RoleAssistant:
		if msg.IsPaused {
			return
		}
		label := r.locale.T("role.assistant")
		if msg.ProviderUsed != "" {
			label += " (" + msg.ProviderUsed + ")"
		}
		fmt.Println(replyStyle.Render(label + ":"))
		fmt.Println(msg.Content)
	case model.RoleSystem:
		fmt.Println(systemStyle.Render(r.locale.T("role.system") + ": " + msg.Content))
	}
	fmt.Println()
}

func (r *REPL) printChats() {
	convs := r.store.Conversations()
	current := r.store.CurrentID()
	for i, c := range convs {
		marker := "  "
		if c.ID == current {
			marker = "* "
		}
		fmt.Printf("%s%d. %s %s\n", marker, i+1, util.TruncateWidth(c.Title, 60),
			infoStyle.Render(fmt.Sprintf("(%d messages)", c.MessageCount())))
	}
}

func (r *REPL) printHistory() {
	conv := r.store.Current()
	if conv == nil || conv.IsEmpty() {
		fmt.Println(infoStyle.Render("[no messages yet]"))
		return
	}
	for i, msg := range conv.Messages {
		fmt.Printf("  %d. %s: %s\n", i+1,
			msg.Role.DisplayName(), msg.Preview(100))
	}
}

func (r *REPL) printHelp() {
	commands := []struct{ cmd, desc string }{
		{"/new", "start a new chat"},
		{"/chats", "list chats"},
		{"/switch N", "switch to chat N"},
		{"/rename TITLE", "rename the current chat"},
		{"/clear", "clear the current chat"},
		{"/delete", "delete the current chat"},
		{"/continue", "resume a paused generation"},
		{"/model [SEL]", "show or set model selection (auto or model|p1,p2)"},
		{"/image PROMPT", "generate an image"},
		{"/edit N TEXT", "edit message N and regenerate from there"},
		{"/providers", "list backend providers"},
		{"/history", "show chat history"},
		{"/quit", "exit"},
	}
	fmt.Println()
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Ctrl+C pauses an in-flight generation, Ctrl+D exits."))
	fmt.Println()
}

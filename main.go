// premiumchat - terminal client for the Premium Chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"premiumchat/internal/api"
	"premiumchat/internal/chat"
	"premiumchat/internal/config"
	"premiumchat/internal/i18n"
	"premiumchat/internal/logging"
	"premiumchat/internal/repl"
	"premiumchat/internal/storage"
	"premiumchat/internal/turn"
	"premiumchat/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		plain       = flag.Bool("plain", false, "use the plain-terminal REPL instead of the full-screen UI")
		configPath  = flag.String("config", "", "config file path (default ~/.premiumchat/config.toml)")
		lang        = flag.String("lang", "", "UI language (overrides config, e.g. en, ru)")
		debug       = flag.Bool("debug", false, "verbose logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("premiumchat %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*plain, *configPath, *lang, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(plain bool, configPath, lang string, debug bool) error {
	// Configuration
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	if lang != "" {
		cfg.UI.Language = lang
	}

	// Data directory holds the log, the persisted chats and the input
	// history.
	dataDir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := logging.Init(dataDir, cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging unavailable: %v\n", err)
	}
	defer logging.Sync()

	logging.L().Info("premiumchat start",
		zap.String("version", Version),
		zap.String("api_url", cfg.API.BaseURL),
		zap.Bool("plain", plain))

	// Local persistence; corrupt or missing state degrades to a fresh
	// start, never to an error.
	persist, err := storage.NewStoreWithDir(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open local storage: %w", err)
	}

	store := chat.NewStore()
	store.Init(persist.Load())

	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		CSRFToken:         cfg.API.CSRFToken,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})

	ctrl := turn.NewController(store, client, persist)

	// Persisted selection wins over the config's; the config value seeds
	// first runs.
	selEncoded := persist.LoadSelection()
	if selEncoded == "" {
		selEncoded = cfg.Chat.Selection
	}
	ctrl.SetSelection(turn.ParseSelection(selEncoded))

	// Register a fresh-start conversation with the backend, best-effort.
	if conv := store.Current(); conv != nil && conv.IsEmpty() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := client.CreateSession(ctx, conv.ID, conv.Title); err != nil {
			logging.L().Warn("initial session registration failed", zap.Error(err))
		}
		cancel()
	}

	// Hot-reload the config: a selection change on disk takes effect on
	// the next turn.
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath, err = config.Path()
		if err != nil {
			cfgPath = ""
		}
	}
	if cfgPath != "" {
		stop, werr := config.Watch(cfgPath, func(updated *config.Config) {
			ctrl.SetSelection(turn.ParseSelection(updated.Chat.Selection))
			logging.L().Info("config reloaded", zap.String("selection", updated.Chat.Selection))
		})
		if werr != nil {
			logging.L().Warn("config watch unavailable", zap.Error(werr))
		} else {
			defer stop()
		}
	}

	locale := i18n.Match(cfg.UI.Language)

	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return repl.New(store, ctrl, client, locale, dataDir).Run()
	}

	theme := ui.NewTheme(cfg.UI.Theme)
	p := tea.NewProgram(
		ui.New(store, ctrl, client, locale, theme, cfg.UI.FontScale),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running premiumchat: %w", err)
	}
	return nil
}

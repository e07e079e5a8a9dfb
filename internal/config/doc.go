// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the premiumchat client.
//
// Configuration is TOML, loaded from ~/.premiumchat/config.toml with
// built-in defaults and environment variable overrides. A file watcher
// can hot-reload the config while the client runs.
//
// # Precedence
//
//   - environment variables (PREMIUMCHAT_API_URL, PREMIUMCHAT_CSRF_TOKEN)
//   - ~/.premiumchat/config.toml
//   - built-in defaults
package config

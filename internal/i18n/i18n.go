// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n provides the UI string tables.
//
// The hosted service ships English and Russian; the tables here carry
// the strings the terminal client actually renders. Locale negotiation
// uses BCP-47 matching so tags like "ru-RU" or "en-GB" resolve to the
// nearest supported table.
package i18n

import "golang.org/x/text/language"

// supported lists the locales with string tables; the first entry is the
// fallback.
var supported = []language.Tag{
	language.English,
	language.Russian,
}

var matcher = language.NewMatcher(supported)

// Locale is a resolved string table.
type Locale struct {
	tag     language.Tag
	strings map[string]string
}

// Match resolves a locale preference (a BCP-47 tag such as "en" or
// "ru-RU") to the nearest supported table. Unknown or empty preferences
// fall back to English.
func Match(pref string) *Locale {
	tag, _ := language.MatchStrings(matcher, pref)

	base, _ := tag.Base()
	if base.String() == "ru" {
		return &Locale{tag: language.Russian, strings: russian}
	}
	return &Locale{tag: language.English, strings: english}
}

// Tag returns the resolved language tag.
func (l *Locale) Tag() language.Tag {
	return l.tag
}

// T returns the translation for a key, falling back to English and then
// to the key itself so a missing entry is visible rather than blank.
func (l *Locale) T(key string) string {
	if s, ok := l.strings[key]; ok {
		return s
	}
	if s, ok := english[key]; ok {
		return s
	}
	return key
}

// =============================================================================
// STRING TABLES
// =============================================================================

var english = map[string]string{
	"app.title":          "Premium Chat",
	"chat.new":           "New chat",
	"chat.placeholder":   "Type a message...",
	"chat.generating":    "Generating...",
	"chat.paused":        "Generation paused",
	"chat.continue":      "Continue generation",
	"chat.empty":         "Start a conversation by typing a message below.",
	"chat.confirm_edit":  "Editing this message will delete %d later messages. Continue?",
	"chat.confirm_clear": "Clear all messages in this chat?",
	"chat.confirm_del":   "Delete this chat?",
	"role.you":           "You",
	"role.assistant":     "Assistant",
	"role.system":        "System",
	"status.idle":        "ready",
	"status.sending":     "sending",
	"status.paused":      "paused",
	"keys.help":          "enter send · ctrl+p pause · ctrl+r resume · ctrl+n new chat · ctrl+c quit",
}

var russian = map[string]string{
	"app.title":          "Премиум Чат",
	"chat.new":           "Новый чат",
	"chat.placeholder":   "Введите сообщение...",
	"chat.generating":    "Генерация...",
	"chat.paused":        "Генерация приостановлена",
	"chat.continue":      "Продолжить генерацию",
	"chat.empty":         "Начните разговор, введя сообщение ниже.",
	"chat.confirm_edit":  "При редактировании будет удалено %d последующих сообщений. Продолжить?",
	"chat.confirm_clear": "Очистить все сообщения в этом чате?",
	"chat.confirm_del":   "Удалить этот чат?",
	"role.you":           "Вы",
	"role.assistant":     "Ассистент",
	"role.system":        "Система",
	"status.idle":        "готов",
	"status.sending":     "отправка",
	"status.paused":      "пауза",
	"keys.help":          "enter отправить · ctrl+p пауза · ctrl+r продолжить · ctrl+n новый чат · ctrl+c выход",
}

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package locale resolves the user's UI locale and the display names of
// translation target languages.
//
// Resolution order: the LINGUALENS_LOCALE environment variable, the
// configured locale, then the usual POSIX variables (LC_ALL, LC_MESSAGES,
// LANG). Whatever is found is matched against the supported set; anything
// unrecognized falls back to English.
package locale

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ============================================================================
// SUPPORTED LOCALES
// ============================================================================

// supported lists the UI locales in matcher priority order. The first
// entry is the fallback for unrecognized input.
var supported = []language.Tag{
	language.English,
	language.SimplifiedChinese,
	language.TraditionalChinese,
	language.Japanese,
	language.Korean,
	language.Spanish,
	language.French,
	language.German,
}

var matcher = language.NewMatcher(supported)

// ============================================================================
// DETECTION
// ============================================================================

// envVars in POSIX precedence order. LC_ALL overrides everything, LANG is
// the catch-all.
var envVars = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// Detect resolves the UI locale. configured comes from the config file and
// may be empty.
func Detect(configured string) language.Tag {
	if v := os.Getenv("LINGUALENS_LOCALE"); v != "" {
		return Match(v)
	}
	if configured != "" {
		return Match(configured)
	}
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return Match(v)
		}
	}
	return language.English
}

// Match maps a locale string onto the closest supported tag. Accepts both
// BCP 47 ("zh-CN") and POSIX ("zh_CN.UTF-8") forms.
func Match(raw string) language.Tag {
	raw = normalize(raw)
	if raw == "" {
		return language.English
	}
	tag, _ := language.MatchStrings(matcher, raw)
	return tag
}

// normalize strips POSIX codeset and modifier suffixes and converts
// underscores, e.g. "zh_CN.UTF-8@pinyin" -> "zh-CN".
func normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, "_", "-")
	// The POSIX pseudo-locales carry no language information.
	if raw == "C" || raw == "POSIX" {
		return "en"
	}
	return raw
}

// ============================================================================
// DISPLAY
// ============================================================================

// EnglishUI reports whether scene names should render in English rather
// than their native form. True for every UI locale except Chinese.
func EnglishUI(ui language.Tag) bool {
	base, _ := ui.Base()
	zh, _ := language.Chinese.Base()
	return base != zh
}

// LanguageName renders the name of a target language in the UI locale,
// e.g. Japanese shown to a zh-CN user comes back as "日语".
func LanguageName(ui, target language.Tag) string {
	namer := display.Languages(ui)
	if namer == nil {
		namer = display.Languages(language.English)
	}
	if name := namer.Name(target); name != "" {
		return name
	}
	return target.String()
}

// SelfName renders a language's name in that language itself, for pickers
// that list every option natively.
func SelfName(target language.Tag) string {
	if name := display.Self.Name(target); name != "" {
		return name
	}
	return target.String()
}

// Supported returns the UI locales the application understands.
func Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

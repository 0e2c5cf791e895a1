// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the lingualens application:
// atomic file writes and rune-aware string handling. Translation content is
// frequently CJK, so every string helper here works on runes or display
// columns, never bytes.
package util

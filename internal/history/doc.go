// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history is the durable record of past conversations, grouped by
// calendar date and pruned by age.
//
// Two invariants hold at every save:
//
//   - A session with zero messages is never persisted. An update that
//     empties a session removes it entirely.
//   - Sessions whose last-touched timestamp is older than the retention
//     window (30 days by default) are dropped.
//
// Session ids are allocated lazily: CreateSession hands out an id but writes
// nothing; the first upsert with a non-empty message list creates the stored
// record. The whole list is rewritten on every mutation; at 30 days of
// retention the list stays small enough that diffing would buy nothing.
package history

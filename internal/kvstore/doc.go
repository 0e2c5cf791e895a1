// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kvstore provides the durable key-value store backing all
// lingualens persistence: scenes, chat history, and the last-selected
// scene/model.
//
// Each key is one file under the store directory, written atomically, so
// writes are atomic at the key level and a reader never observes a partial
// value. There is no cross-key transaction; every caller reads the full
// value, mutates in memory, and writes the full value back.
//
// # Keys
//
//   - "customScenes"            JSON array of scene records
//   - "lingualens-chat-history" JSON array of session records
//   - "selectedModel"           plain string
//   - "selectedScene"           plain string
//
// A Watcher built on fsnotify reports external mutation of the store
// directory, so a second lingualens process editing scenes is picked up
// without a restart.
package kvstore

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// messages.go - Bubble Tea message types passed through the chat Update loop.
package chat

// stateChangedMsg reports that the conversation controller mutated its
// state (a streamed delta, a status change, a selection change). The view
// re-reads the controller; the message carries nothing.
type stateChangedMsg struct{}

// sendFinishedMsg reports that a Send call returned.
type sendFinishedMsg struct {
	err error
}

// signalMsg reports that the cross-component signal channel has something
// to consume.
type signalMsg struct{}

// storeChangedMsg reports that another process modified a store key.
type storeChangedMsg struct {
	key string
}

// searchResultsMsg carries full-text search results into the history
// overlay.
type searchResultsMsg struct {
	query   string
	results []searchRow
	err     error
}

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea chat view: transcript viewport, input
// textarea, and the overlays for history, scenes, and models.
//
// The view owns no conversation state. It reads everything from the
// conversation controller and reacts to three event sources: controller
// change notifications, the cross-component signal channel, and the store
// watcher for edits made by other processes.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/lingualens/lingualens-tui/internal/conversation"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/index"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/signal"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// ============================================================================
// OVERLAYS
// ============================================================================

type overlay int

const (
	overlayNone overlay = iota
	overlayHistory
	overlayScenes
	overlayModels
	overlayHelp
)

// historyRow is one line in the history overlay: either a date header or a
// selectable session.
type historyRow struct {
	header  bool
	date    string
	session history.Session
}

// searchRow is one full-text search hit.
type searchRow struct {
	result index.Result
}

// ============================================================================
// MODEL
// ============================================================================

// Model is the chat view.
type Model struct {
	ctrl    *conversation.Controller
	signals *signal.Channel
	hist    *history.Store
	scenes  *scene.Store
	watcher *kvstore.Watcher

	englishUI bool
	keys      KeyMap

	input    textarea.Model
	vp       viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	active  overlay
	errText string

	// changed coalesces controller notifications into one pending wakeup.
	changed chan struct{}

	// History overlay state.
	histRows    []historyRow
	histSel     int
	searching   bool
	searchInput textinput.Model
	searchRows  []searchRow
	searchQuery string

	// Picker overlay state.
	sceneSel int
	modelSel int
}

// New builds the chat view around an already-wired controller. watcher may
// be nil when filesystem watching is unavailable.
func New(ctrl *conversation.Controller, signals *signal.Channel, hist *history.Store, scenes *scene.Store, watcher *kvstore.Watcher, englishUI bool) Model {
	input := textarea.New()
	input.Placeholder = "Type text to translate..."
	input.Prompt = styles.Prompt.Render("> ")
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	// Enter submits; ctrl+j inserts a line break.
	input.KeyMap.InsertNewline.SetKeys("ctrl+j")
	input.Focus()

	search := textinput.New()
	search.Placeholder = "Search conversations..."
	search.Prompt = styles.Prompt.Render("/ ")

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = styles.Warning

	m := Model{
		ctrl:        ctrl,
		signals:     signals,
		hist:        hist,
		scenes:      scenes,
		watcher:     watcher,
		englishUI:   englishUI,
		keys:        DefaultKeyMap(),
		input:       input,
		searchInput: search,
		spin:        spin,
		changed:     make(chan struct{}, 1),
	}

	ctrl.SetOnChange(func() {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	})
	return m
}

// Init starts the event listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		m.spin.Tick,
		m.waitChange(),
		m.waitSignal(),
	}
	if m.watcher != nil {
		cmds = append(cmds, m.waitStore())
	}
	return tea.Batch(cmds...)
}

// ============================================================================
// EVENT SOURCES
// ============================================================================

// waitChange blocks until the controller reports a state change.
func (m Model) waitChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changed
		return stateChangedMsg{}
	}
}

// waitSignal blocks until the signal channel has something pending.
func (m Model) waitSignal() tea.Cmd {
	return func() tea.Msg {
		<-m.signals.Updates()
		return signalMsg{}
	}
}

// waitStore blocks until another process modifies a store key.
func (m Model) waitStore() tea.Cmd {
	return func() tea.Msg {
		key, ok := <-m.watcher.Events()
		if !ok {
			return nil
		}
		return storeChangedMsg{key: key}
	}
}

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// update.go - The chat view's message loop.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/lingualens/lingualens-tui/internal/conversation"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/index"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/signal"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.FocusMsg:
		// The user may have edited scenes or history from another
		// terminal while we were in the background.
		m.ctrl.RefreshScenes()
		m.hist.Refresh()
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case stateChangedMsg:
		m.refreshTranscript()
		return m, m.waitChange()

	case sendFinishedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		m.refreshTranscript()
		return m, nil

	case signalMsg:
		if m.ctrl.ApplySignals() {
			m.active = overlayNone
			m.errText = ""
			m.refreshTranscript()
		}
		return m, m.waitSignal()

	case storeChangedMsg:
		switch msg.key {
		case kvstore.KeyCustomScenes:
			m.ctrl.RefreshScenes()
		case kvstore.KeyChatHistory:
			m.hist.Refresh()
			if m.active == overlayHistory {
				m.rebuildHistoryRows()
			}
		}
		if m.watcher == nil {
			return m, nil
		}
		return m, m.waitStore()

	case searchResultsMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.searchQuery = msg.query
			m.searchRows = msg.results
			m.histSel = 0
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// layout sizes the widgets for the current terminal dimensions.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	inputHeight := 3
	chromeHeight := 4 // header, status, footer, spacing
	vpHeight := m.height - inputHeight - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.vp = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = m.width
		m.vp.Height = vpHeight
	}
	m.input.SetWidth(m.width - 2)

	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = renderer
	}
}

// ============================================================================
// KEY HANDLING
// ============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.active != overlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.ctrl.Status() == conversation.StatusStreaming || m.ctrl.Status() == conversation.StatusSubmitted {
			m.ctrl.Stop()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		status := m.ctrl.Status()
		if status == conversation.StatusStreaming || status == conversation.StatusSubmitted {
			return m, nil
		}
		m.input.Reset()
		m.errText = ""
		return m, m.sendCmd(text)

	case key.Matches(msg, m.keys.Stop):
		status := m.ctrl.Status()
		if status == conversation.StatusStreaming || status == conversation.StatusSubmitted {
			m.ctrl.Stop()
		} else {
			m.errText = ""
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.signals.RequestClear()
		return m, nil

	case key.Matches(msg, m.keys.History):
		m.hist.Refresh()
		m.rebuildHistoryRows()
		m.searching = false
		m.searchRows = nil
		m.searchQuery = ""
		m.active = overlayHistory
		return m, nil

	case key.Matches(msg, m.keys.Scenes):
		m.sceneSel = m.selectedSceneIndex()
		m.active = overlayScenes
		return m, nil

	case key.Matches(msg, m.keys.Models):
		m.modelSel = m.selectedModelIndex()
		m.active = overlayModels
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.active = overlayHelp
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.vp.PageUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.vp.PageDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendCmd runs the blocking Send in a goroutine. Streaming progress
// arrives through the controller's change notifications.
func (m Model) sendCmd(text string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return sendFinishedMsg{err: ctrl.Send(context.Background(), text)}
	}
}

// ============================================================================
// OVERLAY KEYS
// ============================================================================

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Close) && !m.searching {
		m.active = overlayNone
		return m, nil
	}

	switch m.active {
	case overlayHistory:
		return m.handleHistoryKey(msg)
	case overlayScenes:
		return m.handleScenesKey(msg)
	case overlayModels:
		return m.handleModelsKey(msg)
	case overlayHelp:
		// Any key closes the help panel.
		m.active = overlayNone
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "esc":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		case "enter":
			query := strings.TrimSpace(m.searchInput.Value())
			m.searching = false
			m.searchInput.Blur()
			if query == "" {
				return m, nil
			}
			return m, searchCmd(m.hist, query)
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Up):
		if m.histSel > 0 {
			m.histSel--
			m.skipHeaders(-1)
		}

	case key.Matches(msg, m.keys.Down):
		if m.histSel < m.historyRowCount()-1 {
			m.histSel++
			m.skipHeaders(1)
		}

	case key.Matches(msg, m.keys.Delete):
		if id, ok := m.selectedSessionID(); ok {
			if err := m.hist.Delete(id); err != nil {
				m.errText = err.Error()
			}
			m.searchRows = nil
			m.searchQuery = ""
			m.rebuildHistoryRows()
		}

	case key.Matches(msg, m.keys.Select):
		if id, ok := m.selectedSessionID(); ok {
			m.requestLoad(id)
		}
	}
	return m, nil
}

func (m Model) handleScenesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.scenes.Scenes()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sceneSel > 0 {
			m.sceneSel--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sceneSel < len(list)-1 {
			m.sceneSel++
		}
	case key.Matches(msg, m.keys.MoveUp):
		if m.sceneSel > 0 {
			if err := m.scenes.Reorder(m.sceneSel, m.sceneSel-1); err == nil {
				m.sceneSel--
				m.ctrl.RefreshScenes()
			}
		}
	case key.Matches(msg, m.keys.MoveDn):
		if m.sceneSel < len(list)-1 {
			if err := m.scenes.Reorder(m.sceneSel, m.sceneSel+1); err == nil {
				m.sceneSel++
				m.ctrl.RefreshScenes()
			}
		}
	case key.Matches(msg, m.keys.Delete):
		if len(list) > 1 {
			if err := m.scenes.Delete(m.sceneSel); err != nil {
				m.errText = err.Error()
			} else {
				if m.sceneSel >= len(list)-1 {
					m.sceneSel = len(list) - 2
				}
				m.ctrl.RefreshScenes()
			}
		}
	case key.Matches(msg, m.keys.Select):
		if m.sceneSel >= 0 && m.sceneSel < len(list) {
			if err := m.ctrl.SelectScene(list[m.sceneSel].ID); err != nil {
				m.errText = err.Error()
			}
			m.active = overlayNone
		}
	}
	return m, nil
}

func (m Model) handleModelsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	catalog := models.Catalog()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.modelSel > 0 {
			m.modelSel--
		}
	case key.Matches(msg, m.keys.Down):
		if m.modelSel < len(catalog)-1 {
			m.modelSel++
		}
	case key.Matches(msg, m.keys.Select):
		if m.modelSel >= 0 && m.modelSel < len(catalog) {
			if err := m.ctrl.SelectModel(catalog[m.modelSel].ID); err != nil {
				m.errText = err.Error()
			}
			m.active = overlayNone
		}
	}
	return m, nil
}

// ============================================================================
// HISTORY OVERLAY HELPERS
// ============================================================================

func (m *Model) rebuildHistoryRows() {
	var rows []historyRow
	for _, g := range m.hist.ListGroupedByDate() {
		rows = append(rows, historyRow{header: true, date: g.Date})
		for _, s := range g.Sessions {
			rows = append(rows, historyRow{session: s})
		}
	}
	m.histRows = rows
	m.histSel = 0
	m.skipHeaders(1)
}

// historyRowCount is the navigable row count for the current mode.
func (m Model) historyRowCount() int {
	if m.searchQuery != "" {
		return len(m.searchRows)
	}
	return len(m.histRows)
}

// skipHeaders moves the selection off date headers in the given direction.
func (m *Model) skipHeaders(dir int) {
	if m.searchQuery != "" {
		return
	}
	for m.histSel >= 0 && m.histSel < len(m.histRows) && m.histRows[m.histSel].header {
		m.histSel += dir
	}
	if m.histSel < 0 {
		m.histSel = 0
	}
	if m.histSel >= len(m.histRows) {
		m.histSel = len(m.histRows) - 1
	}
}

// selectedSessionID returns the session under the cursor, in either list
// or search mode.
func (m Model) selectedSessionID() (string, bool) {
	if m.searchQuery != "" {
		if m.histSel >= 0 && m.histSel < len(m.searchRows) {
			return m.searchRows[m.histSel].result.SessionID, true
		}
		return "", false
	}
	if m.histSel >= 0 && m.histSel < len(m.histRows) && !m.histRows[m.histSel].header {
		return m.histRows[m.histSel].session.ID, true
	}
	return "", false
}

// requestLoad posts the session through the signal channel; the main loop
// consumes it and the controller adopts the conversation.
func (m *Model) requestLoad(id string) {
	s, ok := m.hist.Load(id)
	if !ok {
		return
	}
	m.signals.RequestLoad(signal.LoadRequest{
		SessionID: s.ID,
		Messages:  s.Messages,
		SceneID:   s.Scene,
		ModelID:   s.Model,
	})
}

// searchCmd rebuilds the full-text index from the stored sessions and
// runs the query against it.
func searchCmd(hist *history.Store, query string) tea.Cmd {
	return func() tea.Msg {
		path, err := index.DefaultPath()
		if err != nil {
			return searchResultsMsg{err: err}
		}
		ix, err := index.Open(path)
		if err != nil {
			return searchResultsMsg{err: err}
		}
		defer ix.Close()

		if err := ix.Rebuild(hist.ListGroupedByDate()); err != nil {
			return searchResultsMsg{err: err}
		}
		results, err := ix.Search(query, 50)
		if err != nil {
			return searchResultsMsg{err: err}
		}

		rows := make([]searchRow, len(results))
		for i, r := range results {
			rows[i] = searchRow{result: r}
		}
		return searchResultsMsg{query: query, results: rows}
	}
}

// ============================================================================
// PICKER HELPERS
// ============================================================================

func (m Model) selectedSceneIndex() int {
	for i, s := range m.scenes.Scenes() {
		if s.ID == m.ctrl.SceneID() {
			return i
		}
	}
	return 0
}

func (m Model) selectedModelIndex() int {
	for i, md := range models.Catalog() {
		if md.ID == m.ctrl.ModelID() {
			return i
		}
	}
	return 0
}

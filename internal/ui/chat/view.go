// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// view.go - Rendering for the chat view and its overlays.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/lingualens/lingualens-tui/internal/conversation"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
	"github.com/lingualens/lingualens-tui/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return styles.Muted.Render("Starting...")
	}

	var body string
	switch m.active {
	case overlayHistory:
		body = m.viewHistory()
	case overlayScenes:
		body = m.viewScenes()
	case overlayModels:
		body = m.viewModels()
	case overlayHelp:
		body = m.viewHelp()
	default:
		body = m.vp.View()
	}

	return strings.Join([]string{
		m.viewHeader(),
		body,
		m.viewStatus(),
		m.input.View(),
		m.viewFooter(),
	}, "\n")
}

// ============================================================================
// CHROME
// ============================================================================

func (m Model) viewHeader() string {
	sc := m.ctrl.Scene()
	left := styles.Title.Render("LinguaLens") + "  " +
		styles.Info.Render(sc.DisplayName(m.englishUI)) + "  " +
		styles.Muted.Render(m.ctrl.ModelID())
	return left
}

func (m Model) viewStatus() string {
	switch m.ctrl.Status() {
	case conversation.StatusSubmitted:
		return m.spin.View() + styles.Warning.Render(" sending...")
	case conversation.StatusStreaming:
		return m.spin.View() + styles.Warning.Render(" translating... (Esc to stop)")
	case conversation.StatusError:
		if err := m.ctrl.LastError(); err != nil {
			msg := styles.Error.Render("error: " + err.Error())
			if models.IsDefault(m.ctrl.ModelID()) {
				msg += styles.Muted.Render("  (default model in use; C-o to switch)")
			}
			return msg
		}
	}
	if m.errText != "" {
		return styles.Error.Render("error: " + m.errText)
	}
	return ""
}

func (m Model) viewFooter() string {
	return styles.Muted.Render("Enter send | C-n new | C-h history | C-s scenes | C-o models | C-g help | C-q quit")
}

// ============================================================================
// TRANSCRIPT
// ============================================================================

// refreshTranscript re-renders the conversation into the viewport and
// follows the tail.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderTranscript())
	m.vp.GotoBottom()
}

func (m Model) renderTranscript() string {
	msgs := m.ctrl.Messages()
	if len(msgs) == 0 {
		sc := m.ctrl.Scene()
		return "\n" + styles.Muted.Render("  "+sc.Description) + "\n\n" +
			styles.Muted.Render("  Type below to start translating.")
	}

	var b strings.Builder
	for _, msg := range msgs {
		if msg.Role == "user" {
			b.WriteString(styles.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(indent(msg.Content, 2))
			b.WriteString("\n\n")
			continue
		}

		b.WriteString(styles.AssistantLabel.Render("Translation"))
		b.WriteString("\n")
		b.WriteString(m.renderAssistant(msg.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// renderAssistant renders assistant markdown, falling back to plain text
// when the renderer is unavailable.
func (m Model) renderAssistant(content string) string {
	if content == "" {
		return styles.Muted.Render("  ...")
	}
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return indent(content, 2) + "\n"
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}

// ============================================================================
// HISTORY OVERLAY
// ============================================================================

func (m Model) viewHistory() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("History"))
	b.WriteString("  ")
	b.WriteString(styles.Muted.Render("Enter load | d delete | / search | Esc close"))
	b.WriteString("\n\n")

	if m.searching {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n\n")
	}

	if m.searchQuery != "" {
		b.WriteString(m.viewSearchResults())
	} else {
		b.WriteString(m.viewHistoryList())
	}
	return m.fitOverlay(b.String())
}

func (m Model) viewHistoryList() string {
	if len(m.histRows) == 0 {
		return styles.Muted.Render("  No saved conversations.")
	}

	var b strings.Builder
	for i, row := range m.histRows {
		if row.header {
			b.WriteString(styles.Info.Render(row.date))
			b.WriteString("\n")
			continue
		}

		s := row.session
		sceneName := s.Scene
		if sc, ok := m.scenes.FindByID(s.Scene); ok {
			sceneName = sc.DisplayName(m.englishUI)
		}
		line := fmt.Sprintf("  %s  %s  %s",
			time.UnixMilli(s.Timestamp).Format("15:04"),
			util.PadWidth(s.Preview(), 42),
			sceneName)
		if i == m.histSel {
			line = styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewSearchResults() string {
	var b strings.Builder
	b.WriteString(styles.Info.Render(fmt.Sprintf("Results for %q", m.searchQuery)))
	b.WriteString("\n")

	if len(m.searchRows) == 0 {
		b.WriteString(styles.Muted.Render("  No matches."))
		return b.String()
	}

	for i, row := range m.searchRows {
		r := row.result
		line := fmt.Sprintf("  %s  %s", r.Date, util.TruncateRunes(r.Snippet, 60))
		if i == m.histSel {
			line = styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// ============================================================================
// PICKER OVERLAYS
// ============================================================================

func (m Model) viewScenes() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Scenes"))
	b.WriteString("  ")
	b.WriteString(styles.Muted.Render("Enter select | K/J reorder | d delete | Esc close"))
	b.WriteString("\n\n")

	current := m.ctrl.SceneID()
	for i, s := range m.scenes.Scenes() {
		marker := "  "
		if s.ID == current {
			marker = styles.Prompt.Render("* ")
		}
		line := marker + util.PadWidth(s.DisplayName(m.englishUI), 24) + styles.Muted.Render(util.TruncateRunes(s.Description, 40))
		if i == m.sceneSel {
			line = styles.Selected.Render(marker + util.PadWidth(s.DisplayName(m.englishUI), 24) + util.TruncateRunes(s.Description, 40))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return m.fitOverlay(b.String())
}

func (m Model) viewModels() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Models"))
	b.WriteString("  ")
	b.WriteString(styles.Muted.Render("Enter select | Esc close"))
	b.WriteString("\n\n")

	current := m.ctrl.ModelID()
	for i, md := range models.Catalog() {
		marker := "  "
		if md.ID == current {
			marker = styles.Prompt.Render("* ")
		}
		line := marker + util.PadWidth(md.DisplayName, 24) + styles.Muted.Render(md.Description)
		if i == m.modelSel {
			line = styles.Selected.Render(marker + util.PadWidth(md.DisplayName, 24) + md.Description)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return m.fitOverlay(b.String())
}

func (m Model) viewHelp() string {
	help := strings.Join([]string{
		styles.Title.Render("Keys"),
		"",
		"Enter      send the input",
		"Ctrl+J     insert a line break",
		"Esc        stop the current translation",
		"Ctrl+N     start a new conversation",
		"Ctrl+H     browse saved conversations",
		"Ctrl+S     pick a scene",
		"Ctrl+O     pick a model",
		"PgUp/PgDn  scroll the transcript",
		"Ctrl+Q     quit",
	}, "\n")
	return m.fitOverlay(help)
}

// fitOverlay pads overlay content to the viewport height so the chrome
// below does not jump around.
func (m Model) fitOverlay(content string) string {
	lines := strings.Count(content, "\n") + 1
	if lines < m.vp.Height {
		content += strings.Repeat("\n", m.vp.Height-lines)
	}
	return content
}

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved conversations to portable formats for
// sharing and archival: Markdown with YAML frontmatter, and JSON that
// round-trips the stored session verbatim.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lingualens/lingualens-tui/internal/history"
)

// ============================================================================
// OPTIONS
// ============================================================================

// Options controls what the exporters include.
type Options struct {
	// IncludeMetadata adds frontmatter and a session info section.
	IncludeMetadata bool
	// IncludeTimestamps adds per-message times where known.
	IncludeTimestamps bool
	// SceneName is the resolved display name for the session's scene.
	// Empty falls back to the raw scene id.
	SceneName string
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// Exporter renders one session to a byte slice.
type Exporter interface {
	Export(s history.Session) ([]byte, error)
	FileExtension() string
}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch format {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want md or json)", format)
	}
}

// ============================================================================
// JSON
// ============================================================================

// JSONExporter writes the complete stored session so the output can be
// re-imported. It ignores Options on purpose.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export renders the session as indented JSON.
func (e *JSONExporter) Export(s history.Session) ([]byte, error) {
	if len(s.Messages) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}
	return json.MarshalIndent(s, "", "  ")
}

// FileExtension returns ".json".
func (e *JSONExporter) FileExtension() string { return ".json" }

// ============================================================================
// MARKDOWN
// ============================================================================

// MarkdownExporter renders a readable transcript.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders the session as Markdown.
func (e *MarkdownExporter) Export(s history.Session) ([]byte, error) {
	if len(s.Messages) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}

	sceneName := e.options.SceneName
	if sceneName == "" {
		sceneName = s.Scene
	}
	title := s.Preview()
	if title == "" {
		title = "Conversation"
	}

	var sb strings.Builder
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
		sb.WriteString(fmt.Sprintf("scene: %s\n", escapeYAML(sceneName)))
		sb.WriteString(fmt.Sprintf("model: %s\n", s.Model))
		sb.WriteString(fmt.Sprintf("date: %s\n", s.Date))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(s.Messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: lingualens\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	for i, msg := range s.Messages {
		label := roleLabel(msg.Role)
		if e.options.IncludeTimestamps && msg.CreatedAt > 0 {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				label, time.UnixMilli(msg.CreatedAt).Format("15:04:05")))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
		if i < len(s.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string { return ".md" }

func roleLabel(role string) string {
	switch role {
	case "user":
		return "You"
	case "assistant":
		return "Translation"
	default:
		return role
	}
}

// escapeYAML quotes values that would break frontmatter parsing.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#\"'\n") {
		return fmt.Sprintf("%q", strings.ReplaceAll(s, "\n", " "))
	}
	return s
}

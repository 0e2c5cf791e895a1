// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot translation for scripting and piped input.
//
// Command: ask [text]
//
// Examples:
//   lingualens ask "Could we reschedule to Friday?"
//   lingualens ask -s builtin-business-email "We regret the delay"
//   cat draft.txt | lingualens ask
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"

	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// markdownRenderer renders assistant output on TTYs. nil when glamour
// initialization fails; output then falls back to plain text.
var markdownRenderer *glamour.TermRenderer

func init() {
	markdownRenderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(DefaultTerminalWidth),
	)
}

func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// HandleAskCommand translates a single input and exits.
func HandleAskCommand(args Args) error {
	app, err := Bootstrap()
	if err != nil {
		return err
	}

	text := strings.TrimSpace(args.Text)
	if text == "" {
		// Accept piped input so `cat file | lingualens ask` works.
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			data, err := io.ReadAll(bufio.NewReader(os.Stdin))
			if err == nil {
				text = strings.TrimSpace(string(data))
			}
		}
	}
	if text == "" {
		return fmt.Errorf("no text provided. Usage: lingualens ask \"your text\"")
	}

	sc, err := app.ResolveScene(args.Scene)
	if err != nil {
		return err
	}
	modelID, err := app.ResolveModel(args.Model)
	if err != nil {
		return err
	}
	app.Client.SetModel(modelID)

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s | %s %s\n",
			styles.Info.Render("Scene:"),
			sc.DisplayName(app.EnglishUI()),
			styles.Info.Render("Model:"),
			modelID)
	}

	// Ctrl+C cancels the stream; whatever arrived is still printed.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// On a TTY the response is collected and rendered as markdown at the
	// end; piped output streams through untouched.
	useMarkdown := IsStdoutTTY()

	var full strings.Builder
	err = app.Client.ChatStream(ctx, sc.Prompt, []gemini.Message{gemini.NewUserMessage(text)}, func(delta string) {
		full.WriteString(delta)
		if !useMarkdown {
			fmt.Print(delta)
		}
	})
	if err != nil {
		if full.Len() > 0 && !useMarkdown {
			fmt.Println()
		}
		if models.IsDefault(modelID) {
			fmt.Fprintln(os.Stderr, styles.Muted.Render("default model in use; try -m to pick another"))
		}
		return fmt.Errorf("translation failed: %w", err)
	}

	if useMarkdown {
		fmt.Print(renderMarkdown(full.String()))
	} else {
		fmt.Println()
	}
	return nil
}

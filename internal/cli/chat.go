// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive translation REPL for terminals where the full TUI
// is unwanted (ssh, minimal terminals, scripting around a session).
//
// Command: chat
//
// Interactive commands:
//   /help            Show commands
//   /scene [id]      Show or switch scene
//   /scenes          List scenes
//   /model [id]      Show or switch model
//   /locales         List supported UI languages
//   /clear           Start a fresh conversation
//   /quit            Exit (also Ctrl+D)
//   Ctrl+C           Cancel the current generation
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/lingualens/lingualens-tui/internal/config"
	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/locale"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// chatREPL holds the live state of one interactive session.
type chatREPL struct {
	app       *App
	line      *liner.State
	histFile  string
	sc        scene.Scene
	modelID   string
	sessionID string
	messages  []history.Message
}

// HandleChatCommand runs the interactive REPL.
func HandleChatCommand(args Args) error {
	if !IsTTY() {
		return fmt.Errorf("chat requires an interactive terminal; use `lingualens ask` for piped input")
	}

	app, err := Bootstrap()
	if err != nil {
		return err
	}
	sc, err := app.ResolveScene(args.Scene)
	if err != nil {
		return err
	}
	modelID, err := app.ResolveModel(args.Model)
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	r := &chatREPL{app: app, line: line, sc: sc, modelID: modelID}
	if dir, err := config.Dir(); err == nil {
		r.histFile = filepath.Join(dir, "cli_history")
		r.loadInputHistory()
	}
	defer r.saveInputHistory()

	fmt.Printf("%s %s\n", styles.Title.Render("lingualens chat"), styles.Muted.Render(Version))
	r.printStatus()
	fmt.Println(styles.Muted.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Println()

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.command(input); quit {
				return nil
			}
			continue
		}

		r.send(input)
	}
}

// printStatus shows the active scene and model.
func (r *chatREPL) printStatus() {
	fmt.Printf("%s %s | %s %s\n",
		styles.Info.Render("Scene:"),
		r.sc.DisplayName(r.app.EnglishUI()),
		styles.Info.Render("Model:"),
		r.modelID)
}

// command handles a /command line. Returns true to exit the REPL.
func (r *chatREPL) command(input string) bool {
	fields := strings.Fields(input)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println(styles.Muted.Render(
			"/scene [id]  show or switch scene\n" +
				"/scenes      list scenes\n" +
				"/model [id]  show or switch model\n" +
				"/locales     list supported UI languages\n" +
				"/clear       start a fresh conversation\n" +
				"/quit        exit"))

	case "/clear", "/c":
		r.sessionID = ""
		r.messages = nil
		fmt.Println(styles.Success.Render("Conversation cleared."))

	case "/locales":
		for _, tag := range locale.Supported() {
			marker := "  "
			if tag == r.app.Locale {
				marker = styles.Prompt.Render("* ")
			}
			fmt.Printf("%s%s  %s\n", marker,
				locale.SelfName(tag),
				styles.Muted.Render(locale.LanguageName(r.app.Locale, tag)))
		}

	case "/scenes":
		for _, s := range r.app.Scenes.Scenes() {
			marker := "  "
			if s.ID == r.sc.ID {
				marker = styles.Prompt.Render("* ")
			}
			fmt.Printf("%s%s  %s\n", marker, s.DisplayName(r.app.EnglishUI()), styles.Muted.Render(s.ID))
		}

	case "/scene":
		if arg == "" {
			r.printStatus()
			break
		}
		sc, err := r.app.ResolveScene(arg)
		if err != nil {
			fmt.Println(styles.Error.Render(err.Error()))
			break
		}
		r.sc = sc
		if err := r.app.KV.Set(kvstore.KeySelectedScene, sc.ID); err != nil {
			fmt.Println(styles.Warning.Render("selection not saved: " + err.Error()))
		}
		fmt.Printf("%s %s\n", styles.Success.Render("Scene:"), sc.DisplayName(r.app.EnglishUI()))

	case "/model":
		if arg == "" {
			r.printStatus()
			break
		}
		if err := models.Validate(arg); err != nil {
			fmt.Println(styles.Error.Render(err.Error()))
			break
		}
		r.modelID = arg
		if err := r.app.KV.Set(kvstore.KeySelectedModel, arg); err != nil {
			fmt.Println(styles.Warning.Render("selection not saved: " + err.Error()))
		}
		fmt.Printf("%s %s\n", styles.Success.Render("Model:"), arg)

	default:
		fmt.Println(styles.Error.Render("unknown command: " + fields[0]))
	}
	return false
}

// send streams one translation turn and persists the session.
func (r *chatREPL) send(text string) {
	if r.sessionID == "" {
		r.sessionID = r.app.History.CreateSession(r.sc.ID, r.modelID)
	}

	r.messages = append(r.messages, history.Message{
		ID:      fmt.Sprintf("%s-%d", r.sessionID, len(r.messages)),
		Role:    "user",
		Content: text,
	})

	wire := make([]gemini.Message, 0, len(r.messages))
	for _, m := range r.messages {
		if m.Role == "assistant" {
			wire = append(wire, gemini.NewAssistantMessage(m.Content))
		} else {
			wire = append(wire, gemini.NewUserMessage(m.Content))
		}
	}

	// Ctrl+C cancels the generation, not the REPL. The partial reply is
	// kept and persisted, matching the TUI's stop behavior.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := r.app.Client.WithModel(r.modelID)
	var full strings.Builder
	err := client.ChatStream(ctx, r.sc.Prompt, wire, func(delta string) {
		full.WriteString(delta)
		fmt.Print(delta)
	})
	fmt.Println()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, styles.Error.Render("error: "+err.Error()))
			if models.IsDefault(r.modelID) {
				fmt.Fprintln(os.Stderr, styles.Muted.Render("default model in use; /model to pick another"))
			}
			// The user turn stays in the transcript so a retry has context.
			r.persist()
			return
		}
		fmt.Fprintln(os.Stderr, styles.Warning.Render("[stopped]"))
		if full.Len() > 0 {
			full.WriteString("\n\n[stopped]")
		} else {
			full.WriteString("[stopped]")
		}
	}

	r.messages = append(r.messages, history.Message{
		ID:      fmt.Sprintf("%s-%d", r.sessionID, len(r.messages)),
		Role:    "assistant",
		Content: full.String(),
	})
	r.persist()
}

func (r *chatREPL) persist() {
	if err := r.app.History.Upsert(r.sessionID, r.messages, r.sc.ID, r.modelID); err != nil {
		fmt.Fprintln(os.Stderr, styles.Warning.Render("history not saved: "+err.Error()))
	}
}

func (r *chatREPL) loadInputHistory() {
	if f, err := os.Open(r.histFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *chatREPL) saveInputHistory() {
	if r.histFile == "" {
		return
	}
	if f, err := os.Create(r.histFile); err == nil {
		_, _ = r.line.WriteHistory(f)
		f.Close()
	}
}

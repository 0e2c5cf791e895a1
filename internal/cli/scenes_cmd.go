// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// scenes_cmd.go - Scene management from the command line.
//
// Command: scenes [list|add <name> <name-en> <description...>|edit <id>|reset]
//
// The prompt body for add and edit comes from stdin when it is piped
// (`lingualens scenes add ... < prompt.txt`); on a terminal it is generated
// from the scene name and description through the configured backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// HandleScenesCommand dispatches the scenes subcommands.
func HandleScenesCommand(args Args) error {
	app, err := Bootstrap()
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list":
		return scenesList(app, args.Verbose)
	case "add":
		if len(args.Raw) < 3 {
			return fmt.Errorf("usage: lingualens scenes add <name> <name-en> <description...>")
		}
		return scenesAdd(app, args.Raw[0], args.Raw[1], strings.Join(args.Raw[2:], " "))
	case "edit":
		if len(args.Raw) == 0 {
			return fmt.Errorf("usage: lingualens scenes edit <id-or-name>")
		}
		return scenesEdit(app, args.Raw[0])
	case "reset":
		return scenesReset(app)
	default:
		return fmt.Errorf("unknown scenes subcommand: %s", args.Subcommand)
	}
}

func scenesList(app *App, verbose bool) error {
	selected, _, _ := app.KV.Get(kvstore.KeySelectedScene)
	english := app.EnglishUI()

	for _, s := range app.Scenes.Scenes() {
		marker := "  "
		if s.ID == selected {
			marker = styles.Prompt.Render("* ")
		}
		fmt.Printf("%s%s\n", marker, s.DisplayName(english))
		if verbose {
			fmt.Printf("    %s\n    %s\n", styles.Muted.Render(s.ID), styles.Info.Render(s.Description))
		}
	}
	return nil
}

func scenesAdd(app *App, name, nameEN, description string) error {
	prompt, err := promptBody(app, nameEN, description)
	if err != nil {
		return err
	}

	draft := scene.Scene{Name: name, NameEN: nameEN, Description: description, Prompt: prompt}
	if err := draft.Validate(); err != nil {
		return err
	}
	added, err := app.Scenes.Add(draft)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s  %s\n", styles.Success.Render("Added:"),
		added.DisplayName(app.EnglishUI()), styles.Muted.Render(added.ID))
	return nil
}

func scenesEdit(app *App, ref string) error {
	target, err := app.ResolveScene(ref)
	if err != nil {
		return err
	}

	prompt, err := promptBody(app, target.NameEN, target.Description)
	if err != nil {
		return err
	}
	target.Prompt = prompt
	if err := target.Validate(); err != nil {
		return err
	}

	index := -1
	for i, s := range app.Scenes.Scenes() {
		if s.ID == target.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("scene %q disappeared while editing", ref)
	}
	if err := app.Scenes.Edit(index, target); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", styles.Success.Render("Updated:"), target.DisplayName(app.EnglishUI()))
	return nil
}

func scenesReset(app *App) error {
	if err := app.Scenes.ResetToDefaults(); err != nil {
		return err
	}
	fmt.Println(styles.Success.Render("Scene list restored to builtins."))
	return nil
}

// promptBody reads the prompt text from piped stdin, or generates one from
// the name and description when stdin is a terminal.
func promptBody(app *App, name, description string) (string, error) {
	if !IsTTY() {
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		return strings.TrimSpace(string(body)), nil
	}

	if !app.Client.IsConfigured() {
		return "", fmt.Errorf("no API key configured; pipe the prompt body on stdin instead")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, styles.Muted.Render("generating prompt..."))
	var full strings.Builder
	err := app.Client.GeneratePrompt(ctx, name, description, func(delta string) {
		full.WriteString(delta)
		fmt.Fprint(os.Stderr, delta)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("prompt generation failed: %w", err)
	}
	return strings.TrimSpace(full.String()), nil
}

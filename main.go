// LinguaLens TUI - locale-aware AI translation chat for the terminal.
//
// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lingualens/lingualens-tui/internal/cli"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/signal"
	"github.com/lingualens/lingualens-tui/internal/ui/chat"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, cli.Usage())
		os.Exit(2)
	}

	switch cmd {
	case cli.CmdTUI:
		if err := runTUI(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdAsk:
		exit(cli.HandleAskCommand(args))
	case cli.CmdChat:
		exit(cli.HandleChatCommand(args))
	case cli.CmdServe:
		exit(cli.HandleServeCommand(args))
	case cli.CmdHistory:
		exit(cli.HandleHistoryCommand(args))
	case cli.CmdScenes:
		exit(cli.HandleScenesCommand(args))
	case cli.CmdVersion:
		fmt.Println(cli.VersionString())
	case cli.CmdHelp:
		fmt.Print(cli.Usage())
	}
}

func exit(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI wires the stores, signal channel, and controller, then hands the
// terminal to Bubble Tea.
func runTUI(args cli.Args) error {
	app, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	styles.ForceTheme(app.Cfg.UI.Theme)

	if !app.Client.IsConfigured() {
		fmt.Fprintln(os.Stderr, styles.Warning.Render(
			"No API key configured. Set api.key in ~/.lingualens/config.toml or LINGUALENS_API_KEY."))
	}

	// Flag overrides become the persisted selections before the
	// controller restores them.
	if args.Scene != "" {
		sc, err := app.ResolveScene(args.Scene)
		if err != nil {
			return err
		}
		if err := app.KV.Set(kvstore.KeySelectedScene, sc.ID); err != nil {
			return err
		}
	}
	if args.Model != "" {
		modelID, err := app.ResolveModel(args.Model)
		if err != nil {
			return err
		}
		if err := app.KV.Set(kvstore.KeySelectedModel, modelID); err != nil {
			return err
		}
	}

	signals := signal.NewChannel()
	defer signals.Close()

	ctrl := app.NewController(signals)

	watcher, err := kvstore.NewWatcher(app.KV)
	if err != nil {
		// Cross-process refresh degrades; the TUI still works.
		log.Printf("store watcher unavailable: %v", err)
		watcher = nil
	} else {
		defer watcher.Close()
	}

	// TUI logs go to a file so they do not tear the alternate screen.
	if f, err := tea.LogToFile(logPath(), "lingualens"); err == nil {
		defer f.Close()
	}

	m := chat.New(ctrl, signals, app.History, app.Scenes, watcher, app.EnglishUI())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	_, err = p.Run()
	return err
}

func logPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lingualens.log"
	}
	return home + "/.lingualens/lingualens.log"
}

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Saved conversation management from the command line.
//
// Command: history [list|search <query>|export <id> [md|json]|clear [today|all|YYYY-MM-DD]]
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/lingualens/lingualens-tui/internal/export"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/index"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// HandleHistoryCommand dispatches the history subcommands.
func HandleHistoryCommand(args Args) error {
	app, err := Bootstrap()
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list":
		return historyList(app)
	case "search":
		if len(args.Raw) == 0 {
			return fmt.Errorf("usage: lingualens history search <query>")
		}
		query := ""
		for i, w := range args.Raw {
			if i > 0 {
				query += " "
			}
			query += w
		}
		return historySearch(app, query)
	case "export":
		if len(args.Raw) == 0 {
			return fmt.Errorf("usage: lingualens history export <session-id> [md|json]")
		}
		format := ""
		if len(args.Raw) > 1 {
			format = args.Raw[1]
		}
		return historyExport(app, args.Raw[0], format)
	case "clear":
		target := ""
		if len(args.Raw) > 0 {
			target = args.Raw[0]
		}
		return historyClear(app, target)
	default:
		return fmt.Errorf("unknown history subcommand: %s", args.Subcommand)
	}
}

func historyList(app *App) error {
	groups := app.History.ListGroupedByDate()
	if len(groups) == 0 {
		fmt.Println(styles.Muted.Render("No saved conversations."))
		return nil
	}

	english := app.EnglishUI()
	for _, g := range groups {
		fmt.Println(styles.Title.Render(g.Date))
		for _, s := range g.Sessions {
			sceneName := s.Scene
			if sc, ok := app.Scenes.FindByID(s.Scene); ok {
				sceneName = sc.DisplayName(english)
			}
			ts := time.UnixMilli(s.Timestamp).Format("15:04")
			fmt.Printf("  %s  %s  %s %s\n",
				styles.Muted.Render(ts),
				s.Preview(),
				styles.Info.Render(sceneName),
				styles.Muted.Render(s.ID))
		}
	}
	return nil
}

// historySearch rebuilds the full-text index from the stored sessions and
// queries it. The index is derived state, so rebuilding on every search
// keeps it trivially consistent at CLI scale.
func historySearch(app *App, query string) error {
	path, err := index.DefaultPath()
	if err != nil {
		return err
	}
	ix, err := index.Open(path)
	if err != nil {
		return err
	}
	defer ix.Close()

	if err := ix.Rebuild(app.History.ListGroupedByDate()); err != nil {
		return err
	}
	results, err := ix.Search(query, 20)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println(styles.Muted.Render("No matches."))
		return nil
	}

	english := app.EnglishUI()
	for _, r := range results {
		sceneName := r.Scene
		if sc, ok := app.Scenes.FindByID(r.Scene); ok {
			sceneName = sc.DisplayName(english)
		}
		fmt.Printf("%s  %s  %s\n  %s\n",
			styles.Muted.Render(r.Date),
			styles.Info.Render(sceneName),
			styles.Muted.Render(r.SessionID),
			r.Snippet)
	}
	return nil
}

// historyExport writes one saved conversation to stdout in the requested
// format. Redirect to a file to save it.
func historyExport(app *App, sessionID, format string) error {
	s, ok := app.History.Load(sessionID)
	if !ok {
		return fmt.Errorf("no conversation with id %q", sessionID)
	}

	opts := export.DefaultOptions()
	if sc, found := app.Scenes.FindByID(s.Scene); found {
		opts.SceneName = sc.DisplayName(app.EnglishUI())
	}
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return err
	}
	out, err := exp.Export(s)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func historyClear(app *App, target string) error {
	switch target {
	case "", "all":
		if err := app.History.ClearAll(); err != nil {
			return err
		}
		fmt.Println(styles.Success.Render("All conversations cleared."))
	case "today":
		if err := app.History.ClearToday(); err != nil {
			return err
		}
		fmt.Println(styles.Success.Render("Today's conversations cleared."))
	default:
		if _, err := time.Parse(history.DateLayout, target); err != nil {
			return fmt.Errorf("expected today, all, or a YYYY-MM-DD date, got %q", target)
		}
		if err := app.History.ClearByDate(target); err != nil {
			return err
		}
		fmt.Println(styles.Success.Render("Conversations on " + target + " cleared."))
	}
	return nil
}

// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Runs the local HTTP API so other tools (editors, scripts,
// the browser extension) can reuse the configured backend.
//
// Command: serve [--addr HOST:PORT]
package cli

import (
	"fmt"
	"os"

	"github.com/lingualens/lingualens-tui/internal/server"
	"github.com/lingualens/lingualens-tui/internal/ui/styles"
)

// HandleServeCommand starts the HTTP proxy and blocks until it fails.
func HandleServeCommand(args Args) error {
	app, err := Bootstrap()
	if err != nil {
		return err
	}

	if !app.Client.IsConfigured() {
		fmt.Fprintln(os.Stderr, styles.Warning.Render(
			"no API key configured; requests will fail until one is set"))
	}

	cfg := app.Cfg.Server
	if args.Addr != "" {
		cfg.Addr = args.Addr
	}

	if !args.Quiet {
		fmt.Printf("%s http://%s\n", styles.Title.Render("lingualens serve"), cfg.Addr)
	}
	return server.New(app.Client, app.Scenes, cfg).ListenAndServe()
}

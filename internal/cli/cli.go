// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Argument parsing and command dispatch for the lingualens binary.
package cli

import (
	"fmt"
	"strings"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command identifies the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdServe
	CmdHistory
	CmdScenes
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model   string
	Scene   string
	Quiet   bool
	Verbose bool

	// Command-specific
	Text       string
	Subcommand string
	Addr       string

	// Raw positional args remaining after flag parsing
	Raw []string
}

const usageText = `lingualens - locale-aware AI translation chat

Usage:
  lingualens                       Start the TUI (default)
  lingualens ask "text"            Translate once and exit
  lingualens chat                  Interactive translation REPL
  lingualens serve                 Run the local HTTP API
  lingualens history [subcommand]  Saved conversation management
  lingualens scenes [subcommand]   Manage translation scenes
  lingualens version               Print version
  lingualens help                  Show this help

Ask:
  lingualens ask "hello world"            Translate with the saved scene
  lingualens ask -s builtin-business-email "..."  Use a specific scene
  echo "hello" | lingualens ask           Read the text from stdin

History:
  lingualens history list                 List sessions grouped by date
  lingualens history search <query>       Full-text search over sessions
  lingualens history export <id> [md|json]  Print a session as Markdown or JSON
  lingualens history clear [today|all|YYYY-MM-DD]

Scenes:
  lingualens scenes list                  List scenes (default)
  lingualens scenes add <name> <name-en> <description...>
                                          Add a scene; the prompt body is read
                                          from stdin when piped, otherwise
                                          generated from the description
  lingualens scenes edit <id-or-name>     Replace a scene's prompt body, from
                                          stdin or regenerated
  lingualens scenes reset                 Restore the builtin scene list

Flags:
  -m, --model NAME    Model id (overrides the saved selection)
  -s, --scene ID      Scene id or name (overrides the saved selection)
  --addr HOST:PORT    Listen address for serve (default from config)
  -q, --quiet         Suppress status output
  -v, --verbose       Verbose output
`

// Usage returns the top-level help text.
func Usage() string { return usageText }

// Parse maps os.Args[1:] onto a command and its arguments.
func Parse(argv []string) (Command, Args, error) {
	args := Args{}
	cmd := CmdTUI

	var positional []string
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		switch {
		case a == "-m" || a == "--model":
			i++
			if i >= len(argv) {
				return cmd, args, fmt.Errorf("%s requires a value", a)
			}
			args.Model = argv[i]
		case a == "-s" || a == "--scene":
			i++
			if i >= len(argv) {
				return cmd, args, fmt.Errorf("%s requires a value", a)
			}
			args.Scene = argv[i]
		case a == "--addr":
			i++
			if i >= len(argv) {
				return cmd, args, fmt.Errorf("--addr requires a value")
			}
			args.Addr = argv[i]
		case a == "-q" || a == "--quiet":
			args.Quiet = true
		case a == "-v" || a == "--verbose":
			args.Verbose = true
		case a == "-h" || a == "--help":
			return CmdHelp, args, nil
		case strings.HasPrefix(a, "-"):
			return cmd, args, fmt.Errorf("unknown flag: %s", a)
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) == 0 {
		return CmdTUI, args, nil
	}

	switch positional[0] {
	case "ask":
		cmd = CmdAsk
		args.Text = strings.Join(positional[1:], " ")
	case "chat":
		cmd = CmdChat
	case "serve":
		cmd = CmdServe
	case "history":
		cmd = CmdHistory
		if len(positional) > 1 {
			args.Subcommand = positional[1]
			args.Raw = positional[2:]
		}
	case "scenes":
		cmd = CmdScenes
		if len(positional) > 1 {
			args.Subcommand = positional[1]
			args.Raw = positional[2:]
		}
	case "version":
		cmd = CmdVersion
	case "help":
		cmd = CmdHelp
	default:
		return cmd, args, fmt.Errorf("unknown command: %s", positional[0])
	}
	return cmd, args, nil
}

// VersionString formats the build identity for "lingualens version".
func VersionString() string {
	return fmt.Sprintf("lingualens %s (%s, built %s)", Version, GitCommit, BuildDate)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/lib/operator"
)

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:    "event",
		Summary: "Inspect and edit the event files",
		Description: `Inspect and edit the event collections on disk.

These commands read the files directly. Stop muster serve before
"event load", or the bot overwrites the change on its next save.`,
		Subcommands: []*cli.Command{
			eventListCommand(),
			eventShowCommand(),
			eventDumpCommand(),
			eventLoadCommand(),
		},
	}
}

// resolveEvent accepts an event ID or a YYYY-MM-DD date naming
// exactly one event.
func resolveEvent(database *eventdb.Database, reference string, archived bool) (*operation.Event, error) {
	if strings.Count(reference, "-") == 2 {
		location := database.Settings().Location
		if location == nil {
			location = time.UTC
		}
		date, err := time.ParseInLocation("2006-01-02", reference, location)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", reference)
		}
		return database.ByDate(date, archived)
	}
	id, err := strconv.Atoi(reference)
	if err != nil || id < 0 {
		return nil, fmt.Errorf("invalid event ID %q", reference)
	}
	return database.ByID(id, archived)
}

func eventListCommand() *cli.Command {
	var (
		options  configOptions
		archived bool
		output   cli.JSONOutput
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List events",
		Usage:   "muster event list [--archived] [--json]",
		Flags: flagSet("list", func(flags *pflag.FlagSet) {
			options.addFlags(flags)
			flags.BoolVar(&archived, "archived", false, "list the archive")
			output.AddFlag(flags)
		}),
		Run: func(ctx context.Context, _ []string) error {
			cfg, err := options.load()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg, clock.Real(), options.logger())
			if err != nil {
				return err
			}
			summaries := database.Summaries(archived)
			if done, err := output.EmitJSON(cli.Stdout(ctx), summaries); done {
				return err
			}
			writeList(cli.Stdout(ctx), summaries, database.Settings().Location)
			return nil
		},
	}
}

func eventShowCommand() *cli.Command {
	var (
		options  configOptions
		archived bool
		output   cli.JSONOutput
	)
	return &cli.Command{
		Name:    "show",
		Summary: "Show one event as its message would look",
		Usage:   "muster event show <id|date> [--archived] [--json]",
		Flags: flagSet("show", func(flags *pflag.FlagSet) {
			options.addFlags(flags)
			flags.BoolVar(&archived, "archived", false, "look in the archive")
			output.AddFlag(flags)
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: muster event show <id|date>")
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg, clock.Real(), options.logger())
			if err != nil {
				return err
			}
			event, err := resolveEvent(database, args[0], archived)
			if err != nil {
				return err
			}
			stdout := cli.Stdout(ctx)
			if output.OutputJSON {
				document, err := event.ToJSON(false)
				if err != nil {
					return err
				}
				var indented bytes.Buffer
				if err := json.Indent(&indented, document, "", "  "); err != nil {
					return err
				}
				indented.WriteByte('\n')
				return highlight(stdout, indented.String(), "json")
			}
			writeBody(stdout, event.BuildBody(false), time.Now(), database.Settings().Location)
			return nil
		},
	}
}

func eventDumpCommand() *cli.Command {
	var (
		options  configOptions
		archived bool
	)
	return &cli.Command{
		Name:        "dump",
		Summary:     "Print an event as editable YAML",
		Description: "Print the brief YAML form of an event, the same document the !dump chat command shows.",
		Usage:       "muster event dump <id|date> [--archived] > event.yaml",
		Flags: flagSet("dump", func(flags *pflag.FlagSet) {
			options.addFlags(flags)
			flags.BoolVar(&archived, "archived", false, "look in the archive")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: muster event dump <id|date>")
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg, clock.Real(), options.logger())
			if err != nil {
				return err
			}
			event, err := resolveEvent(database, args[0], archived)
			if err != nil {
				return err
			}
			text, err := operator.DumpYAML(event)
			if err != nil {
				return err
			}
			return highlight(cli.Stdout(ctx), string(text), "yaml")
		},
	}
}

func eventLoadCommand() *cli.Command {
	var options configOptions
	return &cli.Command{
		Name:    "load",
		Summary: "Replace an active event's contents with edited YAML",
		Usage:   "muster event load <id|date> <file.yaml | ->",
		Examples: []cli.Example{
			{
				Description: "Edit event 12 by hand",
				Command:     "muster event dump 12 > e.yaml && $EDITOR e.yaml && muster event load 12 e.yaml",
			},
		},
		Flags: flagSet("load", options.addFlags),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: muster event load <id|date> <file.yaml | ->")
			}
			text, err := readInput(args[1])
			if err != nil {
				return err
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg, clock.Real(), options.logger())
			if err != nil {
				return err
			}
			event, err := resolveEvent(database, args[0], false)
			if err != nil {
				return err
			}
			if err := operator.LoadYAML(event, text); err != nil {
				return err
			}
			if err := database.Save(false); err != nil {
				return err
			}
			fmt.Fprintf(cli.Stdout(ctx), "Loaded event %d. Its message is updated when muster serve next starts.\n", event.ID)
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/config"
	"github.com/bureau-foundation/muster/lib/version"
)

// Root builds the muster command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "muster",
		Description: `muster: event signups in a Matrix room.

Each scheduled event is one message in the events room. Users sign up
by reacting with a role's icon; operators edit events with ! commands
in the command room.`,
		Subcommands: []*cli.Command{
			serveCommand(),
			eventCommand(),
			exportCommand(),
			importCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(ctx context.Context, _ []string) error {
					fmt.Fprintf(cli.Stdout(ctx), "muster %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// configOptions is embedded by every command that reads the
// configuration.
type configOptions struct {
	path    string
	verbose bool
}

func (o *configOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.path, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
}

func (o *configOptions) load() (*config.Config, error) {
	if o.path != "" {
		return config.LoadFile(o.path)
	}
	return config.Load()
}

func (o *configOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return cli.NewCommandLogger(level)
}

func flagSet(name string, bind func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
		bind(flags)
		return flags
	}
}

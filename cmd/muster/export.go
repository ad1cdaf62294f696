// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/muster/lib/archive"
	"github.com/bureau-foundation/muster/lib/atomicfile"
	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/secret"
)

func exportCommand() *cli.Command {
	var (
		options     configOptions
		compression string
		recipients  []string
	)
	return &cli.Command{
		Name:    "export",
		Summary: "Write both event collections to one archive file",
		Description: `Write the active and archived events to one file.

The compression follows the file name (.zst, .lz4, anything else
uncompressed) unless --compression is given. With --recipient the file
is encrypted with age to every listed public key.`,
		Usage: "muster export <file> [--compression zstd|lz4|none] [--recipient age1...]",
		Examples: []cli.Example{
			{
				Description: "Nightly backup readable only by the admin key",
				Command:     "muster export /backup/muster-$(date +%F).zst.age --recipient age1...",
			},
		},
		Flags: flagSet("export", func(flags *pflag.FlagSet) {
			options.addFlags(flags)
			flags.StringVar(&compression, "compression", "", "zstd, lz4, or none (default: from the file name)")
			flags.StringArrayVar(&recipients, "recipient", nil, "age public key to encrypt to (repeatable)")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: muster export <file>")
			}
			path := args[0]
			writeOptions := archive.WriteOptions{
				Compression: archive.CompressionForPath(path),
				Recipients:  recipients,
			}
			if compression != "" {
				parsed, err := archive.ParseCompression(compression)
				if err != nil {
					return err
				}
				writeOptions.Compression = parsed
			}

			cfg, err := options.load()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg, clock.Real(), options.logger())
			if err != nil {
				return err
			}
			bundle, err := archive.Snapshot(database, time.Now())
			if err != nil {
				return err
			}
			var encoded bytes.Buffer
			if err := archive.Write(&encoded, bundle, writeOptions); err != nil {
				return err
			}
			if err := atomicfile.Write(path, encoded.Bytes(), 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cli.Stdout(ctx), "Exported %d active and %d archived events to %s (%s, %d bytes).\n",
				len(database.Active()), len(database.Archived()), path, writeOptions.Compression, encoded.Len())
			return nil
		},
	}
}

func importCommand() *cli.Command {
	var (
		options  configOptions
		identity string
		force    bool
	)
	return &cli.Command{
		Name:    "import",
		Summary: "Replace both event collections from an archive file",
		Description: `Replace the event files with the contents of an export.

Both collections are decoded and checked before anything is written.
Existing files are only replaced with --force. Stop muster serve first.`,
		Usage: "muster import <file> [--identity keyfile] [--force]",
		Flags: flagSet("import", func(flags *pflag.FlagSet) {
			options.addFlags(flags)
			flags.StringVar(&identity, "identity", "", "age identity file for encrypted exports")
			flags.BoolVar(&force, "force", false, "overwrite existing event files")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: muster import <file>")
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}

			var identities *secret.Buffer
			if identity != "" {
				identities, err = secret.ReadFile(identity)
				if err != nil {
					return err
				}
				defer identities.Close()
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			bundle, err := archive.Read(file, identities)
			if err != nil {
				if errors.Is(err, archive.ErrEncrypted) {
					return fmt.Errorf("%s is encrypted; pass --identity", args[0])
				}
				return err
			}

			settings, err := buildSettings(cfg)
			if err != nil {
				return err
			}
			active, archived, err := bundle.Validate(settings)
			if err != nil {
				return err
			}

			if !force {
				for _, path := range []string{cfg.Paths.Events, cfg.Paths.Archive} {
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("%s exists; pass --force to replace it", path)
					} else if !errors.Is(err, fs.ErrNotExist) {
						return err
					}
				}
			}
			if err := atomicfile.Write(cfg.Paths.Events, bundle.Active, 0o644); err != nil {
				return err
			}
			if err := atomicfile.Write(cfg.Paths.Archive, bundle.Archived, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cli.Stdout(ctx), "Imported %d active and %d archived events exported %s.\n",
				active, archived, bundle.Created.Format(time.RFC3339))
			return nil
		},
	}
}

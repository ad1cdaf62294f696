// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/notify"
	"github.com/bureau-foundation/muster/lib/operation"
)

// commands builds the chat command tree. The root has no name so help
// and errors name commands as typed after the prefix.
func (o *Operator) commands() *cli.Command {
	return &cli.Command{
		Summary: "Event roster commands. Events are named by ID or by date (YYYY-MM-DD).",
		Usage:   Prefix + "<command> [arguments]",
		Subcommands: []*cli.Command{
			o.createCommand("create", "Create an operation", false, false, operation.Size1PLT),
			o.createCommand("createside", "Create a side operation", true, false, operation.SizeSideop),
			o.createCommand("createreforger", "Create a Reforger operation", false, true, operation.Size1PLT),
			o.multicreateCommand(),
			o.addRoleCommand(),
			o.removeRoleCommand(),
			o.renameRoleCommand(),
			o.setDateCommand(),
			o.setTimeCommand(),
			o.setTextCommand("settitle", "Set or clear the title override", func(event *operation.Event, value string) {
				event.SetTitle(value)
			}),
			o.setTextCommand("setterrain", "Set the terrain", func(event *operation.Event, value string) {
				event.Terrain = value
			}),
			o.setTextCommand("setfaction", "Set the faction", func(event *operation.Event, value string) {
				event.Faction = value
			}),
			o.setTextCommand("setdescription", "Set or clear the description", func(event *operation.Event, value string) {
				event.Description = value
			}),
			o.setTextCommand("setmods", "Set or clear the mod list", func(event *operation.Event, value string) {
				event.Mods = value
			}),
			o.setPortCommand(),
			o.setTextCommand("setdlc", "Set or clear the required DLC", func(event *operation.Event, value string) {
				event.SetDLC(value)
			}),
			o.setTextCommand("setoverhaul", "Set or clear the overhaul mod", func(event *operation.Event, value string) {
				event.Overhaul = value
			}),
			o.cancelCommand(),
			o.signupCommand(),
			o.removeSignupCommand(),
			o.archiveCommand(),
			o.archivePastCommand(),
			o.deleteCommand(),
			o.deleteArchivedCommand(),
			o.sortCommand(),
			o.changeSizeCommand(),
			o.reorderCommand(),
			o.refreshCommand(),
			o.dumpCommand(),
			o.loadCommand(),
			o.listCommand(),
		},
	}
}

func flagSet(name string, bind func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
		bind(flags)
		return flags
	}
}

func requireArgs(args []string, count int, usage string) error {
	if len(args) < count {
		return fmt.Errorf("usage: %s%s", Prefix, usage)
	}
	return nil
}

func printf(ctx context.Context, format string, args ...any) {
	fmt.Fprintf(cli.Stdout(ctx), format+"\n", args...)
}

// event resolves an event reference: an ID, or a date naming exactly
// one event on that day.
func (o *Operator) event(reference string, archived bool) (*operation.Event, error) {
	if strings.Count(reference, "-") == 2 {
		date, err := parseDate(reference, o.location())
		if err != nil {
			return nil, err
		}
		return o.database.ByDate(date, archived)
	}
	id, err := parseEventID(reference)
	if err != nil {
		return nil, err
	}
	return o.database.ByID(id, archived)
}

func (o *Operator) location() *time.Location {
	if location := o.database.Settings().Location; location != nil {
		return location
	}
	return time.UTC
}

// commit saves the active collection and projects event.
func (o *Operator) commit(ctx context.Context, event *operation.Event, reorder bool) error {
	o.changed(notify.Updated, event)
	saveErr := o.database.Save(false)
	return errors.Join(saveErr, o.projector.Project(ctx, event, reorder))
}

// resort sorts the active collection and projects every event whose
// message slot changed.
func (o *Operator) resort(ctx context.Context) error {
	changed := o.database.Sort()
	if len(changed) == 0 {
		return nil
	}
	for _, event := range changed {
		o.changed(notify.Updated, event)
	}
	saveErr := o.database.Save(false)
	return errors.Join(saveErr, o.projector.Batch(ctx, changed, true))
}

func (o *Operator) createCommand(name, summary string, sideop, reforger bool, defaultSize operation.PlatoonSize) *cli.Command {
	var sizeName string
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   Prefix + name + " <YYYY-MM-DD> <HH:MM> [--size SIZE]",
		Flags: flagSet(name, func(flags *pflag.FlagSet) {
			flags.StringVar(&sizeName, "size", string(defaultSize), "platoon size (1PLT, 2PLT, sideop, WW2side, empty)")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, name+" <YYYY-MM-DD> <HH:MM>"); err != nil {
				return err
			}
			date, err := parseDateTime(args[0], args[1], o.location())
			if err != nil {
				return err
			}
			size, err := parseSize(sizeName)
			if err != nil {
				return err
			}
			event, err := o.create(ctx, date, sideop, size, reforger)
			if event != nil {
				printf(ctx, "Created event %d: %s on %s.", event.ID, event.Title(), event.Date.Format("2006-01-02 15:04 MST"))
			}
			return err
		},
	}
}

func (o *Operator) create(ctx context.Context, date time.Time, sideop bool, size operation.PlatoonSize, reforger bool) (*operation.Event, error) {
	event, err := o.database.CreateEvent(date, sideop, size, reforger)
	if err != nil {
		return nil, err
	}
	o.changed(notify.Created, event)
	if err := o.database.Save(false); err != nil {
		return event, err
	}
	if err := o.projector.Project(ctx, event, true); err != nil {
		return event, err
	}
	return event, o.resort(ctx)
}

func (o *Operator) multicreateCommand() *cli.Command {
	var sizeName string
	var sideop, reforger bool
	var interval time.Duration
	return &cli.Command{
		Name:    "multicreate",
		Summary: "Create a series of operations after confirmation",
		Usage:   Prefix + "multicreate <YYYY-MM-DD> <HH:MM> <count> [--interval 168h] [--size SIZE] [--sideop] [--reforger]",
		Flags: flagSet("multicreate", func(flags *pflag.FlagSet) {
			flags.StringVar(&sizeName, "size", string(operation.Size1PLT), "platoon size")
			flags.BoolVar(&sideop, "sideop", false, "create side operations")
			flags.BoolVar(&reforger, "reforger", false, "create Reforger operations")
			flags.DurationVar(&interval, "interval", 7*24*time.Hour, "time between operations")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 3, "multicreate <YYYY-MM-DD> <HH:MM> <count>"); err != nil {
				return err
			}
			first, err := parseDateTime(args[0], args[1], o.location())
			if err != nil {
				return err
			}
			count, err := parseCount(args[2])
			if err != nil {
				return err
			}
			size, err := parseSize(sizeName)
			if err != nil {
				return err
			}
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}

			dates := make([]time.Time, count)
			var prompt strings.Builder
			fmt.Fprintf(&prompt, "Create %d events?\n", count)
			days := int(interval / (24 * time.Hour))
			for index := range dates {
				if interval%(24*time.Hour) == 0 {
					dates[index] = first.AddDate(0, 0, index*days)
				} else {
					dates[index] = first.Add(time.Duration(index) * interval)
				}
				fmt.Fprintf(&prompt, "- %s\n", dates[index].Format("Monday 2006-01-02 15:04 MST"))
			}
			prompt.WriteString("Answer yes to create them.")

			answer, err := o.awaitReply(ctx, prompt.String())
			if err != nil {
				return fmt.Errorf("multicreate cancelled: %w", err)
			}
			if !strings.EqualFold(answer, "yes") && !strings.EqualFold(answer, "y") {
				printf(ctx, "Cancelled; no events created.")
				return nil
			}

			var created []string
			for _, date := range dates {
				event, err := o.create(ctx, date, sideop, size, reforger)
				if event != nil {
					created = append(created, fmt.Sprint(event.ID))
				}
				if err != nil {
					printf(ctx, "Created events %s before failing.", strings.Join(created, ", "))
					return err
				}
			}
			printf(ctx, "Created events %s.", strings.Join(created, ", "))
			return nil
		},
	}
}

func (o *Operator) addRoleCommand() *cli.Command {
	return &cli.Command{
		Name:    "addrole",
		Summary: "Add a role to the Additional group",
		Usage:   Prefix + "addrole <event> <name>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "addrole <event> <name>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")
			roleIcon, err := event.AddAdditional(name)
			if err != nil {
				return err
			}
			printf(ctx, "Added %s %s to event %d.", roleIcon.Key, name, event.ID)
			return o.commit(ctx, event, false)
		},
	}
}

func (o *Operator) removeRoleCommand() *cli.Command {
	return &cli.Command{
		Name:    "removerole",
		Summary: "Remove a role from the Additional group",
		Usage:   Prefix + "removerole <event> <name>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "removerole <event> <name>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			role, err := event.RemoveAdditional(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if member, ok := role.User(); ok {
				printf(ctx, "Removed %s from event %d; %s is no longer signed up.", role.Name, event.ID, member.Name)
			} else {
				printf(ctx, "Removed %s from event %d.", role.Name, event.ID)
			}
			return o.commit(ctx, event, true)
		},
	}
}

func (o *Operator) renameRoleCommand() *cli.Command {
	return &cli.Command{
		Name:    "renamerole",
		Summary: "Rename a role of the Additional group",
		Usage:   Prefix + "renamerole <event> <old name> <new name>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 3, "renamerole <event> <old name> <new name>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			role, err := event.RenameAdditional(args[1], strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			printf(ctx, "Renamed %s to %s in event %d.", args[1], role.Name, event.ID)
			return o.commit(ctx, event, false)
		},
	}
}

func (o *Operator) setDateCommand() *cli.Command {
	return &cli.Command{
		Name:    "setdate",
		Summary: "Move an event to another day, keeping its time",
		Usage:   Prefix + "setdate <event> <YYYY-MM-DD>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "setdate <event> <YYYY-MM-DD>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			day, err := parseDate(args[1], o.location())
			if err != nil {
				return err
			}
			event.SetDate(withClock(day, clockOf(event.Date)))
			printf(ctx, "Event %d is now on %s.", event.ID, event.Date.Format("2006-01-02 15:04 MST"))
			return errors.Join(o.commit(ctx, event, false), o.resort(ctx))
		},
	}
}

func (o *Operator) setTimeCommand() *cli.Command {
	return &cli.Command{
		Name:    "settime",
		Summary: "Change an event's start time",
		Usage:   Prefix + "settime <event> <HH:MM>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "settime <event> <HH:MM>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			offset, err := parseClock(args[1])
			if err != nil {
				return err
			}
			event.SetDate(withClock(event.Date, offset))
			printf(ctx, "Event %d now starts at %s.", event.ID, event.Date.Format("15:04 MST"))
			return errors.Join(o.commit(ctx, event, false), o.resort(ctx))
		},
	}
}

// setTextCommand builds a command that sets one free-text attribute.
// Without a value the attribute is cleared.
func (o *Operator) setTextCommand(name, summary string, set func(*operation.Event, string)) *cli.Command {
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   Prefix + name + " <event> [value]",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, name+" <event> [value]"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			value := strings.TrimSpace(strings.Join(args[1:], " "))
			set(event, value)
			printf(ctx, "Updated event %d.", event.ID)
			return o.commit(ctx, event, false)
		},
	}
}

func (o *Operator) setPortCommand() *cli.Command {
	return &cli.Command{
		Name:    "setport",
		Summary: "Set the server port (default or modded for the presets)",
		Usage:   Prefix + "setport <event> <port|default|modded>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "setport <event> <port|default|modded>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			settings := o.database.Settings()
			var port int
			switch strings.ToLower(args[1]) {
			case "default":
				port = settings.DefaultPort
			case "modded":
				port = settings.ModdedPort
			default:
				if port, err = parsePort(args[1]); err != nil {
					return err
				}
			}
			event.Port = port
			printf(ctx, "Event %d uses port %d.", event.ID, port)
			return o.commit(ctx, event, false)
		},
	}
}

func (o *Operator) cancelCommand() *cli.Command {
	var undo bool
	return &cli.Command{
		Name:    "cancel",
		Summary: "Mark an event cancelled (or not, with --undo)",
		Usage:   Prefix + "cancel <event> [--undo]",
		Flags: flagSet("cancel", func(flags *pflag.FlagSet) {
			flags.BoolVar(&undo, "undo", false, "reinstate the event")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "cancel <event>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			event.Cancelled = !undo
			if undo {
				printf(ctx, "Event %d is back on.", event.ID)
			} else {
				printf(ctx, "Event %d is cancelled.", event.ID)
			}
			return o.commit(ctx, event, true)
		},
	}
}

func (o *Operator) signupCommand() *cli.Command {
	var replace bool
	return &cli.Command{
		Name:    "signup",
		Summary: "Sign a user up for a role",
		Usage:   Prefix + "signup <event> <user> <role> [--replace]",
		Flags: flagSet("signup", func(flags *pflag.FlagSet) {
			flags.BoolVar(&replace, "replace", false, "replace the role's current holder")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 3, "signup <event> <user> <role>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			member, err := o.parseMember(ctx, args[1])
			if err != nil {
				return err
			}
			roleName := strings.Join(args[2:], " ")
			role, _ := event.FindRole(roleName)
			if role == nil {
				return fmt.Errorf("event %d has no role %s: %w", event.ID, roleName, operation.ErrNotFound)
			}
			previous, replaced, err := event.Signup(role, member, replace)
			if err != nil {
				return err
			}
			message := fmt.Sprintf("Signed %s up as %s in event %d.", member.Name, role.Name, event.ID)
			if previous != nil && previous != role {
				message += fmt.Sprintf(" They left %s.", previous.Name)
			}
			if replaced != nil && replaced.ID != member.ID {
				message += fmt.Sprintf(" %s was removed from the role.", replaced.Name)
			}
			printf(ctx, "%s", message)
			return o.commit(ctx, event, false)
		},
	}
}

func (o *Operator) removeSignupCommand() *cli.Command {
	return &cli.Command{
		Name:    "removesignup",
		Summary: "Remove a user's signup",
		Usage:   Prefix + "removesignup <event> <user>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "removesignup <event> <user>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			member, err := o.parseMember(ctx, args[1])
			if err != nil {
				return err
			}
			role := event.UndoSignup(member.ID)
			if role == nil {
				return fmt.Errorf("%s is not signed up for event %d: %w", member.Name, event.ID, operation.ErrNotFound)
			}
			printf(ctx, "Removed %s from %s in event %d.", member.Name, role.Name, event.ID)
			return o.commit(ctx, event, false)
		},
	}
}

// retire deletes the messages of events that left the active
// collection and saves the archive with their cleared handles.
func (o *Operator) retire(ctx context.Context, events []*operation.Event, action notify.Action, archived bool) error {
	var errs []error
	for _, event := range events {
		o.changed(action, event)
		if err := o.projector.Delete(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if archived {
		errs = append(errs, o.database.Save(true))
	}
	return errors.Join(errs...)
}

func (o *Operator) archiveCommand() *cli.Command {
	return &cli.Command{
		Name:    "archive",
		Summary: "Move an event to the archive and delete its message",
		Usage:   Prefix + "archive <event>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "archive <event>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			if err := o.database.Archive(event); err != nil {
				return err
			}
			printf(ctx, "Archived event %d.", event.ID)
			return o.retire(ctx, []*operation.Event{event}, notify.Archived, true)
		},
	}
}

func (o *Operator) archivePastCommand() *cli.Command {
	return &cli.Command{
		Name:    "archivepast",
		Summary: "Archive every event that has already taken place",
		Usage:   Prefix + "archivepast",
		Run: func(ctx context.Context, _ []string) error {
			cutoff := o.clock.Now().Add(-o.archiveGrace)
			past, err := o.database.ArchivePast(cutoff)
			if err != nil {
				return err
			}
			if len(past) == 0 {
				printf(ctx, "No past events to archive.")
				return nil
			}
			ids := make([]string, len(past))
			for index, event := range past {
				ids[index] = fmt.Sprint(event.ID)
			}
			printf(ctx, "Archived events %s.", strings.Join(ids, ", "))
			return o.retire(ctx, past, notify.Archived, true)
		},
	}
}

func (o *Operator) deleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete an active event and its message",
		Usage:   Prefix + "delete <event>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "delete <event>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			o.database.Remove(event.ID, false)
			printf(ctx, "Deleted event %d.", event.ID)
			return errors.Join(o.retire(ctx, []*operation.Event{event}, notify.Deleted, false), o.database.Save(false))
		},
	}
}

func (o *Operator) deleteArchivedCommand() *cli.Command {
	return &cli.Command{
		Name:    "deletearchived",
		Summary: "Delete an archived event",
		Usage:   Prefix + "deletearchived <event>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "deletearchived <event>"); err != nil {
				return err
			}
			event, err := o.event(args[0], true)
			if err != nil {
				return err
			}
			o.database.Remove(event.ID, true)
			o.changed(notify.Deleted, event)
			printf(ctx, "Deleted archived event %d.", event.ID)
			return o.database.Save(true)
		},
	}
}

func (o *Operator) sortCommand() *cli.Command {
	return &cli.Command{
		Name:    "sort",
		Summary: "Order event messages by date",
		Usage:   Prefix + "sort",
		Run: func(ctx context.Context, _ []string) error {
			if err := o.resort(ctx); err != nil {
				return err
			}
			printf(ctx, "Events sorted.")
			return nil
		},
	}
}

func (o *Operator) changeSizeCommand() *cli.Command {
	return &cli.Command{
		Name:    "changesize",
		Summary: "Change an event's platoon size",
		Usage:   Prefix + "changesize <event> <size>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "changesize <event> <size>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}
			warnings, err := event.ChangeSize(size)
			if err != nil {
				return err
			}
			printf(ctx, "Event %d is now %s.", event.ID, size)
			if warnings != "" {
				printf(ctx, "%s", warnings)
			}
			return o.commit(ctx, event, true)
		},
	}
}

func (o *Operator) reorderCommand() *cli.Command {
	return &cli.Command{
		Name:    "reorder",
		Summary: "Restore the template group order",
		Usage:   Prefix + "reorder <event>",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "reorder <event>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			event.Reorder()
			printf(ctx, "Reordered event %d.", event.ID)
			return o.commit(ctx, event, true)
		},
	}
}

func (o *Operator) refreshCommand() *cli.Command {
	return &cli.Command{
		Name:    "refresh",
		Summary: "Re-send bodies and reactions (all active events by default)",
		Usage:   Prefix + "refresh [event...]",
		Run: func(ctx context.Context, args []string) error {
			events := o.database.Active()
			if len(args) > 0 {
				events = events[:0:0]
				for _, reference := range args {
					event, err := o.event(reference, false)
					if err != nil {
						return err
					}
					events = append(events, event)
				}
			}
			for _, event := range events {
				event.EmbedHash = ""
			}
			err := o.projector.Batch(ctx, events, true)
			printf(ctx, "Refreshed %d events.", len(events))
			return errors.Join(err, o.database.Save(false))
		},
	}
}

func (o *Operator) dumpCommand() *cli.Command {
	var archived bool
	return &cli.Command{
		Name:    "dump",
		Summary: "Show an event as editable YAML",
		Usage:   Prefix + "dump <event> [--archived]",
		Flags: flagSet("dump", func(flags *pflag.FlagSet) {
			flags.BoolVar(&archived, "archived", false, "look in the archive")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "dump <event>"); err != nil {
				return err
			}
			event, err := o.event(args[0], archived)
			if err != nil {
				return err
			}
			text, err := DumpYAML(event)
			if err != nil {
				return err
			}
			printf(ctx, "%syaml\n%s%s", fence, text, fence)
			return nil
		},
	}
}

func (o *Operator) loadCommand() *cli.Command {
	return &cli.Command{
		Name:    "load",
		Summary: "Replace an event's contents with edited YAML from dump",
		Usage:   Prefix + "load <event> ```yaml ...```",
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "load <event> <yaml>"); err != nil {
				return err
			}
			event, err := o.event(args[0], false)
			if err != nil {
				return err
			}
			if err := LoadYAML(event, []byte(args[1])); err != nil {
				return err
			}
			printf(ctx, "Loaded event %d.", event.ID)
			return errors.Join(o.commit(ctx, event, true), o.resort(ctx))
		},
	}
}

func (o *Operator) listCommand() *cli.Command {
	var archived bool
	return &cli.Command{
		Name:    "list",
		Summary: "List events",
		Usage:   Prefix + "list [--archived]",
		Flags: flagSet("list", func(flags *pflag.FlagSet) {
			flags.BoolVar(&archived, "archived", false, "list the archive")
		}),
		Run: func(ctx context.Context, _ []string) error {
			summaries := o.database.Summaries(archived)
			if len(summaries) == 0 {
				printf(ctx, "No events.")
				return nil
			}
			for _, summary := range summaries {
				printf(ctx, "%s", listLine(summary, o.location()))
			}
			return nil
		},
	}
}

func listLine(summary eventdb.Summary, location *time.Location) string {
	line := fmt.Sprintf("%d: %s %s (%d/%d", summary.ID,
		summary.Date.In(location).Format("2006-01-02 15:04"), summary.Title,
		summary.Signups, summary.Roles)
	if summary.Attendees > 0 {
		line += fmt.Sprintf(", %d attending", summary.Attendees)
	}
	line += ")"
	if summary.MessageID == 0 {
		line += " [no message]"
	}
	return line
}

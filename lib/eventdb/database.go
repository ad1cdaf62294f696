// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventdb

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/operation"
)

var (
	// ErrNotFound reports a lookup that matched no event.
	ErrNotFound = errors.New("event not found")

	// ErrAmbiguous reports a date lookup that matched several events.
	ErrAmbiguous = errors.New("ambiguous event date")

	// ErrVersionMismatch reports a persisted file of another format
	// version.
	ErrVersionMismatch = errors.New("event file version mismatch")
)

// Config holds the parameters for Open.
type Config struct {
	// EventsPath and ArchivePath are the two collection files.
	EventsPath  string
	ArchivePath string

	// Settings are handed to every event the database creates or loads.
	Settings *operation.Settings

	// Clock stamps backup file names. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Database holds the active and archived events.
type Database struct {
	config   Config
	clock    clock.Clock
	logger   *slog.Logger
	active   collection
	archived collection
	nextID   int
}

// Open loads both collection files. Missing files are treated as
// empty collections.
func Open(config Config) (*Database, error) {
	if config.EventsPath == "" || config.ArchivePath == "" {
		return nil, fmt.Errorf("eventdb: EventsPath and ArchivePath are required")
	}
	if config.Settings == nil {
		return nil, fmt.Errorf("eventdb: Settings is required")
	}
	database := &Database{
		config: config,
		clock:  config.Clock,
		logger: config.Logger,
	}
	if database.clock == nil {
		database.clock = clock.Real()
	}
	if database.logger == nil {
		database.logger = slog.Default()
	}
	if err := database.Load(); err != nil {
		return nil, err
	}
	return database, nil
}

// Close saves both collections.
func (d *Database) Close() error {
	return errors.Join(d.Save(false), d.Save(true))
}

// Settings returns the settings events are built with.
func (d *Database) Settings() *operation.Settings { return d.config.Settings }

// NextID returns the ID the next created event will get.
func (d *Database) NextID() int { return d.nextID }

func (d *Database) collection(archived bool) *collection {
	if archived {
		return &d.archived
	}
	return &d.active
}

// CreateEvent allocates an ID, builds an event with the default layout
// for size, and appends it to the active collection.
func (d *Database) CreateEvent(date time.Time, sideop bool, size operation.PlatoonSize, reforger bool) (*operation.Event, error) {
	event, err := operation.New(d.nextID, date, sideop, size, reforger, d.config.Settings)
	if err != nil {
		return nil, fmt.Errorf("eventdb: %w", err)
	}
	d.nextID++
	d.active.insert(event)
	d.logger.Info("event created", "event_id", event.ID, "date", event.Date, "platoon_size", size)
	return event, nil
}

// Archive moves an active event to the archive and saves both files.
// The event's message is left alone.
func (d *Database) Archive(event *operation.Event) error {
	if d.active.get(event.ID) != event {
		return fmt.Errorf("eventdb: archive event %d: %w", event.ID, ErrNotFound)
	}
	d.active.remove(event.ID)
	d.archived.insert(event)
	d.logger.Info("event archived", "event_id", event.ID)
	return errors.Join(d.Save(false), d.Save(true))
}

// ArchivePast archives every active event dated before cutoff and
// returns them in collection order.
func (d *Database) ArchivePast(cutoff time.Time) ([]*operation.Event, error) {
	var past []*operation.Event
	for _, event := range d.active.list() {
		if event.Date.Before(cutoff) {
			past = append(past, event)
		}
	}
	if len(past) == 0 {
		return nil, nil
	}
	for _, event := range past {
		d.active.remove(event.ID)
		d.archived.insert(event)
	}
	d.logger.Info("past events archived", "count", len(past), "cutoff", cutoff)
	return past, errors.Join(d.Save(false), d.Save(true))
}

// Remove deletes an event from the chosen collection and returns it,
// or nil when the ID is unknown.
func (d *Database) Remove(id int, archived bool) *operation.Event {
	return d.collection(archived).remove(id)
}

// Active returns the active events in collection order.
func (d *Database) Active() []*operation.Event { return d.active.list() }

// Archived returns the archived events in collection order.
func (d *Database) Archived() []*operation.Event { return d.archived.list() }

// ByID finds an event by ID.
func (d *Database) ByID(id int, archived bool) (*operation.Event, error) {
	if event := d.collection(archived).get(id); event != nil {
		return event, nil
	}
	return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
}

// ByMessage finds the event bound to a transport message handle.
func (d *Database) ByMessage(messageID int64, archived bool) (*operation.Event, error) {
	if messageID != 0 {
		for _, event := range d.collection(archived).list() {
			if event.MessageID == messageID {
				return event, nil
			}
		}
	}
	return nil, fmt.Errorf("event for message %d: %w", messageID, ErrNotFound)
}

// ByDate finds the single event on the calendar day of date, in the
// configured zone.
func (d *Database) ByDate(date time.Time, archived bool) (*operation.Event, error) {
	location := d.config.Settings.Location
	if location == nil {
		location = time.UTC
	}
	wantYear, wantMonth, wantDay := date.In(location).Date()

	var matches []*operation.Event
	for _, event := range d.collection(archived).list() {
		year, month, day := event.Date.In(location).Date()
		if year == wantYear && month == wantMonth && day == wantDay {
			matches = append(matches, event)
		}
	}
	day := date.In(location).Format("2006-01-02")
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("event on %s: %w", day, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		ids := make([]int, len(matches))
		for index, event := range matches {
			ids[index] = event.ID
		}
		return nil, fmt.Errorf("events %v are all on %s: %w", ids, day, ErrAmbiguous)
	}
}

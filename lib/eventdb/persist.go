// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/bureau-foundation/muster/lib/atomicfile"
	"github.com/bureau-foundation/muster/lib/operation"
)

// Version is the persisted format version.
const Version = 4

type fileDocument struct {
	Version int                     `json:"version"`
	NextID  int                     `json:"nextID"`
	Events  operation.ObjectMembers `json:"events"`
}

type fileInput struct {
	Version *int                    `json:"version"`
	NextID  int                     `json:"nextID"`
	Events  operation.ObjectMembers `json:"events"`
}

func (d *Database) path(archived bool) string {
	if archived {
		return d.config.ArchivePath
	}
	return d.config.EventsPath
}

// Document encodes one collection in the persisted format.
func (d *Database) Document(archived bool) ([]byte, error) {
	document := fileDocument{Version: Version, NextID: d.nextID, Events: operation.ObjectMembers{}}
	for _, event := range d.collection(archived).list() {
		encoded, err := event.ToJSON(false)
		if err != nil {
			return nil, fmt.Errorf("eventdb: encoding event %d: %w", event.ID, err)
		}
		document.Events = append(document.Events, operation.ObjectMember{
			Key:   strconv.Itoa(event.ID),
			Value: encoded,
		})
	}
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("eventdb: encoding collection: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes one collection to its file.
func (d *Database) Save(archived bool) error {
	data, err := d.Document(archived)
	if err != nil {
		return err
	}
	if err := atomicfile.Write(d.path(archived), data, 0o644); err != nil {
		return fmt.Errorf("eventdb: saving: %w", err)
	}
	return nil
}

// Load replaces both collections with the file contents. The next ID
// is the largest of both files' counters and any loaded ID plus one.
func (d *Database) Load() error {
	active, activeNext, err := d.loadFile(false)
	if err != nil {
		return err
	}
	archived, archivedNext, err := d.loadFile(true)
	if err != nil {
		return err
	}

	d.active.reset()
	d.archived.reset()
	nextID := max(activeNext, archivedNext)
	for _, event := range active {
		d.active.insert(event)
		nextID = max(nextID, event.ID+1)
	}
	for _, event := range archived {
		if d.active.get(event.ID) != nil {
			d.logger.Warn("event ID is both active and archived, keeping the active one", "event_id", event.ID)
			continue
		}
		d.archived.insert(event)
		nextID = max(nextID, event.ID+1)
	}
	d.nextID = nextID
	d.logger.Info("events loaded", "active", d.active.len(), "archived", d.archived.len(), "next_id", d.nextID)
	return nil
}

func (d *Database) loadFile(archived bool) ([]*operation.Event, int, error) {
	path := d.path(archived)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("eventdb: reading %s: %w", path, err)
	}

	nextID, events, err := DecodeDocument(data, d.config.Settings)
	switch {
	case err == nil:
		return events, nextID, nil
	case errors.Is(err, ErrVersionMismatch):
		return nil, 0, fmt.Errorf("eventdb: %s: %w", path, err)
	default:
		return nil, nextID, d.replaceMalformed(path, err)
	}
}

// replaceMalformed moves a broken file aside and writes an empty
// collection in its place.
func (d *Database) replaceMalformed(path string, cause error) error {
	backup := path + "." + d.clock.Now().Format("20060102-150405") + ".bak"
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("eventdb: backing up malformed %s: %w", path, err)
	}
	d.logger.Error("malformed event file replaced with an empty one",
		"path", path,
		"backup", backup,
		"error", cause,
	)
	empty, err := json.MarshalIndent(fileDocument{Version: Version, NextID: d.nextID, Events: operation.ObjectMembers{}}, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicfile.Write(path, append(empty, '\n'), 0o644); err != nil {
		return fmt.Errorf("eventdb: replacing malformed %s: %w", path, err)
	}
	return nil
}

// DecodeDocument parses one collection file. Schema problems are
// reported as operation.ErrMalformedData, a wrong version as
// ErrVersionMismatch.
func DecodeDocument(data []byte, settings *operation.Settings) (int, []*operation.Event, error) {
	var input fileInput
	if err := json.Unmarshal(data, &input); err != nil {
		return 0, nil, fmt.Errorf("decoding collection: %v: %w", err, operation.ErrMalformedData)
	}
	if input.Version == nil || *input.Version != Version {
		found := "none"
		if input.Version != nil {
			found = strconv.Itoa(*input.Version)
		}
		return 0, nil, fmt.Errorf("found version %s, want %d: %w", found, Version, ErrVersionMismatch)
	}

	events := make([]*operation.Event, 0, len(input.Events))
	for _, member := range input.Events {
		id, err := strconv.Atoi(member.Key)
		if err != nil || id < 0 {
			return input.NextID, nil, fmt.Errorf("event key %q is not an ID: %w", member.Key, operation.ErrMalformedData)
		}
		event, err := operation.FromJSON(id, member.Value, settings)
		if err != nil {
			return input.NextID, nil, fmt.Errorf("event %d: %w", id, err)
		}
		events = append(events, event)
	}
	return input.NextID, events, nil
}

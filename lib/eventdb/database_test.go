// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventdb

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/operation"
)

var baseDate = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func openTestDatabase(t *testing.T, directory string, fake *clock.FakeClock) *Database {
	t.Helper()
	settings, err := operation.DefaultSettings()
	if err != nil {
		t.Fatal(err)
	}
	config := Config{
		EventsPath:  filepath.Join(directory, "events.json"),
		ArchivePath: filepath.Join(directory, "archive.json"),
		Settings:    settings,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if fake != nil {
		config.Clock = fake
	}
	database, err := Open(config)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return database
}

func createEvent(t *testing.T, database *Database, date time.Time) *operation.Event {
	t.Helper()
	event, err := database.CreateEvent(date, false, operation.Size1PLT, false)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return event
}

func TestCreateEventAllocatesSequentialIDs(t *testing.T) {
	database := openTestDatabase(t, t.TempDir(), nil)

	first := createEvent(t, database, baseDate)
	second := createEvent(t, database, baseDate.AddDate(0, 0, 1))
	if first.ID != 0 || second.ID != 1 {
		t.Errorf("IDs = %d, %d, want 0, 1", first.ID, second.ID)
	}
	if database.NextID() != 2 {
		t.Errorf("NextID() = %d, want 2", database.NextID())
	}

	if removed := database.Remove(second.ID, false); removed != second {
		t.Fatalf("Remove returned %v", removed)
	}
	third := createEvent(t, database, baseDate)
	if third.ID != 2 {
		t.Errorf("ID after removal = %d, want 2", third.ID)
	}
}

func TestSaveClearLoadIsIdentity(t *testing.T) {
	directory := t.TempDir()
	database := openTestDatabase(t, directory, nil)

	event := createEvent(t, database, baseDate)
	event.Terrain = "Altis"
	event.MessageID = 77
	role, _ := event.FindRole("ASL")
	if _, _, err := event.Signup(role, operation.Member{ID: 5, Name: "Alice"}, false); err != nil {
		t.Fatal(err)
	}
	event.BuildBody(true)
	archived := createEvent(t, database, baseDate.AddDate(0, -1, 0))
	if err := database.Archive(archived); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	savedActive, err := os.ReadFile(filepath.Join(directory, "events.json"))
	if err != nil {
		t.Fatal(err)
	}
	savedArchive, err := os.ReadFile(filepath.Join(directory, "archive.json"))
	if err != nil {
		t.Fatal(err)
	}

	reopened := openTestDatabase(t, directory, nil)
	if got := len(reopened.Active()); got != 1 {
		t.Fatalf("active after reload = %d, want 1", got)
	}
	if got := len(reopened.Archived()); got != 1 {
		t.Fatalf("archived after reload = %d, want 1", got)
	}
	if reopened.NextID() != 2 {
		t.Errorf("NextID() after reload = %d, want 2", reopened.NextID())
	}
	loaded, err := reopened.ByMessage(77, false)
	if err != nil {
		t.Fatalf("ByMessage: %v", err)
	}
	if loaded.BuildBody(true) != nil {
		t.Errorf("reloaded event rebuilt its body although nothing changed")
	}

	activeAgain, err := reopened.Document(false)
	if err != nil {
		t.Fatal(err)
	}
	archiveAgain, err := reopened.Document(true)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(savedActive, activeAgain) {
		t.Errorf("active document changed across reload:\n%s\n%s", savedActive, activeAgain)
	}
	if !bytes.Equal(savedArchive, archiveAgain) {
		t.Errorf("archive document changed across reload:\n%s\n%s", savedArchive, archiveAgain)
	}
}

func TestMissingFilesLoadEmpty(t *testing.T) {
	database := openTestDatabase(t, t.TempDir(), nil)
	if len(database.Active()) != 0 || len(database.Archived()) != 0 || database.NextID() != 0 {
		t.Errorf("fresh database is not empty")
	}
}

func TestNextIDTakesLargestSource(t *testing.T) {
	directory := t.TempDir()
	document := `{"version": 4, "nextID": 12, "events": {}}`
	if err := os.WriteFile(filepath.Join(directory, "archive.json"), []byte(document), 0o644); err != nil {
		t.Fatal(err)
	}
	database := openTestDatabase(t, directory, nil)
	if database.NextID() != 12 {
		t.Errorf("NextID() = %d, want 12", database.NextID())
	}
}

func TestMalformedFileIsBackedUp(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "events.json")
	if err := os.WriteFile(path, []byte(`{"version": 4, "events": {`), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := clock.Fake(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	database := openTestDatabase(t, directory, fake)

	if len(database.Active()) != 0 {
		t.Errorf("malformed file produced events")
	}
	backup := path + ".20250304-050607.bak"
	content, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if !strings.HasPrefix(string(content), `{"version": 4`) {
		t.Errorf("backup content = %q", content)
	}
	replaced, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(replaced), `"events": {}`) {
		t.Errorf("replacement = %q, want an empty collection", replaced)
	}
}

func TestCancelledEventSurvivesReload(t *testing.T) {
	directory := t.TempDir()
	fake := clock.Fake(baseDate)
	database := openTestDatabase(t, directory, fake)

	event := createEvent(t, database, baseDate)
	createEvent(t, database, baseDate.AddDate(0, 0, 7))
	event.Cancelled = true
	for index := range operation.MaxReactions {
		if _, err := event.AddAdditional("Extra " + string(rune('A'+index))); err != nil {
			break
		}
	}
	var asl *operation.Role
	for _, role := range event.Roles() {
		if role.Name == "ASL" {
			asl = role
		}
	}
	if asl == nil {
		t.Fatal("no ASL role")
	}
	if _, _, err := event.Signup(asl, operation.Member{ID: 7, Name: "Alice"}, false); err != nil {
		t.Fatal(err)
	}
	if err := database.Save(false); err != nil {
		t.Fatal(err)
	}
	if err := database.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if count := len(database.Active()); count != 2 {
		t.Fatalf("active events after reload = %d, want 2", count)
	}
	matches, _ := filepath.Glob(filepath.Join(directory, "events.json.*.bak"))
	if len(matches) != 0 {
		t.Errorf("events file was backed up: %v", matches)
	}
}

func TestMalformedEventIsBackedUp(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "events.json")
	document := `{"version": 4, "nextID": 1, "events": {"0": {"date": "2025-06-01", "time": "18:00", "platoon_size": "9PLT"}}}`
	if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
		t.Fatal(err)
	}
	database := openTestDatabase(t, directory, clock.Fake(baseDate))
	if len(database.Active()) != 0 {
		t.Errorf("malformed event was loaded")
	}
	matches, err := filepath.Glob(path + ".*.bak")
	if err != nil || len(matches) != 1 {
		t.Errorf("backups = %v (%v), want one", matches, err)
	}
}

func TestVersionMismatchAborts(t *testing.T) {
	for _, document := range []string{
		`{"version": 3, "nextID": 0, "events": {}}`,
		`{"nextID": 0, "events": {}}`,
	} {
		directory := t.TempDir()
		path := filepath.Join(directory, "events.json")
		if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
			t.Fatal(err)
		}
		settings, _ := operation.DefaultSettings()
		_, err := Open(Config{
			EventsPath:  path,
			ArchivePath: filepath.Join(directory, "archive.json"),
			Settings:    settings,
			Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		if !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("Open(%s) error = %v, want ErrVersionMismatch", document, err)
		}
		content, _ := os.ReadFile(path)
		if string(content) != document {
			t.Errorf("mismatched file was rewritten")
		}
	}
}

func TestByDate(t *testing.T) {
	database := openTestDatabase(t, t.TempDir(), nil)
	morning := createEvent(t, database, baseDate.Add(-8*time.Hour))
	createEvent(t, database, baseDate.AddDate(0, 0, 1))
	createEvent(t, database, baseDate.AddDate(0, 0, 1).Add(2*time.Hour))

	found, err := database.ByDate(baseDate, false)
	if err != nil {
		t.Fatalf("ByDate: %v", err)
	}
	if found != morning {
		t.Errorf("ByDate returned event %d, want %d", found.ID, morning.ID)
	}
	if _, err := database.ByDate(baseDate.AddDate(0, 0, 1), false); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("two events on one day: error = %v, want ErrAmbiguous", err)
	}
	if _, err := database.ByDate(baseDate.AddDate(0, 0, 5), false); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty day: error = %v, want ErrNotFound", err)
	}
	if _, err := database.ByDate(baseDate, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("archive lookup: error = %v, want ErrNotFound", err)
	}
}

func TestSortReassignsMessageSlots(t *testing.T) {
	database := openTestDatabase(t, t.TempDir(), nil)
	early := createEvent(t, database, baseDate)
	late := createEvent(t, database, baseDate.AddDate(0, 0, 7))
	unposted := createEvent(t, database, baseDate.AddDate(0, 0, 3))
	middle := createEvent(t, database, baseDate.AddDate(0, 0, 5))
	early.MessageID = 100
	late.MessageID = 300
	middle.MessageID = 200
	for _, event := range []*operation.Event{early, late, middle} {
		event.BuildBody(true)
	}

	changed := database.Sort()

	order := database.Active()
	wantOrder := []*operation.Event{late, middle, unposted, early}
	for index, event := range wantOrder {
		if order[index] != event {
			t.Fatalf("position %d holds event %d, want %d", index, order[index].ID, event.ID)
		}
	}
	if late.MessageID != 100 || middle.MessageID != 200 || early.MessageID != 300 {
		t.Errorf("message slots = %d, %d, %d, want 100, 200, 300", late.MessageID, middle.MessageID, early.MessageID)
	}
	if unposted.MessageID != 0 {
		t.Errorf("unposted event got message %d", unposted.MessageID)
	}
	if len(changed) != 2 {
		t.Errorf("changed = %d events, want 2", len(changed))
	}
	if late.EmbedHash != "" || early.EmbedHash != "" {
		t.Errorf("moved events kept their fingerprint")
	}
	if middle.EmbedHash == "" {
		t.Errorf("unmoved event lost its fingerprint")
	}

	if again := database.Sort(); len(again) != 0 {
		t.Errorf("second sort changed %d events", len(again))
	}
}

func TestSortKeepsTiesInCollectionOrder(t *testing.T) {
	database := openTestDatabase(t, t.TempDir(), nil)
	first := createEvent(t, database, baseDate)
	second := createEvent(t, database, baseDate)
	database.Sort()
	order := database.Active()
	if order[0] != first || order[1] != second {
		t.Errorf("tie order = %d, %d, want %d, %d", order[0].ID, order[1].ID, first.ID, second.ID)
	}
}

func TestArchivePast(t *testing.T) {
	directory := t.TempDir()
	database := openTestDatabase(t, directory, nil)
	old := createEvent(t, database, baseDate.AddDate(0, 0, -2))
	upcoming := createEvent(t, database, baseDate.AddDate(0, 0, 2))

	past, err := database.ArchivePast(baseDate)
	if err != nil {
		t.Fatalf("ArchivePast: %v", err)
	}
	if len(past) != 1 || past[0] != old {
		t.Fatalf("ArchivePast = %v, want [%d]", past, old.ID)
	}
	if _, err := database.ByID(old.ID, true); err != nil {
		t.Errorf("archived event not in archive: %v", err)
	}
	if _, err := database.ByID(upcoming.ID, false); err != nil {
		t.Errorf("upcoming event left the active collection: %v", err)
	}
	if _, err := os.Stat(filepath.Join(directory, "archive.json")); err != nil {
		t.Errorf("archive not saved: %v", err)
	}
}

func TestSummaries(t *testing.T) {
	database := openTestDatabase(t, t.TempDir(), nil)
	event := createEvent(t, database, baseDate)
	role, _ := event.FindRole("ASL")
	if _, _, err := event.Signup(role, operation.Member{ID: 1, Name: "Alice"}, false); err != nil {
		t.Fatal(err)
	}
	summaries := database.Summaries(false)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	summary := summaries[0]
	if summary.Title != "Operation" || summary.Signups != 1 || summary.Roles != len(event.Roles()) {
		t.Errorf("summary = %+v", summary)
	}
	if len(database.Summaries(true)) != 0 {
		t.Errorf("archive summaries not empty")
	}
}

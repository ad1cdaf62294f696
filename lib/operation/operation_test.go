// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/muster/lib/icon"
)

var testDate = time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)

func testSettings(t *testing.T) *Settings {
	t.Helper()
	settings, err := DefaultSettings()
	if err != nil {
		t.Fatalf("DefaultSettings: %v", err)
	}
	return settings
}

func newTestEvent(t *testing.T, settings *Settings, size PlatoonSize) *Event {
	t.Helper()
	event, err := New(0, testDate, size == SizeSideop, size, false, settings)
	if err != nil {
		t.Fatalf("New(%s): %v", size, err)
	}
	return event
}

func groupNames(event *Event) []string {
	var names []string
	for _, group := range event.Groups() {
		names = append(names, group.Name)
	}
	return names
}

func requireRole(t *testing.T, event *Event, name string) *Role {
	t.Helper()
	role, _ := event.FindRole(name)
	if role == nil {
		t.Fatalf("event has no role %s (groups %v)", name, groupNames(event))
	}
	return role
}

func TestNewDefaultOnePlatoon(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)

	if event.ID != 0 {
		t.Errorf("ID = %d, want 0", event.ID)
	}
	if event.Title() != "Operation" {
		t.Errorf("Title() = %q, want Operation", event.Title())
	}
	if got := len(event.Roles()); got != 11 {
		t.Errorf("role count = %d, want 11", got)
	}

	reactions := event.Reactions()
	if len(reactions) != 10 {
		t.Fatalf("reaction count = %d, want 10: %v", len(reactions), reactions)
	}
	for _, reaction := range reactions {
		if settings.Icons.IsZeus(reaction) {
			t.Errorf("reactions include the zeus icon")
		}
	}
	if event.ReactionCount() != len(reactions) {
		t.Errorf("ReactionCount() = %d, Reactions() has %d", event.ReactionCount(), len(reactions))
	}

	want := []string{"Company", "1st Platoon", "Dummy", "Alpha", "Bravo", "Charlie", AdditionalGroupName}
	if got := groupNames(event); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("groups = %v, want %v", got, want)
	}
}

func TestTitleAndColorPrecedence(t *testing.T) {
	settings := testSettings(t)
	tests := []struct {
		name   string
		mutate func(*Event)
		title  string
		color  int
	}{
		{"plain", func(*Event) {}, "Operation", ColorDefault},
		{"sideop", func(e *Event) { e.Sideop = true }, "Side Operation", ColorSideop},
		{"reforger", func(e *Event) { e.Reforger = true }, "Reforger Operation", ColorReforger},
		{"dlc", func(e *Event) { e.SetDLC("Contact") }, "Contact Operation", ColorDLC},
		{"dlc sideop", func(e *Event) { e.SetDLC("Contact"); e.Sideop = true }, "Contact Side Operation", ColorDLCSideop},
		{"reforger sideop", func(e *Event) { e.Reforger = true; e.Sideop = true }, "Reforger Side Operation", ColorReforgerSideop},
		{"reforger dlc", func(e *Event) { e.Reforger = true; e.SetDLC("Arland") }, "Arland Reforger", ColorReforgerDLC},
		{"reforger dlc sideop", func(e *Event) {
			e.Reforger = true
			e.Sideop = true
			e.SetDLC("Arland")
		}, "Arland Reforger Side Operation", ColorReforgerDLCSideop},
		{"overhaul beats dlc", func(e *Event) { e.Overhaul = "Unsung"; e.SetDLC("Contact") }, "Unsung Overhaul Operation", ColorOverhaul},
		{"cancelled beats everything", func(e *Event) {
			e.Overhaul = "Unsung"
			e.Cancelled = true
		}, "Cancelled Operation", ColorCancelled},
		{"explicit title", func(e *Event) { e.SetTitle("Night Raid"); e.Sideop = true }, "Night Raid", ColorSideop},
		{"WW2 prefix", func(e *Event) { e.PlatoonSize = SizeWW2Side; e.Sideop = true }, "WW2 Side Operation", ColorSideop},
	}

	colors := make(map[int]string)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			event := newTestEvent(t, settings, Size1PLT)
			test.mutate(event)
			if got := event.Title(); got != test.title {
				t.Errorf("Title() = %q, want %q", got, test.title)
			}
			if got := event.Color(); got != test.color {
				t.Errorf("Color() = %#x, want %#x", got, test.color)
			}
		})
		colors[test.color] = test.name
	}
	if len(colors) != 10 {
		t.Errorf("expected 10 distinct colors across rules, got %d", len(colors))
	}
}

func TestTerrainDLCFallback(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)

	event.Terrain = "Tanoa"
	if event.DLC() != "APEX" {
		t.Fatalf("DLC() = %q, want APEX", event.DLC())
	}
	if event.Title() != "APEX Operation" {
		t.Errorf("Title() = %q, want APEX Operation", event.Title())
	}
	body := event.BuildBody(false)
	if !strings.Contains(body.Description, "**APEX DLC required**") {
		t.Errorf("description lacks the DLC note:\n%s", body.Description)
	}

	event.SetDLC("Contact")
	if event.DLC() != "Contact" {
		t.Errorf("explicit DLC should win over terrain, got %q", event.DLC())
	}

	event.SetDLC("")
	event.Terrain = "Stratis"
	if event.DLC() != "" {
		t.Errorf("DLC() = %q, want empty for Stratis", event.DLC())
	}
}

func TestAttendance(t *testing.T) {
	settings := testSettings(t)
	settings.AlwaysDisplayAttendance = true
	event, err := New(0, time.Now().Add(3*time.Hour), false, Size1PLT, false, settings)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	member := Member{ID: 7, Name: "Carol"}
	if !event.AttendeeAdd(member) {
		t.Error("first AttendeeAdd should report an addition")
	}
	if event.AttendeeAdd(member) {
		t.Error("second AttendeeAdd should be a no-op")
	}
	if len(event.Attendees()) != 1 || !event.HasAttendee(7) {
		t.Fatalf("attendees = %v", event.Attendees())
	}

	attendance, _ := settings.Icons.Attendance()
	reactions := event.Reactions()
	if !reactions[len(reactions)-1].Equal(attendance) {
		t.Errorf("last reaction = %v, want the attendance icon", reactions[len(reactions)-1])
	}
	if !strings.HasPrefix(event.BuildBody(false).Footer, "Attendees: 1\n\nEvent ID: 0") {
		t.Errorf("footer = %q", event.BuildBody(false).Footer)
	}

	event.Cancelled = true
	event.AttendeeRemove(7)
	if !event.Cancelled {
		t.Error("attendance must not clear Cancelled")
	}
	if len(event.Reactions()) != 0 || event.ReactionCount() != 0 {
		t.Error("cancelled event must have no reactions")
	}
}

func TestRoleRender(t *testing.T) {
	catalogIcon := icon.Icon{Name: "ASL", Key: "asl"}

	icononly := NewRole("ASL", catalogIcon, false)
	if got := icononly.Render(); got != "asl"+zeroWidthSpace {
		t.Errorf("free icon-only role = %q", got)
	}
	if err := icononly.Assign(Member{ID: 1, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if got := icononly.Render(); got != "asl Alice" {
		t.Errorf("assigned icon-only role = %q", got)
	}

	named := NewRole("Driver", catalogIcon, true)
	if got := named.Render(); got != "asl Driver: " {
		t.Errorf("free named role = %q", got)
	}
	named.Assign(Member{ID: 2, Name: "Bob"})
	if got := named.Render(); got != "asl Driver: Bob" {
		t.Errorf("assigned named role = %q", got)
	}

	if err := named.Assign(Member{ID: 3}); err == nil {
		t.Error("Assign with an empty name should fail")
	}
}

func TestRoleGroupOrderAndDuplicates(t *testing.T) {
	group := NewRoleGroup("Alpha", true)
	for _, name := range []string{"ASL", "A1", "A2"} {
		if err := group.Add(NewRole(name, icon.Icon{Name: name, Key: name}, false)); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	if err := group.Add(NewRole("asl", icon.Icon{}, false)); !errors.Is(err, ErrRole) {
		t.Errorf("duplicate Add error = %v, want ErrRole", err)
	}
	if group.Lookup("a1") == nil {
		t.Error("Lookup should be case-insensitive")
	}
	if _, err := group.Remove("A1"); err != nil {
		t.Fatal(err)
	}
	if got := group.Render(); got != "ASL"+zeroWidthSpace+"\nA2"+zeroWidthSpace {
		t.Errorf("Render() after removal = %q", got)
	}
	if _, err := group.Remove("A1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove error = %v, want ErrNotFound", err)
	}
}

func assertPoolPrefix(t *testing.T, group *RoleGroup) {
	t.Helper()
	for index, role := range group.Roles() {
		want, _ := icon.PoolAt(index)
		if !role.Icon.Equal(want) {
			t.Fatalf("role %d (%s) has icon %q, want pool[%d] %q", index, role.Name, role.Icon.Name, index, want.Name)
		}
	}
}

func TestAdditionalGroupPoolBinding(t *testing.T) {
	group := NewAdditionalGroup()
	for index := 0; index < icon.PoolSize; index++ {
		if err := group.Add(NewRole("R"+string(rune('a'+index)), icon.Icon{}, true)); err != nil {
			t.Fatalf("Add #%d: %v", index, err)
		}
	}
	assertPoolPrefix(t, group)
	if err := group.Add(NewRole("overflow", icon.Icon{}, true)); !errors.Is(err, ErrRole) {
		t.Errorf("21st Add error = %v, want ErrRole", err)
	}

	if _, err := group.Remove("Ra"); err != nil {
		t.Fatal(err)
	}
	if group.Len() != icon.PoolSize-1 {
		t.Fatalf("Len() = %d", group.Len())
	}
	assertPoolPrefix(t, group)
	if first := group.Roles()[0]; first.Name != "Rb" {
		t.Errorf("first role after removing index 0 = %s, want Rb", first.Name)
	}
}

func TestAdditionalRoleLifecycle(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)

	driver, err := event.AddAdditional("Y1 Driver")
	if err != nil {
		t.Fatalf("AddAdditional: %v", err)
	}
	if want, _ := icon.PoolAt(0); !driver.Equal(want) {
		t.Errorf("first additional icon = %v, want pool[0]", driver)
	}
	if len(event.Reactions()) != 11 {
		t.Errorf("reactions = %d, want 11", len(event.Reactions()))
	}
	gunner, err := event.AddAdditional("Y1 Gunner")
	if err != nil {
		t.Fatal(err)
	}
	if want, _ := icon.PoolAt(1); !gunner.Equal(want) {
		t.Errorf("second additional icon = %v, want pool[1]", gunner)
	}

	if _, err := event.RemoveAdditional("Y1 Driver"); err != nil {
		t.Fatal(err)
	}
	remaining := event.Additional().Roles()
	if len(remaining) != 1 || remaining[0].Name != "Y1 Gunner" {
		t.Fatalf("remaining additional roles = %v", remaining)
	}
	if want, _ := icon.PoolAt(0); !remaining[0].Icon.Equal(want) {
		t.Errorf("remaining role icon = %v, want pool[0]", remaining[0].Icon)
	}

	if _, err := event.AddAdditional("asl"); !errors.Is(err, ErrRole) {
		t.Errorf("colliding AddAdditional error = %v, want ErrRole", err)
	}
	if _, err := event.RemoveAdditional("ASL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveAdditional of a template role error = %v, want ErrNotFound", err)
	}
	if _, err := event.RenameAdditional("Y1 Gunner", "PSG"); !errors.Is(err, ErrRole) {
		t.Errorf("colliding rename error = %v, want ErrRole", err)
	}
	if _, err := event.RenameAdditional("Y1 Gunner", "y1 gunner"); err != nil {
		t.Errorf("renaming a role to a case variant of itself: %v", err)
	}
}

func TestAddAdditionalStopsAtReactionLimit(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)

	added := 0
	for {
		_, err := event.AddAdditional("Extra " + string(rune('A'+added)))
		if err != nil {
			if !errors.Is(err, ErrRole) {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		added++
		if added > icon.PoolSize {
			t.Fatal("AddAdditional never hit the limit")
		}
	}
	if event.ReactionCount() != MaxReactions {
		t.Errorf("ReactionCount() = %d at the limit, want %d", event.ReactionCount(), MaxReactions)
	}
	if added != MaxReactions-10 {
		t.Errorf("added %d roles, want %d", added, MaxReactions-10)
	}
}

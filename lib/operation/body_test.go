// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"fmt"
	"strings"
	"testing"
)

func TestBuildBodyCache(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)

	first := event.BuildBody(true)
	if first == nil {
		t.Fatal("first BuildBody(true) must return a body")
	}
	if event.EmbedHash != first.Fingerprint() {
		t.Error("BuildBody did not store the fingerprint")
	}
	if event.BuildBody(true) != nil {
		t.Error("BuildBody(true) on an unchanged event must return nil")
	}
	if event.BuildBody(false) == nil {
		t.Error("BuildBody(false) must always return a body")
	}

	event.EmbedHash = ""
	if event.BuildBody(true) == nil {
		t.Error("clearing EmbedHash must force a body")
	}
}

func TestEveryRenderedInputChangesFingerprint(t *testing.T) {
	settings := testSettings(t)
	mutations := []struct {
		name   string
		mutate func(*testing.T, *Event)
	}{
		{"title", func(_ *testing.T, e *Event) { e.SetTitle("Dawn") }},
		{"date", func(_ *testing.T, e *Event) { e.SetDate(e.Date.AddDate(0, 0, 1)) }},
		{"terrain", func(_ *testing.T, e *Event) { e.Terrain = "Altis" }},
		{"faction", func(_ *testing.T, e *Event) { e.Faction = "CSAT" }},
		{"port", func(_ *testing.T, e *Event) { e.Port = ModdedPort }},
		{"description", func(_ *testing.T, e *Event) { e.Description = "Bring night vision." }},
		{"mods", func(_ *testing.T, e *Event) { e.Mods = "ACE" }},
		{"overhaul", func(_ *testing.T, e *Event) { e.Overhaul = "Unsung" }},
		{"reforger", func(_ *testing.T, e *Event) { e.Reforger = true }},
		{"cancelled", func(_ *testing.T, e *Event) { e.Cancelled = true }},
		{"signup", func(t *testing.T, e *Event) {
			if _, _, err := e.Signup(requireRole(t, e, "ASL"), Member{ID: 1, Name: "Alice"}, false); err != nil {
				t.Fatal(err)
			}
		}},
		{"additional role", func(t *testing.T, e *Event) {
			if _, err := e.AddAdditional("Medic"); err != nil {
				t.Fatal(err)
			}
		}},
		{"inline flag", func(_ *testing.T, e *Event) { e.Group("Alpha").IsInline = false }},
		{"sideop footer", func(_ *testing.T, e *Event) { e.Sideop = true }},
	}
	for _, mutation := range mutations {
		t.Run(mutation.name, func(t *testing.T) {
			event := newTestEvent(t, settings, Size1PLT)
			event.BuildBody(true)
			before := event.EmbedHash
			mutation.mutate(t, event)
			if event.BuildBody(true) == nil {
				t.Fatal("BuildBody(true) returned nil after a rendered change")
			}
			if event.EmbedHash == before {
				t.Error("fingerprint did not change")
			}
		})
	}
}

func TestDescriptionLayout(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)
	event.Terrain = "Tanoa"
	event.Faction = "NATO"
	event.Port = ModdedPort
	event.Reforger = true
	event.Description = "Hold the airfield."
	event.Mods = "ACE\nRHS"

	unix := event.Date.Unix()
	want := strings.Join([]string{
		fmt.Sprintf("Local time: <t:%d:F> (<t:%d:R>)", unix, unix),
		"Terrain: Tanoa - Faction: NATO",
		"Server port: **2402**",
		"**Arma Reforger required**",
		"**APEX DLC required**",
		"",
		"Hold the airfield.",
		"",
		"Mods:",
		"ACE",
		"RHS",
	}, "\n")
	if got := event.BuildBody(false).Description; got != want {
		t.Errorf("description:\n%s\nwant:\n%s", got, want)
	}

	event.Mods = "ACE"
	if got := event.BuildBody(false).Description; !strings.HasSuffix(got, "\n\nMods: ACE") {
		t.Errorf("single-line mods not inline:\n%s", got)
	}
}

func TestFieldsSkipEmptyGroupsAndKeepPlaceholders(t *testing.T) {
	settings := testSettings(t)
	event := newTestEvent(t, settings, Size1PLT)
	body := event.BuildBody(false)

	var names []string
	for _, field := range body.Fields {
		names = append(names, field.Name)
	}
	// Additional is empty and omitted; the Dummy spacer renders blank.
	want := []string{"Company", "1st Platoon", zeroWidthSpace, "Alpha", "Bravo", "Charlie"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Errorf("field names = %q, want %q", names, want)
	}
	if body.Fields[2].Value != zeroWidthSpace {
		t.Errorf("placeholder value = %q", body.Fields[2].Value)
	}
	if body.Footer != "Event ID: 0" {
		t.Errorf("footer = %q", body.Footer)
	}
}

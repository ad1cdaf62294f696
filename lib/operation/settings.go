// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/muster/lib/icon"
)

// Default server ports. An event on any other port gets a port line in
// its description.
const (
	DefaultPort = 2302
	ModdedPort  = 2402
)

// Settings is the deployment-wide configuration every event consults
// when deriving its title, body, and reactions. Events share one
// Settings value; it must not change while events reference it.
type Settings struct {
	Icons     *icon.Catalog
	Templates *Templates

	// DLCTerrains maps terrain names to the DLC they require.
	DLCTerrains map[string]string

	// AlwaysDisplayAttendance shows the attendee count and the
	// attendance reaction on every event, not just side operations.
	AlwaysDisplayAttendance bool

	DefaultPort int
	ModdedPort  int

	// Location is the zone event dates are entered and stored in.
	Location *time.Location
}

// DefaultDLCTerrains returns the terrain to DLC table for the
// terrains the community plays.
func DefaultDLCTerrains() map[string]string {
	return map[string]string{
		"Tanoa":        "APEX",
		"Livonia":      "Contact",
		"Cam Lao Nam":  "S.O.G. Prairie Fire",
		"Khe Sanh":     "S.O.G. Prairie Fire",
		"The Bra":      "S.O.G. Prairie Fire",
		"Weferlingen":  "Global Mobilization",
		"Sefrou-Ramal": "Western Sahara",
		"Gabreta":      "CSLA Iron Curtain",
		"Spearhead":    "Spearhead 1944",
		"Normandy":     "Spearhead 1944",
	}
}

// DefaultSettings returns settings with the built-in icon catalog,
// templates, and DLC table, in UTC.
func DefaultSettings() (*Settings, error) {
	catalog, err := icon.NewCatalog(icon.CatalogConfig{
		Named:          icon.DefaultNamed(),
		ZeusName:       icon.DefaultZeusName,
		AttendanceName: icon.DefaultAttendanceName,
	})
	if err != nil {
		return nil, fmt.Errorf("operation: default icon catalog: %w", err)
	}
	return &Settings{
		Icons:       catalog,
		Templates:   DefaultTemplates(),
		DLCTerrains: DefaultDLCTerrains(),
		DefaultPort: DefaultPort,
		ModdedPort:  ModdedPort,
		Location:    time.UTC,
	}, nil
}

func (s *Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

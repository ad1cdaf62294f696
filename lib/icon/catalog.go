// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package icon

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultZeusName is the catalog name of the game-master icon. Roles
// bound to it never get a reaction on the event message.
const DefaultZeusName = "ZEUS"

// DefaultAttendanceName is the catalog name of the attendance icon.
const DefaultAttendanceName = "ATTENDANCE"

// CatalogConfig describes the named icons of one deployment.
type CatalogConfig struct {
	// Named maps icon names to transport reaction keys. Keys must be
	// distinct from each other and from the pool.
	Named map[string]string

	// ZeusName names the game-master icon. Must be present in Named.
	ZeusName string

	// AttendanceName names the attendance icon. Empty disables
	// attendance reactions.
	AttendanceName string
}

// Catalog resolves named icons. A Catalog is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	byName     map[string]Icon
	byFolded   map[string]Icon
	byKey      map[string]Icon
	zeus       Icon
	attendance Icon
}

// NewCatalog validates config and builds a Catalog.
func NewCatalog(config CatalogConfig) (*Catalog, error) {
	catalog := &Catalog{
		byName:   make(map[string]Icon, len(config.Named)),
		byFolded: make(map[string]Icon, len(config.Named)),
		byKey:    make(map[string]Icon, len(config.Named)+PoolSize),
	}
	for _, poolIcon := range pool {
		catalog.byKey[poolIcon.Key] = poolIcon
	}

	// Deterministic iteration so errors are reproducible.
	names := make([]string, 0, len(config.Named))
	for name := range config.Named {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		key := config.Named[name]
		if name == "" || key == "" {
			errs = append(errs, fmt.Errorf("icon %q: name and key are required", name))
			continue
		}
		if existing, ok := catalog.byKey[key]; ok {
			errs = append(errs, fmt.Errorf("icon %q: key %q already used by %q", name, key, existing.Name))
			continue
		}
		folded := strings.ToLower(name)
		if existing, ok := catalog.byFolded[folded]; ok {
			errs = append(errs, fmt.Errorf("icon %q: name collides with %q", name, existing.Name))
			continue
		}
		named := Icon{Name: name, Key: key}
		catalog.byName[name] = named
		catalog.byFolded[folded] = named
		catalog.byKey[key] = named
	}

	zeusName := config.ZeusName
	if zeusName == "" {
		zeusName = DefaultZeusName
	}
	zeus, ok := catalog.byName[zeusName]
	if !ok {
		errs = append(errs, fmt.Errorf("zeus icon %q is not in the catalog", zeusName))
	}
	catalog.zeus = zeus

	if config.AttendanceName != "" {
		attendance, ok := catalog.byName[config.AttendanceName]
		if !ok {
			errs = append(errs, fmt.Errorf("attendance icon %q is not in the catalog", config.AttendanceName))
		}
		catalog.attendance = attendance
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("icon: invalid catalog: %w", err)
	}
	return catalog, nil
}

// Lookup finds a named icon. An exact match wins over a
// case-insensitive one.
func (c *Catalog) Lookup(name string) (Icon, bool) {
	if named, ok := c.byName[name]; ok {
		return named, true
	}
	named, ok := c.byFolded[strings.ToLower(name)]
	return named, ok
}

// ByKey resolves a reaction key, pool icons included.
func (c *Catalog) ByKey(key string) (Icon, bool) {
	found, ok := c.byKey[key]
	return found, ok
}

// Zeus returns the game-master icon.
func (c *Catalog) Zeus() Icon { return c.zeus }

// IsZeus reports whether icon is the game-master icon.
func (c *Catalog) IsZeus(icon Icon) bool { return icon.Equal(c.zeus) }

// Attendance returns the attendance icon, or false when attendance
// reactions are disabled.
func (c *Catalog) Attendance() (Icon, bool) {
	return c.attendance, !c.attendance.IsZero()
}

// DefaultNamed returns the named icons for the built-in platoon
// templates. Every template role name maps to a text key of the same
// name except the game-master and attendance icons.
func DefaultNamed() map[string]string {
	named := map[string]string{
		DefaultZeusName:       "⚡",
		DefaultAttendanceName: "✅",
	}
	for _, name := range []string{
		"CO", "FAC", "RTO", "1PLT", "2PLT", "PSG",
		"ASL", "A1", "BSL", "B1", "CSL", "C1", "DSL", "D1",
		"ESL", "E1", "FSL", "F1",
	} {
		named[name] = name
	}
	return named
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/config"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/icon"
	"github.com/bureau-foundation/muster/lib/operation"
)

// handleTableFile is the Matrix handle table inside the state
// directory.
const handleTableFile = "handles.cbor"

func handleTablePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.State, handleTableFile)
}

// buildSettings turns the icons, templates, and events sections into
// the settings every event is built with.
func buildSettings(cfg *config.Config) (*operation.Settings, error) {
	named := cfg.Icons.Named
	if len(named) == 0 {
		named = icon.DefaultNamed()
	}
	catalog, err := icon.NewCatalog(icon.CatalogConfig{
		Named:          named,
		ZeusName:       cfg.Icons.Zeus,
		AttendanceName: cfg.Icons.Attendance,
	})
	if err != nil {
		return nil, fmt.Errorf("icons: %w", err)
	}

	templates := operation.DefaultTemplates()
	if cfg.Paths.Templates != "" {
		templates, err = operation.LoadTemplates(cfg.Paths.Templates)
		if err != nil {
			return nil, err
		}
	}

	terrains := cfg.DLCTerrains
	if len(terrains) == 0 {
		terrains = operation.DefaultDLCTerrains()
	}

	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("events.timezone: %w", err)
	}

	return &operation.Settings{
		Icons:                   catalog,
		Templates:               templates,
		DLCTerrains:             terrains,
		AlwaysDisplayAttendance: cfg.Events.AlwaysDisplayAttendance,
		DefaultPort:             cfg.Events.DefaultPort,
		ModdedPort:              cfg.Events.ModdedPort,
		Location:                location,
	}, nil
}

// openDatabase builds the settings and opens both collections.
func openDatabase(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*eventdb.Database, error) {
	settings, err := buildSettings(cfg)
	if err != nil {
		return nil, err
	}
	return eventdb.Open(eventdb.Config{
		EventsPath:  cfg.Paths.Events,
		ArchivePath: cfg.Paths.Archive,
		Settings:    settings,
		Clock:       clk,
		Logger:      logger,
	})
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the muster configuration file.
//
// Configuration comes from a single YAML file named by:
//   - the MUSTER_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There is no discovery and no fallback file. The file may contain
// development, staging, and production sections whose non-empty values
// override the base values when the environment matches. ${VAR} and
// ${VAR:-default} are expanded in paths after overrides are applied;
// ${MUSTER_DATA} refers to paths.data.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/muster/lib/ref"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "MUSTER_CONFIG"

// Environment is the deployment type.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete muster configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths  PathsConfig  `yaml:"paths"`
	Matrix MatrixConfig `yaml:"matrix"`
	Events EventsConfig `yaml:"events"`
	Icons  IconsConfig  `yaml:"icons"`

	// DLCTerrains maps terrain names to the DLC they require. Empty
	// means the built-in table.
	DLCTerrains map[string]string `yaml:"dlc_terrains"`

	Status StatusConfig `yaml:"status"`
	Notify NotifyConfig `yaml:"notify"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the per-environment sections.
type Overrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Matrix *MatrixConfig `yaml:"matrix,omitempty"`
	Status *StatusConfig `yaml:"status,omitempty"`
	Notify *NotifyConfig `yaml:"notify,omitempty"`
}

// PathsConfig locates the bot's files.
type PathsConfig struct {
	// Data is the base directory.
	Data string `yaml:"data"`

	// Events and Archive are the two event collection files.
	Events  string `yaml:"events"`
	Archive string `yaml:"archive"`

	// State holds private runtime state such as the Matrix handle
	// table.
	State string `yaml:"state"`

	// Templates optionally replaces the built-in platoon layouts with
	// a JSONC file.
	Templates string `yaml:"templates"`
}

// MatrixConfig is the homeserver connection.
type MatrixConfig struct {
	Homeserver string `yaml:"homeserver"`
	UserID     string `yaml:"user_id"`

	// TokenFile holds the access token; surrounding whitespace is
	// ignored.
	TokenFile string `yaml:"token_file"`

	// EventsRoom carries the event messages. CommandRoom takes operator
	// commands and defaults to EventsRoom.
	EventsRoom  string `yaml:"events_room"`
	CommandRoom string `yaml:"command_room"`

	// Operators may run commands. Everyone in the events room may sign
	// up through reactions.
	Operators []string `yaml:"operators"`

	SyncTimeout time.Duration `yaml:"sync_timeout"`
}

// EventsConfig holds event defaults.
type EventsConfig struct {
	// Timezone is an IANA zone name for event dates.
	Timezone string `yaml:"timezone"`

	DefaultPort             int  `yaml:"default_port"`
	ModdedPort              int  `yaml:"modded_port"`
	AlwaysDisplayAttendance bool `yaml:"always_display_attendance"`

	// ArchiveGrace is how long after its start an event stays active
	// before archivepast moves it.
	ArchiveGrace time.Duration `yaml:"archive_grace"`

	// ReplyTimeout bounds how long a command waits for an operator's
	// confirmation.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// IconsConfig configures the named icon catalog.
type IconsConfig struct {
	Zeus       string `yaml:"zeus"`
	Attendance string `yaml:"attendance"`

	// Named maps icon names to reaction keys. Empty means the built-in
	// catalog.
	Named map[string]string `yaml:"named"`
}

// StatusConfig configures the HTTP status API. An empty Listen
// disables it.
type StatusConfig struct {
	Listen string `yaml:"listen"`
}

// NotifyConfig configures event-change publication. An empty URL
// disables it.
type NotifyConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the base configuration the file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Data:    "${HOME}/.local/share/muster",
			Events:  "${MUSTER_DATA}/events.json",
			Archive: "${MUSTER_DATA}/archive.json",
			State:   "${MUSTER_DATA}/state",
		},
		Matrix: MatrixConfig{
			SyncTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			Timezone:     "UTC",
			DefaultPort:  2302,
			ModdedPort:   2402,
			ArchiveGrace: 6 * time.Hour,
			ReplyTimeout: 2 * time.Minute,
		},
		Icons: IconsConfig{
			Zeus:       "ZEUS",
			Attendance: "ATTENDANCE",
		},
		Notify: NotifyConfig{
			SubjectPrefix: "muster.events",
		},
	}
}

// Load reads the file named by MUSTER_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your muster.yaml or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads a config file over Default, applies the environment's
// overrides, expands variables, and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	config.applyOverrides()
	config.expandVariables()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) overrides() *Overrides {
	switch c.Environment {
	case Development:
		return c.Development
	case Staging:
		return c.Staging
	case Production:
		return c.Production
	}
	return nil
}

func override(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) applyOverrides() {
	overrides := c.overrides()
	if overrides == nil {
		return
	}
	if paths := overrides.Paths; paths != nil {
		override(&c.Paths.Data, paths.Data)
		override(&c.Paths.Events, paths.Events)
		override(&c.Paths.Archive, paths.Archive)
		override(&c.Paths.State, paths.State)
		override(&c.Paths.Templates, paths.Templates)
	}
	if matrix := overrides.Matrix; matrix != nil {
		override(&c.Matrix.Homeserver, matrix.Homeserver)
		override(&c.Matrix.UserID, matrix.UserID)
		override(&c.Matrix.TokenFile, matrix.TokenFile)
		override(&c.Matrix.EventsRoom, matrix.EventsRoom)
		override(&c.Matrix.CommandRoom, matrix.CommandRoom)
		if len(matrix.Operators) > 0 {
			c.Matrix.Operators = matrix.Operators
		}
		if matrix.SyncTimeout != 0 {
			c.Matrix.SyncTimeout = matrix.SyncTimeout
		}
	}
	if status := overrides.Status; status != nil {
		override(&c.Status.Listen, status.Listen)
	}
	if notify := overrides.Notify; notify != nil {
		override(&c.Notify.URL, notify.URL)
		override(&c.Notify.SubjectPrefix, notify.SubjectPrefix)
	}
}

var variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expand replaces ${NAME} and ${NAME:-default}, looking in vars first
// and then the process environment.
func expand(value string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(value, func(match string) string {
		parts := variablePattern.FindStringSubmatch(match)
		if value := vars[parts[1]]; value != "" {
			return value
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

func (c *Config) expandVariables() {
	vars := map[string]string{}
	c.Paths.Data = filepath.Clean(expand(c.Paths.Data, vars))
	vars["MUSTER_DATA"] = c.Paths.Data
	for _, path := range []*string{
		&c.Paths.Events,
		&c.Paths.Archive,
		&c.Paths.State,
		&c.Paths.Templates,
		&c.Matrix.TokenFile,
	} {
		*path = expand(*path, vars)
	}
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Events.Timezone)
}

// CommandRoomID returns the command room, defaulting to the events
// room.
func (c *Config) CommandRoomID() (ref.RoomID, error) {
	if c.Matrix.CommandRoom == "" {
		return ref.ParseRoomID(c.Matrix.EventsRoom)
	}
	return ref.ParseRoomID(c.Matrix.CommandRoom)
}

// OperatorIDs parses the operator list.
func (c *Config) OperatorIDs() ([]ref.UserID, error) {
	operators := make([]ref.UserID, 0, len(c.Matrix.Operators))
	for _, raw := range c.Matrix.Operators {
		userID, err := ref.ParseUserID(raw)
		if err != nil {
			return nil, err
		}
		operators = append(operators, userID)
	}
	return operators, nil
}

func validPort(port int) bool { return port > 0 && port < 65536 }

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Environment {
	case Development, Staging, Production:
	default:
		add("invalid environment: %q", c.Environment)
	}

	if c.Paths.Events == "" {
		add("paths.events is required")
	}
	if c.Paths.Archive == "" {
		add("paths.archive is required")
	}
	if c.Paths.Events != "" && c.Paths.Events == c.Paths.Archive {
		add("paths.events and paths.archive must differ")
	}
	if c.Paths.State == "" {
		add("paths.state is required")
	}

	if c.Matrix.Homeserver == "" {
		add("matrix.homeserver is required")
	}
	if _, err := ref.ParseUserID(c.Matrix.UserID); err != nil {
		add("matrix.user_id: %v", err)
	}
	if c.Matrix.TokenFile == "" {
		add("matrix.token_file is required")
	}
	if _, err := ref.ParseRoomID(c.Matrix.EventsRoom); err != nil {
		add("matrix.events_room: %v", err)
	}
	if c.Matrix.CommandRoom != "" {
		if _, err := ref.ParseRoomID(c.Matrix.CommandRoom); err != nil {
			add("matrix.command_room: %v", err)
		}
	}
	if _, err := c.OperatorIDs(); err != nil {
		add("matrix.operators: %v", err)
	}
	if c.Matrix.SyncTimeout <= 0 {
		add("matrix.sync_timeout must be positive")
	}

	if _, err := c.Location(); err != nil {
		add("events.timezone: %v", err)
	}
	if !validPort(c.Events.DefaultPort) {
		add("events.default_port %d is out of range", c.Events.DefaultPort)
	}
	if !validPort(c.Events.ModdedPort) {
		add("events.modded_port %d is out of range", c.Events.ModdedPort)
	}
	if c.Events.ArchiveGrace < 0 {
		add("events.archive_grace must not be negative")
	}
	if c.Events.ReplyTimeout <= 0 {
		add("events.reply_timeout must be positive")
	}

	if c.Icons.Zeus == "" {
		add("icons.zeus is required")
	}

	if c.Notify.URL != "" && c.Notify.SubjectPrefix == "" {
		add("notify.subject_prefix is required when notify.url is set")
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the directories the bot writes to.
func (c *Config) EnsurePaths() error {
	for _, directory := range []string{
		c.Paths.State,
		filepath.Dir(c.Paths.Events),
		filepath.Dir(c.Paths.Archive),
	} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", directory, err)
		}
	}
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref holds validated Matrix identifiers.
//
// Each identifier is an immutable value type wrapping the raw string.
// Construction goes through a Parse function, so a non-zero value is
// always structurally valid. The zero value means "unset" and
// marshals to an empty string. All types implement
// encoding.TextMarshaler and encoding.TextUnmarshaler, which makes
// them usable as JSON values and JSON object keys.
package ref

import (
	"fmt"
	"strings"
)

// parseSigiled validates "<sigil>localpart:server" and returns the two
// halves.
func parseSigiled(raw string, sigil byte, kind string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("%s must start with %q: %q", kind, sigil, raw)
	}
	localpart, server, found := strings.Cut(raw[1:], ":")
	if !found {
		return "", "", fmt.Errorf("%s has no server part: %q", kind, raw)
	}
	if localpart == "" {
		return "", "", fmt.Errorf("%s has an empty localpart: %q", kind, raw)
	}
	if server == "" {
		return "", "", fmt.Errorf("%s has an empty server part: %q", kind, raw)
	}
	if strings.ContainsAny(raw, " \t\n") {
		return "", "", fmt.Errorf("%s contains whitespace: %q", kind, raw)
	}
	return localpart, server, nil
}

// UserID is a Matrix user ID such as "@alice:example.org".
type UserID struct {
	id string
}

// ParseUserID validates a raw user ID.
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := parseSigiled(raw, '@', "user ID"); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is ParseUserID for known-valid input; it panics on
// error.
func MustParseUserID(raw string) UserID {
	userID, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return userID
}

func (u UserID) String() string { return u.id }
func (u UserID) IsZero() bool   { return u.id == "" }

// Localpart returns the part between '@' and ':'. Empty for the zero
// value.
func (u UserID) Localpart() string {
	localpart, _, _ := strings.Cut(strings.TrimPrefix(u.id, "@"), ":")
	return localpart
}

// Server returns the part after the first ':'. Empty for the zero
// value.
func (u UserID) Server() string {
	_, server, _ := strings.Cut(u.id, ":")
	return server
}

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// RoomID is an opaque Matrix room ID such as "!abc:example.org".
type RoomID struct {
	id string
}

// ParseRoomID validates a raw room ID.
func ParseRoomID(raw string) (RoomID, error) {
	if _, _, err := parseSigiled(raw, '!', "room ID"); err != nil {
		return RoomID{}, err
	}
	return RoomID{id: raw}, nil
}

// MustParseRoomID is ParseRoomID for known-valid input; it panics on
// error.
func MustParseRoomID(raw string) RoomID {
	roomID, err := ParseRoomID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomID(%q): %v", raw, err))
	}
	return roomID
}

func (r RoomID) String() string { return r.id }
func (r RoomID) IsZero() bool   { return r.id == "" }

func (r RoomID) MarshalText() ([]byte, error) { return []byte(r.id), nil }

func (r *RoomID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RoomID{}
		return nil
	}
	parsed, err := ParseRoomID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// EventID is a Matrix event ID. Since room version 4 these are
// "$<hash>" without a server part, so the only structure checked is
// the sigil.
type EventID struct {
	id string
}

// ParseEventID validates a raw event ID.
func ParseEventID(raw string) (EventID, error) {
	if len(raw) < 2 || raw[0] != '$' {
		return EventID{}, fmt.Errorf("event ID must be '$' followed by at least one character: %q", raw)
	}
	return EventID{id: raw}, nil
}

// MustParseEventID is ParseEventID for known-valid input; it panics on
// error.
func MustParseEventID(raw string) EventID {
	eventID, err := ParseEventID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseEventID(%q): %v", raw, err))
	}
	return eventID
}

func (e EventID) String() string { return e.id }
func (e EventID) IsZero() bool   { return e.id == "" }

func (e EventID) MarshalText() ([]byte, error) { return []byte(e.id), nil }

func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// EventType is a Matrix event type such as "m.room.message". Any
// non-empty string is accepted.
type EventType string

func (t EventType) String() string { return string(t) }

// Event types the bot sends or reacts to.
const (
	EventTypeMessage   EventType = "m.room.message"
	EventTypeReaction  EventType = "m.reaction"
	EventTypeRedaction EventType = "m.room.redaction"
	EventTypeMember    EventType = "m.room.member"
)

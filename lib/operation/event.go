// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/muster/lib/icon"
)

// MaxReactions is the transport's limit on distinct reactions per
// message.
const MaxReactions = 20

// defaultDescriptor fills terrain and faction on new events.
const defaultDescriptor = "unknown"

// Event is one scheduled operation: its metadata, signup groups, and
// attendees, plus the fingerprint of the body last sent to chat.
type Event struct {
	// ID is allocated by the database and never reused.
	ID int

	// MessageID is the transport handle of the projected message, zero
	// when the event has no message yet.
	MessageID int64

	Date        time.Time
	Terrain     string
	Faction     string
	Description string
	Mods        string
	Overhaul    string
	Port        int

	Sideop    bool
	Reforger  bool
	Cancelled bool

	PlatoonSize PlatoonSize

	// EmbedHash is the hex fingerprint of the last projected body.
	// Empty forces the next projection to edit the message.
	EmbedHash string

	title     string
	dlc       string
	groups    []*RoleGroup
	attendees []Member
	settings  *Settings
}

// New constructs an event with the default layout for size followed
// by an empty Additional group.
func New(id int, date time.Time, sideop bool, size PlatoonSize, reforger bool, settings *Settings) (*Event, error) {
	event := newBare(id, settings)
	event.Date = date.In(settings.location())
	event.Sideop = sideop
	event.Reforger = reforger
	event.PlatoonSize = size

	for _, groupTemplate := range settings.Templates.Layout(size) {
		if !groupTemplate.createdByDefault() {
			continue
		}
		group := NewRoleGroup(groupTemplate.Name, groupTemplate.Inline)
		for _, roleTemplate := range groupTemplate.Roles {
			roleIcon, ok := settings.Icons.Lookup(roleTemplate.Icon)
			if !ok {
				return nil, fmt.Errorf("operation: %s template role %s: icon %q is not in the catalog",
					size, roleTemplate.Name, roleTemplate.Icon)
			}
			if err := group.Add(NewRole(roleTemplate.Name, roleIcon, roleTemplate.ShowName)); err != nil {
				return nil, fmt.Errorf("operation: %s template: %w", size, err)
			}
		}
		event.groups = append(event.groups, group)
	}
	event.groups = append(event.groups, NewAdditionalGroup())
	return event, nil
}

func newBare(id int, settings *Settings) *Event {
	return &Event{
		ID:          id,
		Terrain:     defaultDescriptor,
		Faction:     defaultDescriptor,
		Port:        settings.DefaultPort,
		PlatoonSize: Size1PLT,
		settings:    settings,
	}
}

// Settings returns the deployment settings the event derives from.
func (e *Event) Settings() *Settings { return e.settings }

// SetTitle overrides the derived title. An empty title restores
// derivation.
func (e *Event) SetTitle(title string) { e.title = title }

// TitleOverride returns the explicit title, or false when derived.
func (e *Event) TitleOverride() (string, bool) { return e.title, e.title != "" }

// SetDLC sets the explicit DLC. An empty value falls back to the
// terrain table.
func (e *Event) SetDLC(dlc string) { e.dlc = dlc }

// ExplicitDLC returns the DLC set by an operator, without the terrain
// fallback.
func (e *Event) ExplicitDLC() string { return e.dlc }

// DLC returns the DLC the event requires: the explicit value, else
// the one mapped from the terrain.
func (e *Event) DLC() string {
	if e.dlc != "" {
		return e.dlc
	}
	return e.settings.DLCTerrains[e.Terrain]
}

// SetDate moves the event to date, in the configured zone.
func (e *Event) SetDate(date time.Time) { e.Date = date.In(e.settings.location()) }

// Title returns the explicit title or the one derived from the event
// flags.
func (e *Event) Title() string {
	if e.title != "" {
		return e.title
	}
	title := e.derivedTitle()
	if e.PlatoonSize == SizeWW2Side {
		title = "WW2 " + title
	}
	return title
}

func (e *Event) derivedTitle() string {
	dlc := e.DLC()
	switch {
	case e.Cancelled:
		return "Cancelled Operation"
	case e.Overhaul != "":
		return e.Overhaul + " Overhaul Operation"
	case e.Reforger && dlc != "" && e.Sideop:
		return dlc + " Reforger Side Operation"
	case e.Reforger && dlc != "":
		return dlc + " Reforger"
	case e.Reforger && e.Sideop:
		return "Reforger Side Operation"
	case dlc != "" && e.Sideop:
		return dlc + " Side Operation"
	case dlc != "":
		return dlc + " Operation"
	case e.Sideop:
		return "Side Operation"
	case e.Reforger:
		return "Reforger Operation"
	default:
		return "Operation"
	}
}

// Accent colors, one per title rule.
const (
	ColorCancelled         = 0xFF0000
	ColorOverhaul          = 0x9B59B6
	ColorReforgerDLCSideop = 0x1ABC9C
	ColorReforgerDLC       = 0x16A085
	ColorReforgerSideop    = 0x2ECC71
	ColorDLCSideop         = 0xE67E22
	ColorDLC               = 0xD35400
	ColorSideop            = 0x3498DB
	ColorReforger          = 0x27AE60
	ColorDefault           = 0x7289DA
)

// Color returns the accent color, by the same precedence as the title.
func (e *Event) Color() int {
	dlc := e.DLC()
	switch {
	case e.Cancelled:
		return ColorCancelled
	case e.Overhaul != "":
		return ColorOverhaul
	case e.Reforger && dlc != "" && e.Sideop:
		return ColorReforgerDLCSideop
	case e.Reforger && dlc != "":
		return ColorReforgerDLC
	case e.Reforger && e.Sideop:
		return ColorReforgerSideop
	case dlc != "" && e.Sideop:
		return ColorDLCSideop
	case dlc != "":
		return ColorDLC
	case e.Sideop:
		return ColorSideop
	case e.Reforger:
		return ColorReforger
	default:
		return ColorDefault
	}
}

// showsAttendance reports whether the footer carries the attendee
// count and the message carries the attendance reaction.
func (e *Event) showsAttendance() bool {
	return e.Sideop || e.settings.AlwaysDisplayAttendance
}

// Groups returns the groups in display order. The slice is a copy.
func (e *Event) Groups() []*RoleGroup {
	groups := make([]*RoleGroup, len(e.groups))
	copy(groups, e.groups)
	return groups
}

// Group finds a group by name, exact match first.
func (e *Event) Group(name string) *RoleGroup {
	for _, group := range e.groups {
		if group.Name == name {
			return group
		}
	}
	for _, group := range e.groups {
		if strings.EqualFold(group.Name, name) {
			return group
		}
	}
	return nil
}

// Additional returns the pool-bound group.
func (e *Event) Additional() *RoleGroup {
	for _, group := range e.groups {
		if group.pooled {
			return group
		}
	}
	// Every constructor appends one; a missing group means the event
	// was decoded from a file without it.
	group := NewAdditionalGroup()
	e.groups = append(e.groups, group)
	return group
}

// Roles returns every role in display order.
func (e *Event) Roles() []*Role {
	var roles []*Role
	for _, group := range e.groups {
		roles = append(roles, group.roles...)
	}
	return roles
}

// FindRole finds a role by case-insensitive name anywhere in the event.
func (e *Event) FindRole(name string) (*Role, *RoleGroup) {
	for _, group := range e.groups {
		if role := group.Lookup(name); role != nil {
			return role, group
		}
	}
	return nil, nil
}

// RoleByIcon finds the role bound to reactionIcon.
func (e *Event) RoleByIcon(reactionIcon icon.Icon) *Role {
	for _, group := range e.groups {
		for _, role := range group.roles {
			if role.Icon.Equal(reactionIcon) {
				return role
			}
		}
	}
	return nil
}

// UserRole returns the role userID holds, or nil.
func (e *Event) UserRole(userID int64) *Role {
	for _, group := range e.groups {
		for _, role := range group.roles {
			if role.heldBy(userID) {
				return role
			}
		}
	}
	return nil
}

// Reactions returns the icons the event message should carry, in
// order: every non-Zeus role icon in display order, then the
// attendance icon when attendance is shown. A cancelled event carries
// none.
func (e *Event) Reactions() []icon.Icon {
	if e.Cancelled {
		return nil
	}
	var reactions []icon.Icon
	for _, group := range e.groups {
		for _, role := range group.roles {
			if e.settings.Icons.IsZeus(role.Icon) {
				continue
			}
			reactions = append(reactions, role.Icon)
		}
	}
	if attendance, ok := e.settings.Icons.Attendance(); ok && e.showsAttendance() {
		reactions = append(reactions, attendance)
	}
	return reactions
}

// ReactionCount returns len(Reactions()) without building the slice.
func (e *Event) ReactionCount() int {
	if e.Cancelled {
		return 0
	}
	return e.reactionDemand()
}

// reactionDemand counts the reactions the event carries once it is not
// cancelled. Capacity checks use it so that cancelling an event does
// not lift the reaction limit.
func (e *Event) reactionDemand() int {
	count := 0
	for _, group := range e.groups {
		for _, role := range group.roles {
			if !e.settings.Icons.IsZeus(role.Icon) {
				count++
			}
		}
	}
	if _, ok := e.settings.Icons.Attendance(); ok && e.showsAttendance() {
		count++
	}
	return count
}

// SignupCount returns the number of assigned roles.
func (e *Event) SignupCount() int {
	count := 0
	for _, group := range e.groups {
		for _, role := range group.roles {
			if role.Assigned() {
				count++
			}
		}
	}
	return count
}

func (e *Event) String() string {
	return fmt.Sprintf("%s %d (%s)", e.Title(), e.ID, e.Date.Format("2006-01-02 15:04"))
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bureau-foundation/muster/lib/icon"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Struct field order is the persisted key order.
type eventDocument struct {
	Title       *string       `json:"title"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	Description string        `json:"description"`
	Terrain     string        `json:"terrain"`
	Faction     string        `json:"faction"`
	Port        int           `json:"port"`
	Mods        string        `json:"mods"`
	DLC         string        `json:"dlc"`
	Overhaul    string        `json:"overhaul"`
	MessageID   int64         `json:"messageID"`
	PlatoonSize PlatoonSize   `json:"platoon_size"`
	Sideop      bool          `json:"sideop"`
	Reforger    bool          `json:"reforger"`
	Attendees   ObjectMembers `json:"attendees"`
	EmbedHash   string        `json:"embed_hash"`
	Cancelled   bool          `json:"cancelled"`
	RoleGroups  ObjectMembers `json:"roleGroups"`
}

type briefEventDocument struct {
	Title       *string       `json:"title"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	Description string        `json:"description"`
	Terrain     string        `json:"terrain"`
	Faction     string        `json:"faction"`
	Port        int           `json:"port"`
	Mods        string        `json:"mods"`
	DLC         string        `json:"dlc"`
	Overhaul    string        `json:"overhaul"`
	RoleGroups  ObjectMembers `json:"roleGroups"`
}

type groupDocument struct {
	Name     string        `json:"name"`
	IsInline bool          `json:"isInline"`
	Roles    ObjectMembers `json:"roles"`
}

type roleDocument struct {
	Name     string `json:"name"`
	ShowName bool   `json:"show_name"`
	UserID   *int64 `json:"userID"`
	UserName string `json:"userName"`
	Emoji    any    `json:"emoji"`
}

// briefRoleDocument carries name only for roles that render it.
type briefRoleDocument struct {
	Name     string `json:"name,omitempty"`
	UserName string `json:"userName"`
	Emoji    any    `json:"emoji"`
}

// ToJSON encodes the event. The full form reloads to an identical
// event; the brief form is what operators edit by hand and omits the
// message binding, flags, attendees, cache, and signup user IDs.
func (e *Event) ToJSON(brief bool) (json.RawMessage, error) {
	var title *string
	if override, ok := e.TitleOverride(); ok {
		title = &override
	}

	groups, err := e.encodeGroups(brief)
	if err != nil {
		return nil, err
	}

	local := e.Date.In(e.settings.location())
	if brief {
		return json.Marshal(briefEventDocument{
			Title:       title,
			Date:        local.Format(dateLayout),
			Time:        local.Format(timeLayout),
			Description: e.Description,
			Terrain:     e.Terrain,
			Faction:     e.Faction,
			Port:        e.Port,
			Mods:        e.Mods,
			DLC:         e.dlc,
			Overhaul:    e.Overhaul,
			RoleGroups:  groups,
		})
	}

	attendees := ObjectMembers{}
	for _, attendee := range e.attendees {
		if err := attendees.Set(strconv.FormatInt(attendee.ID, 10), attendee.Name); err != nil {
			return nil, err
		}
	}
	return json.Marshal(eventDocument{
		Title:       title,
		Date:        local.Format(dateLayout),
		Time:        local.Format(timeLayout),
		Description: e.Description,
		Terrain:     e.Terrain,
		Faction:     e.Faction,
		Port:        e.Port,
		Mods:        e.Mods,
		DLC:         e.dlc,
		Overhaul:    e.Overhaul,
		MessageID:   e.MessageID,
		PlatoonSize: e.PlatoonSize,
		Sideop:      e.Sideop,
		Reforger:    e.Reforger,
		Attendees:   attendees,
		EmbedHash:   e.EmbedHash,
		Cancelled:   e.Cancelled,
		RoleGroups:  groups,
	})
}

func (e *Event) encodeGroups(brief bool) (ObjectMembers, error) {
	groups := ObjectMembers{}
	for _, group := range e.groups {
		roles := ObjectMembers{}
		for _, role := range group.roles {
			var emoji any = role.Icon.Name
			if group.pooled {
				emoji = icon.PoolIndex(role.Icon)
			}
			var document any
			if brief {
				briefRole := briefRoleDocument{Emoji: emoji}
				if role.ShowName {
					briefRole.Name = role.Name
				}
				if holder, ok := role.User(); ok {
					briefRole.UserName = holder.Name
				}
				document = briefRole
			} else {
				fullRole := roleDocument{Name: role.Name, ShowName: role.ShowName, Emoji: emoji}
				if holder, ok := role.User(); ok {
					fullRole.UserID = &holder.ID
					fullRole.UserName = holder.Name
				}
				document = fullRole
			}
			if err := roles.Set(role.Name, document); err != nil {
				return nil, err
			}
		}
		if err := groups.Set(group.Name, groupDocument{Name: group.Name, IsInline: group.IsInline, Roles: roles}); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// Decoding accepts both forms, so optional members are pointers.
type eventInput struct {
	Title       *string       `json:"title"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	Description string        `json:"description"`
	Terrain     string        `json:"terrain"`
	Faction     string        `json:"faction"`
	Port        *int          `json:"port"`
	Mods        string        `json:"mods"`
	DLC         string        `json:"dlc"`
	Overhaul    string        `json:"overhaul"`
	MessageID   int64         `json:"messageID"`
	PlatoonSize *string       `json:"platoon_size"`
	Sideop      bool          `json:"sideop"`
	Reforger    bool          `json:"reforger"`
	Attendees   ObjectMembers `json:"attendees"`
	EmbedHash   string        `json:"embed_hash"`
	Cancelled   bool          `json:"cancelled"`
	RoleGroups  ObjectMembers `json:"roleGroups"`
}

type groupInput struct {
	IsInline *bool         `json:"isInline"`
	Roles    ObjectMembers `json:"roles"`
}

type roleInput struct {
	Name     *string         `json:"name"`
	ShowName *bool           `json:"show_name"`
	UserID   *int64          `json:"userID"`
	UserName string          `json:"userName"`
	Emoji    json.RawMessage `json:"emoji"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrMalformedData)
}

func decodeEventInput(data []byte) (*eventInput, error) {
	var input eventInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, malformed("decoding event: %v", err)
	}
	return &input, nil
}

func (input *eventInput) date(location *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(dateLayout+" "+timeLayout, input.Date+" "+input.Time, location)
	if err != nil {
		return time.Time{}, malformed("date %q time %q: %v", input.Date, input.Time, err)
	}
	return date, nil
}

// FromJSON decodes an event in either form.
func FromJSON(id int, data []byte, settings *Settings) (*Event, error) {
	input, err := decodeEventInput(data)
	if err != nil {
		return nil, err
	}
	event := newBare(id, settings)
	if err := event.applyScalars(input); err != nil {
		return nil, err
	}
	event.MessageID = input.MessageID
	event.Sideop = input.Sideop
	event.Reforger = input.Reforger
	event.EmbedHash = input.EmbedHash
	event.Cancelled = input.Cancelled
	if input.PlatoonSize != nil {
		size, err := ParsePlatoonSize(*input.PlatoonSize)
		if err != nil {
			return nil, malformed("%v", err)
		}
		event.PlatoonSize = size
	}

	for _, member := range input.Attendees {
		userID, err := strconv.ParseInt(member.Key, 10, 64)
		if err != nil {
			return nil, malformed("attendee key %q is not a user ID", member.Key)
		}
		var name string
		if err := json.Unmarshal(member.Value, &name); err != nil {
			return nil, malformed("attendee %d: %v", userID, err)
		}
		if !event.AttendeeAdd(Member{ID: userID, Name: name}) {
			return nil, malformed("attendee %d listed twice", userID)
		}
	}

	groups, err := event.decodeGroups(input.RoleGroups, false)
	if err != nil {
		return nil, err
	}
	event.groups = groups
	if event.reactionDemand() > MaxReactions {
		return nil, malformed("event %d needs %d reactions, limit is %d", id, event.reactionDemand(), MaxReactions)
	}
	return event, nil
}

// Apply updates the event in place from a hand-edited document (either
// form). Metadata is overwritten, existing groups and roles are
// updated, groups and roles absent from the document are removed.
// Signup user IDs cannot be invented from a display name: a role may
// keep its holder or be cleared, and only the full form may assign a
// new holder. On error the event is unchanged.
func (e *Event) Apply(data []byte) error {
	input, err := decodeEventInput(data)
	if err != nil {
		return err
	}
	staged := *e
	if err := staged.applyScalars(input); err != nil {
		return err
	}
	groups, err := e.decodeGroups(input.RoleGroups, true)
	if err != nil {
		return err
	}
	staged.groups = groups
	if staged.reactionDemand() > MaxReactions {
		return fmt.Errorf("event %d would need %d reactions, limit is %d: %w",
			e.ID, staged.reactionDemand(), MaxReactions, ErrRole)
	}
	*e = staged
	return nil
}

func (e *Event) applyScalars(input *eventInput) error {
	date, err := input.date(e.settings.location())
	if err != nil {
		return err
	}
	e.Date = date
	e.title = ""
	if input.Title != nil {
		e.title = *input.Title
	}
	e.Description = input.Description
	e.Terrain = input.Terrain
	e.Faction = input.Faction
	e.Port = e.settings.DefaultPort
	if input.Port != nil {
		e.Port = *input.Port
	}
	e.Mods = input.Mods
	e.dlc = input.DLC
	e.Overhaul = input.Overhaul
	return nil
}

// decodeGroups builds fresh groups from document members. With merge,
// roles present on the receiver keep their show_name and holder unless
// the document overrides them.
func (e *Event) decodeGroups(members ObjectMembers, merge bool) ([]*RoleGroup, error) {
	var groups []*RoleGroup
	var additional *RoleGroup
	for _, member := range members {
		var input groupInput
		if err := json.Unmarshal(member.Value, &input); err != nil {
			return nil, malformed("group %q: %v", member.Key, err)
		}

		var existing *RoleGroup
		if merge {
			existing = e.Group(member.Key)
		}

		var group *RoleGroup
		if member.Key == AdditionalGroupName {
			group = NewAdditionalGroup()
			additional = group
		} else {
			inline := true
			if existing != nil {
				inline = existing.IsInline
			}
			if input.IsInline != nil {
				inline = *input.IsInline
			}
			group = NewRoleGroup(member.Key, inline)
		}

		for _, roleMember := range input.Roles {
			var previous *Role
			if existing != nil {
				previous = existing.Lookup(roleMember.Key)
			}
			role, err := e.decodeRole(group, roleMember, previous)
			if err != nil {
				return nil, err
			}
			if err := group.Add(role); err != nil {
				return nil, malformed("%v", err)
			}
		}
		if additional != group {
			groups = append(groups, group)
		}
	}
	if additional == nil {
		additional = NewAdditionalGroup()
	}
	groups = append(groups, additional)

	holders := make(map[int64]string)
	for _, group := range groups {
		for _, role := range group.roles {
			if role.user == nil {
				continue
			}
			if other, taken := holders[role.user.ID]; taken {
				return nil, malformed("user %d is signed up as both %s and %s", role.user.ID, other, role.Name)
			}
			holders[role.user.ID] = role.Name
		}
	}
	return groups, nil
}

func (e *Event) decodeRole(group *RoleGroup, member ObjectMember, previous *Role) (*Role, error) {
	var input roleInput
	if err := json.Unmarshal(member.Value, &input); err != nil {
		return nil, malformed("role %q in %s: %v", member.Key, group.Name, err)
	}

	name := member.Key
	if input.Name != nil && *input.Name != "" {
		name = *input.Name
	}

	roleIcon, err := e.decodeIcon(input.Emoji, previous)
	if err != nil {
		return nil, malformed("role %s in %s: %v", name, group.Name, err)
	}

	showName := group.pooled || input.Name != nil
	if previous != nil {
		showName = previous.ShowName
	}
	if input.ShowName != nil {
		showName = *input.ShowName
	}
	role := NewRole(name, roleIcon, showName)

	switch {
	case input.UserID != nil:
		if input.UserName == "" {
			return nil, malformed("role %s in %s: userID %d without userName", name, group.Name, *input.UserID)
		}
		role.user = &Member{ID: *input.UserID, Name: input.UserName}
	case input.UserName == "":
	case previous != nil && previous.user != nil && previous.user.Name == input.UserName:
		holder := *previous.user
		role.user = &holder
	default:
		return nil, malformed("role %s in %s: cannot sign up %q without a user ID", name, group.Name, input.UserName)
	}
	return role, nil
}

// decodeIcon resolves an emoji member: a pool index or a catalog name.
// A missing emoji keeps the previous role's icon.
func (e *Event) decodeIcon(raw json.RawMessage, previous *Role) (icon.Icon, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if previous != nil {
			return previous.Icon, nil
		}
		return icon.Icon{}, fmt.Errorf("missing emoji")
	}
	var index int
	if err := json.Unmarshal(raw, &index); err == nil {
		poolIcon, ok := icon.PoolAt(index)
		if !ok {
			return icon.Icon{}, fmt.Errorf("pool index %d out of range", index)
		}
		return poolIcon, nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return icon.Icon{}, fmt.Errorf("emoji must be a name or a pool index: %v", err)
	}
	named, ok := e.settings.Icons.Lookup(name)
	if !ok {
		return icon.Icon{}, fmt.Errorf("unknown icon %q", name)
	}
	return named, nil
}

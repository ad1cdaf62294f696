// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/muster/lib/icon"
)

// owns reports whether role belongs to one of the event's groups.
func (e *Event) owns(role *Role) bool {
	for _, group := range e.groups {
		for _, candidate := range group.roles {
			if candidate == role {
				return true
			}
		}
	}
	return false
}

// Signup puts member into role. It returns the role member held before
// (nil if none) and the user role held before (nil if it was free).
//
// An assigned role fails with ErrRoleTaken unless replace is set, even
// when member is the holder. Any successful signup clears Cancelled.
func (e *Event) Signup(role *Role, member Member, replace bool) (previous *Role, replaced *Member, err error) {
	if !e.owns(role) {
		return nil, nil, fmt.Errorf("role %s is not part of event %d: %w", role.Name, e.ID, ErrNotFound)
	}
	if member.Name == "" {
		return nil, nil, fmt.Errorf("signup to %s: member %d has no display name", role.Name, member.ID)
	}
	if role.Assigned() && !replace {
		holder, _ := role.User()
		return nil, nil, fmt.Errorf("%s is taken by %s: %w", role.Name, holder.Name, ErrRoleTaken)
	}

	previous = e.UserRole(member.ID)
	if holder, ok := role.User(); ok {
		replaced = &holder
	}
	if previous != nil {
		previous.Clear()
	}
	if err := role.Assign(member); err != nil {
		return nil, nil, err
	}
	e.Cancelled = false
	return previous, replaced, nil
}

// UndoSignup frees whichever role userID holds and returns it, or nil
// when the user held none.
func (e *Event) UndoSignup(userID int64) *Role {
	role := e.UserRole(userID)
	if role != nil {
		role.Clear()
	}
	return role
}

// Attendees returns the attendance list in insertion order.
func (e *Event) Attendees() []Member {
	attendees := make([]Member, len(e.attendees))
	copy(attendees, e.attendees)
	return attendees
}

// HasAttendee reports whether userID marked attendance.
func (e *Event) HasAttendee(userID int64) bool {
	for _, attendee := range e.attendees {
		if attendee.ID == userID {
			return true
		}
	}
	return false
}

// AttendeeAdd records attendance. It reports false when the user was
// already listed.
func (e *Event) AttendeeAdd(member Member) bool {
	if e.HasAttendee(member.ID) {
		return false
	}
	e.attendees = append(e.attendees, member)
	return true
}

// AttendeeRemove drops userID from the attendance list. It reports
// false when the user was not listed.
func (e *Event) AttendeeRemove(userID int64) bool {
	for index, attendee := range e.attendees {
		if attendee.ID == userID {
			e.attendees = append(e.attendees[:index], e.attendees[index+1:]...)
			return true
		}
	}
	return false
}

// checkNameFree fails when name collides with any role in the event
// other than except.
func (e *Event) checkNameFree(name string, except *Role) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("role name must not be empty: %w", ErrRole)
	}
	if existing, group := e.FindRole(name); existing != nil && existing != except {
		return fmt.Errorf("role %s already exists in %s: %w", existing.Name, group.Name, ErrRole)
	}
	return nil
}

// AddAdditional creates a role in the Additional group and returns the
// pool icon it was bound to.
func (e *Event) AddAdditional(name string) (icon.Icon, error) {
	if err := e.checkNameFree(name, nil); err != nil {
		return icon.Icon{}, err
	}
	if e.reactionDemand() >= MaxReactions {
		return icon.Icon{}, fmt.Errorf("event %d already has %d reactions: %w", e.ID, MaxReactions, ErrRole)
	}
	role := NewRole(name, icon.Icon{}, true)
	if err := e.Additional().Add(role); err != nil {
		return icon.Icon{}, err
	}
	return role.Icon, nil
}

// RemoveAdditional deletes a role from the Additional group. Roles in
// other groups cannot be removed this way.
func (e *Event) RemoveAdditional(name string) (*Role, error) {
	additional := e.Additional()
	if additional.Lookup(name) == nil {
		return nil, fmt.Errorf("no additional role %s in event %d: %w", name, e.ID, ErrNotFound)
	}
	return additional.Remove(name)
}

// RenameAdditional renames a role of the Additional group.
func (e *Event) RenameAdditional(oldName, newName string) (*Role, error) {
	role := e.Additional().Lookup(oldName)
	if role == nil {
		return nil, fmt.Errorf("no additional role %s in event %d: %w", oldName, e.ID, ErrNotFound)
	}
	if err := e.checkNameFree(newName, role); err != nil {
		return nil, err
	}
	role.Name = newName
	return role, nil
}

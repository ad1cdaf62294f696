// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/muster/lib/icon"
)

// zeroWidthSpace keeps icon-only lines and placeholder fields from
// being collapsed by chat clients.
const zeroWidthSpace = "​"

// AdditionalGroupName is the name of the pool-bound group every event
// carries last.
const AdditionalGroupName = "Additional"

// Member is a chat user as the event stores it.
type Member struct {
	ID   int64
	Name string
}

// Role is a named signup slot bound to an icon. It holds at most one
// user.
type Role struct {
	Name     string
	Icon     icon.Icon
	ShowName bool

	// user is nil when the role is free. Assign rejects empty names, so
	// a present user always has a display name.
	user *Member
}

// NewRole constructs an unassigned role.
func NewRole(name string, roleIcon icon.Icon, showName bool) *Role {
	return &Role{Name: name, Icon: roleIcon, ShowName: showName}
}

// User returns the assigned member, or false when the role is free.
func (r *Role) User() (Member, bool) {
	if r.user == nil {
		return Member{}, false
	}
	return *r.user, true
}

// Assigned reports whether a user holds the role.
func (r *Role) Assigned() bool { return r.user != nil }

// Assign writes member into the role, replacing any current holder.
func (r *Role) Assign(member Member) error {
	if member.Name == "" {
		return fmt.Errorf("assigning %s: member %d has no display name", r.Name, member.ID)
	}
	r.user = &member
	return nil
}

// Clear frees the role.
func (r *Role) Clear() { r.user = nil }

func (r *Role) heldBy(userID int64) bool {
	return r.user != nil && r.user.ID == userID
}

// Render returns the role's line in the group field.
func (r *Role) Render() string {
	switch {
	case r.ShowName:
		userName := ""
		if r.user != nil {
			userName = r.user.Name
		}
		return fmt.Sprintf("%s %s: %s", r.Icon.Key, r.Name, userName)
	case r.user != nil:
		return fmt.Sprintf("%s %s", r.Icon.Key, r.user.Name)
	default:
		return r.Icon.Key + zeroWidthSpace
	}
}

// RoleGroup is an ordered, named list of roles rendered as one field
// of the event message.
type RoleGroup struct {
	Name     string
	IsInline bool

	roles []*Role

	// pooled marks the Additional group: role icons come from the icon
	// pool by position.
	pooled bool
}

// NewRoleGroup constructs an empty group.
func NewRoleGroup(name string, inline bool) *RoleGroup {
	return &RoleGroup{Name: name, IsInline: inline}
}

// NewAdditionalGroup constructs the empty pool-bound group.
func NewAdditionalGroup() *RoleGroup {
	return &RoleGroup{Name: AdditionalGroupName, pooled: true}
}

// IsAdditional reports whether the group draws icons from the pool.
func (g *RoleGroup) IsAdditional() bool { return g.pooled }

// IsPlaceholder reports whether the group is an alignment spacer.
func (g *RoleGroup) IsPlaceholder() bool { return isPlaceholderName(g.Name) }

func isPlaceholderName(name string) bool { return strings.HasPrefix(name, "Dummy") }

// Roles returns the roles in order. The slice is a copy; the roles are
// not.
func (g *RoleGroup) Roles() []*Role {
	roles := make([]*Role, len(g.roles))
	copy(roles, g.roles)
	return roles
}

// Len returns the number of roles.
func (g *RoleGroup) Len() int { return len(g.roles) }

// Lookup finds a role by case-insensitive name.
func (g *RoleGroup) Lookup(name string) *Role {
	for _, role := range g.roles {
		if strings.EqualFold(role.Name, name) {
			return role
		}
	}
	return nil
}

// Add appends role. In the Additional group the role's icon is
// overwritten with the next pool icon.
func (g *RoleGroup) Add(role *Role) error {
	if g.Lookup(role.Name) != nil {
		return fmt.Errorf("group %s already has a role named %s: %w", g.Name, role.Name, ErrRole)
	}
	if g.pooled {
		poolIcon, ok := icon.PoolAt(len(g.roles))
		if !ok {
			return fmt.Errorf("group %s is full (%d roles): %w", g.Name, icon.PoolSize, ErrRole)
		}
		role.Icon = poolIcon
	}
	g.roles = append(g.roles, role)
	return nil
}

// Remove deletes the named role and returns it. Survivors keep their
// relative order; in the Additional group their icons are re-bound to
// the pool prefix.
func (g *RoleGroup) Remove(name string) (*Role, error) {
	for index, role := range g.roles {
		if !strings.EqualFold(role.Name, name) {
			continue
		}
		g.roles = append(g.roles[:index], g.roles[index+1:]...)
		if g.pooled {
			g.rebindPool()
		}
		return role, nil
	}
	return nil, fmt.Errorf("role %s in group %s: %w", name, g.Name, ErrNotFound)
}

func (g *RoleGroup) rebindPool() {
	for index, role := range g.roles {
		role.Icon, _ = icon.PoolAt(index)
	}
}

// Render returns the field value: role lines joined by newlines.
func (g *RoleGroup) Render() string {
	lines := make([]string, len(g.roles))
	for index, role := range g.roles {
		lines[index] = role.Render()
	}
	return strings.Join(lines, "\n")
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"fmt"
	"strings"
)

type resizeTransition struct {
	from, to PlatoonSize
}

// resizeAlgorithms lists every supported platoon size change. Each
// algorithm restructures groups; ChangeSize then sets the size and
// reorders to the target layout.
var resizeAlgorithms = map[resizeTransition]func(*Event, *resizeLog){
	{from: Size2PLT, to: Size1PLT}: shrinkToOnePlatoon,
}

// resizeLog collects the users displaced by a resize.
type resizeLog struct {
	lines []string
}

func (l *resizeLog) dropped(role *Role, reason string) {
	if holder, ok := role.User(); ok {
		l.lines = append(l.lines, fmt.Sprintf("%s (%s) %s", role.Name, holder.Name, reason))
	}
}

func (l *resizeLog) String() string { return strings.Join(l.lines, "\n") }

// ChangeSize restructures the event for a new platoon size and returns
// one warning line per signed-up user whose role was dropped.
// Transitions without an algorithm fail with ErrUnsupportedResize and
// leave the event untouched.
func (e *Event) ChangeSize(size PlatoonSize) (string, error) {
	algorithm, ok := resizeAlgorithms[resizeTransition{from: e.PlatoonSize, to: size}]
	if !ok {
		return "", fmt.Errorf("%s to %s: %w", e.PlatoonSize, size, ErrUnsupportedResize)
	}
	var log resizeLog
	algorithm(e, &log)
	e.PlatoonSize = size
	e.dropEmptyUnlisted()
	e.Reorder()
	return log.String(), nil
}

func shrinkToOnePlatoon(e *Event, log *resizeLog) {
	e.moveRole("ZEUS", "Battalion", "Company", log)
	e.moveRole("FAC", "Company", "1st Platoon", log)
	e.moveRole("RTO", "Company", "1st Platoon", log)
	e.deleteRole("CO", "Company", log)
	e.deleteRole("2PLT", "2nd Platoon", log)

	squadTargets := []string{"Charlie", "Delta"}
	nextTarget := func() string {
		for _, name := range squadTargets {
			if e.Group(name) == nil {
				return name
			}
		}
		return ""
	}

	if target := nextTarget(); target != "" {
		e.moveRole("ESL", "Echo", target, log)
		e.moveRole("E1", "Echo", target, log)
	} else {
		e.deleteRole("ESL", "Echo", log)
		e.deleteRole("E1", "Echo", log)
	}

	if foxtrot := e.Group("Foxtrot"); foxtrot != nil {
		target := nextTarget()
		if foxtrot.hasSignupAmong("FSL", "F1") && target != "" {
			e.moveRole("FSL", "Foxtrot", target, log)
			e.moveRole("F1", "Foxtrot", target, log)
		} else {
			e.removeGroup("Foxtrot", log)
		}
	}

	for _, group := range e.Groups() {
		if group.IsPlaceholder() {
			e.removeGroup(group.Name, log)
		}
	}
}

func (g *RoleGroup) hasSignupAmong(names ...string) bool {
	for _, name := range names {
		if role := g.Lookup(name); role != nil && role.Assigned() {
			return true
		}
	}
	return false
}

// ensureGroup returns the named group, creating it before Additional
// when missing. A created group takes its inline flag from the current
// layout, defaulting to inline.
func (e *Event) ensureGroup(name string) *RoleGroup {
	if group := e.Group(name); group != nil {
		return group
	}
	inline := true
	if groupTemplate, ok := e.settings.Templates.Layout(e.PlatoonSize).find(name); ok {
		inline = groupTemplate.Inline
	}
	group := NewRoleGroup(name, inline)
	e.insertBeforeAdditional(group)
	return group
}

func (e *Event) insertBeforeAdditional(group *RoleGroup) {
	for index, existing := range e.groups {
		if existing.pooled {
			e.groups = append(e.groups[:index], append([]*RoleGroup{group}, e.groups[index:]...)...)
			return
		}
	}
	e.groups = append(e.groups, group)
}

func (e *Event) moveRole(roleName, from, to string, log *resizeLog) {
	source := e.Group(from)
	if source == nil || source.Lookup(roleName) == nil {
		return
	}
	role, _ := source.Remove(roleName)
	target := e.ensureGroup(to)
	if err := target.Add(role); err != nil {
		log.dropped(role, fmt.Sprintf("dropped moving %s to %s: %v", from, to, err))
	}
}

func (e *Event) deleteRole(roleName, from string, log *resizeLog) {
	source := e.Group(from)
	if source == nil || source.Lookup(roleName) == nil {
		return
	}
	role, _ := source.Remove(roleName)
	log.dropped(role, "removed with "+from)
}

func (e *Event) removeGroup(name string, log *resizeLog) {
	for index, group := range e.groups {
		if group.Name != name || group.pooled {
			continue
		}
		for _, role := range group.roles {
			log.dropped(role, "removed with "+name)
		}
		e.groups = append(e.groups[:index], e.groups[index+1:]...)
		return
	}
}

// dropEmptyUnlisted removes empty groups the current layout does not
// name.
func (e *Event) dropEmptyUnlisted() {
	layout := e.settings.Templates.Layout(e.PlatoonSize)
	kept := e.groups[:0]
	for _, group := range e.groups {
		if _, listed := layout.find(group.Name); !listed && !group.pooled && !group.IsPlaceholder() && len(group.roles) == 0 {
			continue
		}
		kept = append(kept, group)
	}
	e.groups = kept
}

// Reorder arranges groups by the current layout. Template entries that
// are missing but precede a present one become empty placeholders
// ("Dummy" for spacer entries, "Dummy <name>" otherwise). Groups the
// layout does not name keep their relative order after the layout
// groups, and Additional stays last.
func (e *Event) Reorder() {
	layout := e.settings.Templates.Layout(e.PlatoonSize)

	listed := make(map[string]*RoleGroup, len(e.groups))
	var unlisted []*RoleGroup
	var additional *RoleGroup
	for _, group := range e.groups {
		switch {
		case group.pooled:
			additional = group
		case group.IsPlaceholder():
			// Placeholders are re-derived below.
		default:
			if _, ok := layout.find(group.Name); ok {
				listed[group.Name] = group
			} else {
				unlisted = append(unlisted, group)
			}
		}
	}

	last := -1
	for index, groupTemplate := range layout {
		if listed[groupTemplate.Name] != nil {
			last = index
		}
	}

	ordered := make([]*RoleGroup, 0, len(e.groups)+len(layout))
	for _, groupTemplate := range layout[:last+1] {
		if group := listed[groupTemplate.Name]; group != nil {
			ordered = append(ordered, group)
			continue
		}
		name := groupTemplate.Name
		if !isPlaceholderName(name) {
			name = "Dummy " + name
		}
		ordered = append(ordered, NewRoleGroup(name, groupTemplate.Inline))
	}
	ordered = append(ordered, unlisted...)
	if additional == nil {
		additional = NewAdditionalGroup()
	}
	e.groups = append(ordered, additional)
}

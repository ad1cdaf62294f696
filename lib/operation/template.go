// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// PlatoonSize selects the default group layout of an event.
type PlatoonSize string

const (
	Size1PLT    PlatoonSize = "1PLT"
	Size2PLT    PlatoonSize = "2PLT"
	SizeSideop  PlatoonSize = "sideop"
	SizeWW2Side PlatoonSize = "WW2side"
	SizeEmpty   PlatoonSize = "empty"
)

// PlatoonSizes lists every size in display order.
var PlatoonSizes = []PlatoonSize{Size1PLT, Size2PLT, SizeSideop, SizeWW2Side, SizeEmpty}

// ParsePlatoonSize accepts a size name, case-insensitively.
func ParsePlatoonSize(raw string) (PlatoonSize, error) {
	for _, size := range PlatoonSizes {
		if strings.EqualFold(string(size), raw) {
			return size, nil
		}
	}
	return "", fmt.Errorf("unknown platoon size %q (valid: 1PLT, 2PLT, sideop, WW2side, empty)", raw)
}

//go:embed templates.jsonc
var defaultTemplatesSource []byte

// RoleTemplate describes one role of a template group.
type RoleTemplate struct {
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	ShowName bool   `json:"show_name"`
}

// UnmarshalJSON accepts either an icon name or a full object.
func (r *RoleTemplate) UnmarshalJSON(data []byte) error {
	var iconName string
	if err := json.Unmarshal(data, &iconName); err == nil {
		*r = RoleTemplate{Name: iconName, Icon: iconName}
		return nil
	}
	type plain RoleTemplate
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.Icon == "" {
		decoded.Icon = decoded.Name
	}
	*r = RoleTemplate(decoded)
	return nil
}

// GroupTemplate describes one group position of a layout.
type GroupTemplate struct {
	Name   string         `json:"name"`
	Inline bool           `json:"inline"`
	Roles  []RoleTemplate `json:"roles"`
}

// createdByDefault reports whether new events get this group.
func (g GroupTemplate) createdByDefault() bool {
	return len(g.Roles) > 0 || isPlaceholderName(g.Name)
}

// Layout is the ordered group list of one platoon size.
type Layout []GroupTemplate

// Order returns the group names in display order.
func (l Layout) Order() []string {
	names := make([]string, len(l))
	for index, group := range l {
		names[index] = group.Name
	}
	return names
}

func (l Layout) find(name string) (GroupTemplate, bool) {
	for _, group := range l {
		if group.Name == name {
			return group, true
		}
	}
	return GroupTemplate{}, false
}

// Templates holds one Layout per platoon size.
type Templates struct {
	layouts map[PlatoonSize]Layout
}

// ParseTemplates decodes a JSONC template document and checks that
// every platoon size has a layout with unique group names and roles
// only in non-placeholder groups.
func ParseTemplates(source []byte) (*Templates, error) {
	var decoded map[string]Layout
	if err := json.Unmarshal(jsonc.ToJSON(source), &decoded); err != nil {
		return nil, fmt.Errorf("operation: parsing templates: %w", err)
	}

	templates := &Templates{layouts: make(map[PlatoonSize]Layout, len(decoded))}
	var errs []error
	for rawSize, layout := range decoded {
		size, err := ParsePlatoonSize(rawSize)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		seen := make(map[string]bool, len(layout))
		for _, group := range layout {
			switch {
			case group.Name == "":
				errs = append(errs, fmt.Errorf("%s: group with empty name", size))
			case group.Name == AdditionalGroupName:
				errs = append(errs, fmt.Errorf("%s: %s is implicit and must not be listed", size, AdditionalGroupName))
			case seen[group.Name]:
				errs = append(errs, fmt.Errorf("%s: group %q listed twice", size, group.Name))
			case isPlaceholderName(group.Name) && len(group.Roles) > 0:
				errs = append(errs, fmt.Errorf("%s: placeholder group %q must not have roles", size, group.Name))
			}
			seen[group.Name] = true
		}
		templates.layouts[size] = layout
	}
	for _, size := range PlatoonSizes {
		if _, ok := templates.layouts[size]; !ok {
			errs = append(errs, fmt.Errorf("no layout for platoon size %s", size))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("operation: invalid templates: %w", err)
	}
	return templates, nil
}

// LoadTemplates reads and parses a template file.
func LoadTemplates(path string) (*Templates, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("operation: reading templates: %w", err)
	}
	return ParseTemplates(source)
}

// DefaultTemplates returns the built-in layouts.
func DefaultTemplates() *Templates {
	templates, err := ParseTemplates(defaultTemplatesSource)
	if err != nil {
		panic("operation: embedded templates are invalid: " + err.Error())
	}
	return templates
}

// Layout returns the layout for size.
func (t *Templates) Layout(size PlatoonSize) Layout {
	return t.layouts[size]
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Body is the structured content of an event message.
type Body struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
}

// Field is one group column of the message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// bodyDomainKey separates body fingerprints from any other BLAKE3
// keyed hash. Changing it invalidates every stored EmbedHash, which
// costs one edit per event and nothing else.
var bodyDomainKey = [32]byte{
	'm', 'u', 's', 't', 'e', 'r', '.', 'o', 'p', 'e', 'r', 'a', 't', 'i', 'o', 'n',
	'.', 'b', 'o', 'd', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns the hex keyed BLAKE3 digest over every rendered
// part of the body. Each part is length-prefixed so that moving text
// between parts changes the digest.
func (b *Body) Fingerprint() string {
	hasher, err := blake3.NewKeyed(bodyDomainKey[:])
	if err != nil {
		panic("operation: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var scratch [binary.MaxVarintLen64]byte
	writePart := func(part string) {
		hasher.Write(scratch[:binary.PutUvarint(scratch[:], uint64(len(part)))])
		hasher.WriteString(part)
	}
	writePart(b.Title)
	writePart(b.Description)
	writePart(fmt.Sprintf("%06x", b.Color))
	for _, field := range b.Fields {
		writePart(field.Name)
		writePart(field.Value)
		if field.Inline {
			writePart("inline")
		} else {
			writePart("block")
		}
	}
	writePart(b.Footer)
	return hex.EncodeToString(hasher.Sum(nil))
}

// BuildBody renders the event. With cache, it returns nil when the
// rendering matches EmbedHash; otherwise, and always without cache, it
// stores the new fingerprint in EmbedHash and returns the body.
func (e *Event) BuildBody(cache bool) *Body {
	body := e.render()
	fingerprint := body.Fingerprint()
	if cache && fingerprint == e.EmbedHash {
		return nil
	}
	e.EmbedHash = fingerprint
	return body
}

func (e *Event) render() *Body {
	return &Body{
		Title:       e.Title(),
		Description: e.renderDescription(),
		Color:       e.Color(),
		Fields:      e.renderFields(),
		Footer:      e.renderFooter(),
	}
}

// TimestampPlaceholder formats a transport timestamp reference. Style
// "F" is the full absolute date, "R" the relative form.
func TimestampPlaceholder(unix int64, style string) string {
	return fmt.Sprintf("<t:%d:%s>", unix, style)
}

func (e *Event) renderDescription() string {
	unix := e.Date.Unix()
	header := []string{
		fmt.Sprintf("Local time: %s (%s)", TimestampPlaceholder(unix, "F"), TimestampPlaceholder(unix, "R")),
		fmt.Sprintf("Terrain: %s - Faction: %s", e.Terrain, e.Faction),
	}
	if e.Port != e.settings.DefaultPort {
		header = append(header, fmt.Sprintf("Server port: **%d**", e.Port))
	}
	if e.Reforger {
		header = append(header, "**Arma Reforger required**")
	}
	if dlc := e.DLC(); dlc != "" {
		header = append(header, fmt.Sprintf("**%s DLC required**", dlc))
	}

	paragraphs := []string{strings.Join(header, "\n")}
	if e.Description != "" {
		paragraphs = append(paragraphs, e.Description)
	}
	if e.Mods != "" {
		if strings.Contains(e.Mods, "\n") {
			paragraphs = append(paragraphs, "Mods:\n"+e.Mods)
		} else {
			paragraphs = append(paragraphs, "Mods: "+e.Mods)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func (e *Event) renderFields() []Field {
	var fields []Field
	for _, group := range e.groups {
		switch {
		case group.IsPlaceholder():
			fields = append(fields, Field{Name: zeroWidthSpace, Value: zeroWidthSpace, Inline: group.IsInline})
		case len(group.roles) > 0:
			fields = append(fields, Field{Name: group.Name, Value: group.Render(), Inline: group.IsInline})
		}
	}
	return fields
}

func (e *Event) renderFooter() string {
	if e.showsAttendance() {
		return fmt.Sprintf("Attendees: %d\n\nEvent ID: %d", len(e.attendees), e.ID)
	}
	return fmt.Sprintf("Event ID: %d", e.ID)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/matrixchannel"
	"github.com/bureau-foundation/muster/lib/operation"
)

// highlight writes source to w, syntax-highlighted when w is a
// terminal.
func highlight(w io.Writer, source, language string) error {
	if cli.IsTerminal(w) {
		if err := quick.Highlight(w, source, language, "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err := io.WriteString(w, source)
	return err
}

type listStyles struct {
	id        lipgloss.Style
	date      lipgloss.Style
	title     lipgloss.Style
	counts    lipgloss.Style
	cancelled lipgloss.Style
	unbound   lipgloss.Style
}

func newListStyles(w io.Writer) listStyles {
	renderer := lipgloss.NewRenderer(w)
	return listStyles{
		id:        renderer.NewStyle().Bold(true).Width(5).Align(lipgloss.Right),
		date:      renderer.NewStyle().Foreground(lipgloss.Color("6")),
		title:     renderer.NewStyle().Bold(true),
		counts:    renderer.NewStyle().Faint(true),
		cancelled: renderer.NewStyle().Strikethrough(true).Faint(true),
		unbound:   renderer.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func writeList(w io.Writer, summaries []eventdb.Summary, location *time.Location) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	styles := newListStyles(w)
	for _, summary := range summaries {
		title := styles.title.Render(summary.Title)
		if summary.Cancelled {
			title = styles.cancelled.Render(summary.Title)
		}
		counts := fmt.Sprintf("%d/%d signed up", summary.Signups, summary.Roles)
		if summary.Attendees > 0 {
			counts += fmt.Sprintf(", %d attending", summary.Attendees)
		}
		line := strings.Join([]string{
			styles.id.Render(fmt.Sprint(summary.ID)),
			styles.date.Render(summary.Date.In(location).Format("Mon 2006-01-02 15:04")),
			title,
			styles.counts.Render("(" + counts + ")"),
		}, "  ")
		if summary.MessageID == 0 {
			line += "  " + styles.unbound.Render("[no message]")
		}
		fmt.Fprintln(w, line)
	}
}

// writeBody renders an event message for the terminal, accented with
// the event color.
func writeBody(w io.Writer, body *operation.Body, now time.Time, location *time.Location) {
	renderer := lipgloss.NewRenderer(w)
	accent := lipgloss.Color(fmt.Sprintf("#%06x", body.Color&0xFFFFFF))
	frame := renderer.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(accent).
		PaddingLeft(1)
	heading := renderer.NewStyle().Bold(true).Foreground(accent)
	fieldName := renderer.NewStyle().Bold(true).Underline(true)
	footer := renderer.NewStyle().Faint(true)

	var sections []string
	sections = append(sections, heading.Render(matrixchannel.ExpandTimestamps(body.Title, now, location)))
	if body.Description != "" {
		sections = append(sections, matrixchannel.ExpandTimestamps(body.Description, now, location))
	}
	for _, field := range body.Fields {
		if strings.TrimSpace(strings.ReplaceAll(field.Name, "\u200b", "")) == "" {
			continue
		}
		sections = append(sections, fieldName.Render(field.Name)+"\n"+field.Value)
	}
	sections = append(sections, footer.Render(body.Footer))
	fmt.Fprintln(w, frame.Render(strings.Join(sections, "\n\n")))
}

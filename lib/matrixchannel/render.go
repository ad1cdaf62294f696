// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchannel

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/messaging"
)

const zeroWidthSpace = "\u200b"

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		)
	})
	return markdownInstance
}

// timestampPattern matches the placeholders written by
// operation.TimestampPlaceholder.
var timestampPattern = regexp.MustCompile(`<t:(-?\d+):([FR])>`)

// ExpandTimestamps replaces timestamp placeholders with text: style F
// with the absolute date in location, style R relative to now.
func ExpandTimestamps(source string, now time.Time, location *time.Location) string {
	return timestampPattern.ReplaceAllStringFunc(source, func(match string) string {
		parts := timestampPattern.FindStringSubmatch(match)
		unix, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return match
		}
		at := time.Unix(unix, 0).In(location)
		if parts[2] == "F" {
			return at.Format("Monday, 2 January 2006 15:04 MST")
		}
		return relative(at.Sub(now))
	})
}

func relative(delta time.Duration) string {
	future := delta >= 0
	if !future {
		delta = -delta
	}
	var amount string
	switch {
	case delta < time.Minute:
		return "now"
	case delta < time.Hour:
		amount = plural(int(delta/time.Minute), "minute")
	case delta < 48*time.Hour:
		amount = plural(int(delta/time.Hour), "hour")
	case delta < 60*24*time.Hour:
		amount = plural(int(delta/(24*time.Hour)), "day")
	default:
		amount = plural(int(delta/(30*24*time.Hour)), "month")
	}
	if future {
		return "in " + amount
	}
	return amount + " ago"
}

func plural(count int, unit string) string {
	if count == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", count, unit)
}

// markdownSource lays the body out as Markdown below the title.
func markdownSource(body *operation.Body) string {
	var builder strings.Builder
	if body.Description != "" {
		builder.WriteString(body.Description)
		builder.WriteString("\n\n")
	}
	for _, field := range body.Fields {
		if field.Name == zeroWidthSpace {
			builder.WriteString("---\n\n")
			continue
		}
		fmt.Fprintf(&builder, "**%s**\n%s\n\n", field.Name, field.Value)
	}
	if body.Footer != "" {
		for _, line := range strings.Split(body.Footer, "\n") {
			if line != "" {
				fmt.Fprintf(&builder, "*%s*\n", line)
			}
		}
	}
	return strings.TrimRight(builder.String(), "\n")
}

// renderBody converts a body to message content: Markdown text as the
// plain body and its HTML rendering, headed by the colored title, as
// the formatted body.
func renderBody(body *operation.Body, now time.Time, location *time.Location) (messaging.MessageContent, error) {
	source := ExpandTimestamps(markdownSource(body), now, location)
	title := ExpandTimestamps(body.Title, now, location)

	var rendered bytes.Buffer
	if err := markdown().Convert([]byte(source), &rendered); err != nil {
		return messaging.MessageContent{}, fmt.Errorf("matrixchannel: rendering markdown: %w", err)
	}
	formatted := fmt.Sprintf(`<h3><font color="#%06x">%s</font></h3>`, body.Color&0xFFFFFF, html.EscapeString(title)) +
		rendered.String()

	plain := "### " + title
	if source != "" {
		plain += "\n\n" + source
	}
	return messaging.NewHTMLMessage(plain, formatted), nil
}

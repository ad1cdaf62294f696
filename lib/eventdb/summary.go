// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventdb

import (
	"time"

	"github.com/bureau-foundation/muster/lib/operation"
)

// Summary is a read-only digest of one event, safe to hand to other
// goroutines.
type Summary struct {
	ID          int                   `json:"id"`
	Title       string                `json:"title"`
	Date        time.Time             `json:"date"`
	Terrain     string                `json:"terrain"`
	PlatoonSize operation.PlatoonSize `json:"platoon_size"`
	MessageID   int64                 `json:"message_id,omitempty"`
	Cancelled   bool                  `json:"cancelled,omitempty"`
	Roles       int                   `json:"roles"`
	Signups     int                   `json:"signups"`
	Attendees   int                   `json:"attendees"`
}

// Summarize digests one event.
func Summarize(event *operation.Event) Summary {
	return Summary{
		ID:          event.ID,
		Title:       event.Title(),
		Date:        event.Date,
		Terrain:     event.Terrain,
		PlatoonSize: event.PlatoonSize,
		MessageID:   event.MessageID,
		Cancelled:   event.Cancelled,
		Roles:       len(event.Roles()),
		Signups:     event.SignupCount(),
		Attendees:   len(event.Attendees()),
	}
}

// Summaries digests a collection in collection order.
func (d *Database) Summaries(archived bool) []Summary {
	events := d.collection(archived).list()
	summaries := make([]Summary, len(events))
	for index, event := range events {
		summaries[index] = Summarize(event)
	}
	return summaries
}

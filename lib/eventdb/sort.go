// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventdb

import (
	"slices"

	"github.com/bureau-foundation/muster/lib/operation"
)

// Sort orders the active events by descending date, ties kept in
// collection order, and hands the message slots out again so that
// messages read top to bottom in the new order: the first event with a
// message gets the lowest message handle, and so on. Events without a
// message take no slot. Every event whose handle changed has its
// EmbedHash cleared and is returned, so the caller can project it.
func (d *Database) Sort() []*operation.Event {
	events := d.active.list()

	var slots []int64
	for _, event := range events {
		if event.MessageID != 0 {
			slots = append(slots, event.MessageID)
		}
	}
	slices.Sort(slots)

	slices.SortStableFunc(events, func(a, b *operation.Event) int {
		return b.Date.Compare(a.Date)
	})
	d.active.reorder(events)

	var changed []*operation.Event
	next := 0
	for _, event := range events {
		if event.MessageID == 0 {
			continue
		}
		slot := slots[next]
		next++
		if event.MessageID != slot {
			event.MessageID = slot
			event.EmbedHash = ""
			changed = append(changed, event)
		}
	}
	if len(changed) > 0 {
		d.logger.Info("events sorted", "reassigned", len(changed))
	}
	return changed
}

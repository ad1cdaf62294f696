// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventdb

import "github.com/bureau-foundation/muster/lib/operation"

// collection is an insertion-ordered map of events by ID.
type collection struct {
	order  []int
	events map[int]*operation.Event
}

func (c *collection) insert(event *operation.Event) {
	if c.events == nil {
		c.events = make(map[int]*operation.Event)
	}
	if _, exists := c.events[event.ID]; !exists {
		c.order = append(c.order, event.ID)
	}
	c.events[event.ID] = event
}

func (c *collection) get(id int) *operation.Event {
	return c.events[id]
}

func (c *collection) remove(id int) *operation.Event {
	event, ok := c.events[id]
	if !ok {
		return nil
	}
	delete(c.events, id)
	for index, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:index], c.order[index+1:]...)
			break
		}
	}
	return event
}

func (c *collection) list() []*operation.Event {
	events := make([]*operation.Event, len(c.order))
	for index, id := range c.order {
		events[index] = c.events[id]
	}
	return events
}

func (c *collection) len() int { return len(c.order) }

func (c *collection) reset() {
	c.order = nil
	c.events = nil
}

// reorder replaces the order with events, which must be a permutation
// of the current contents.
func (c *collection) reorder(events []*operation.Event) {
	c.order = c.order[:0]
	for _, event := range events {
		c.order = append(c.order, event.ID)
	}
}

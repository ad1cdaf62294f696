// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"log/slog"

	"github.com/bureau-foundation/muster/lib/operator"
	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/messaging"
)

// MessageHandles resolves Matrix event IDs to message handles.
type MessageHandles interface {
	MessageHandle(eventID ref.EventID) (int64, bool)
}

// Inputs extracts operator input from timeline events.
type Inputs struct {
	Self        ref.UserID
	EventsRoom  ref.RoomID
	CommandRoom ref.RoomID
	Handles     MessageHandles
	Logger      *slog.Logger
}

// Extract returns the commands and reactions in response, in timeline
// order, command room first. The bot's own events, edits, notices,
// and reactions on messages that are not event messages are skipped.
func (x *Inputs) Extract(response *messaging.SyncResponse) []operator.Input {
	var inputs []operator.Input
	if room, ok := response.Rooms.Join[x.CommandRoom]; ok {
		for _, event := range room.Timeline.Events {
			if command, ok := x.command(event); ok {
				inputs = append(inputs, command)
			}
		}
	}
	if room, ok := response.Rooms.Join[x.EventsRoom]; ok {
		for _, event := range room.Timeline.Events {
			if reaction, ok := x.reaction(event); ok {
				inputs = append(inputs, reaction)
			}
		}
	}
	return inputs
}

func (x *Inputs) skip(event messaging.Event) bool {
	return event.Sender == x.Self || event.IsRedacted()
}

func (x *Inputs) command(event messaging.Event) (operator.Command, bool) {
	if event.Type != ref.EventTypeMessage || x.skip(event) {
		return operator.Command{}, false
	}
	var content messaging.MessageContent
	if err := event.DecodeContent(&content); err != nil {
		x.logger().Warn("undecodable message", "event_id", event.EventID, "error", err)
		return operator.Command{}, false
	}
	if content.MsgType != "m.text" {
		return operator.Command{}, false
	}
	if content.RelatesTo != nil && content.RelatesTo.RelType == messaging.RelTypeReplace {
		return operator.Command{}, false
	}
	return operator.Command{Sender: event.Sender.String(), Body: content.Body}, true
}

func (x *Inputs) reaction(event messaging.Event) (operator.Reaction, bool) {
	if event.Type != ref.EventTypeReaction || x.skip(event) {
		return operator.Reaction{}, false
	}
	var content messaging.ReactionContent
	if err := event.DecodeContent(&content); err != nil {
		x.logger().Warn("undecodable reaction", "event_id", event.EventID, "error", err)
		return operator.Reaction{}, false
	}
	if content.RelatesTo.RelType != messaging.RelTypeAnnotation || content.RelatesTo.Key == "" {
		return operator.Reaction{}, false
	}
	handle, ok := x.Handles.MessageHandle(content.RelatesTo.EventID)
	if !ok {
		return operator.Reaction{}, false
	}
	return operator.Reaction{
		Sender:     event.Sender.String(),
		Message:    handle,
		Key:        content.RelatesTo.Key,
		ReactionID: event.EventID.String(),
	}, true
}

func (x *Inputs) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.Default()
	}
	return x.Logger
}

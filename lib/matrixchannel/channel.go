// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrixchannel implements projector.Channel on a Matrix room.
//
// Event messages are m.room.message events in the events room, edited
// in place with m.replace. The bot's reactions are m.reaction
// annotations and are removed by redaction. Events refer to messages
// and users by small integers; the [HandleTable] maps those to Matrix
// event and user IDs and persists the mapping as CBOR.
//
// Matrix puts no limit on reactions. The channel enforces
// operation.MaxReactions distinct keys per message itself, counting
// every sender's annotations, so a message stays usable in clients
// that cap reaction rows.
package matrixchannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/lib/projector"
	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/messaging"
)

// API is the part of *messaging.Session the channel uses.
type API interface {
	UserID() ref.UserID
	SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
	EditMessage(ctx context.Context, roomID ref.RoomID, target ref.EventID, content messaging.MessageContent) (ref.EventID, error)
	SendReaction(ctx context.Context, roomID ref.RoomID, target ref.EventID, key string) (ref.EventID, error)
	Redact(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error)
	GetEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) (*messaging.Event, error)
	AllRelations(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, relType string, eventType ref.EventType) ([]messaging.Event, error)
}

// Config holds the parameters for New.
type Config struct {
	API     API
	RoomID  ref.RoomID
	Handles *HandleTable

	// Location renders absolute timestamps. Defaults to UTC.
	Location *time.Location

	// Clock anchors relative timestamps. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Channel is a projector.Channel bound to one room. It is used from
// the single worker goroutine and is not safe for concurrent use.
type Channel struct {
	api      API
	roomID   ref.RoomID
	handles  *HandleTable
	location *time.Location
	clock    clock.Clock
	logger   *slog.Logger

	// known holds each message's annotations as last read by Reactions
	// and updated by the channel's own sends and redactions since.
	known map[ref.EventID][]annotation
}

var _ projector.Channel = (*Channel)(nil)

// New creates a Channel.
func New(config Config) (*Channel, error) {
	if config.API == nil {
		return nil, fmt.Errorf("matrixchannel: API is required")
	}
	if config.RoomID.IsZero() {
		return nil, fmt.Errorf("matrixchannel: RoomID is required")
	}
	if config.Handles == nil {
		return nil, fmt.Errorf("matrixchannel: Handles is required")
	}
	channel := &Channel{
		api:      config.API,
		roomID:   config.RoomID,
		handles:  config.Handles,
		location: config.Location,
		clock:    config.Clock,
		logger:   config.Logger,
		known:    make(map[ref.EventID][]annotation),
	}
	if channel.location == nil {
		channel.location = time.UTC
	}
	if channel.clock == nil {
		channel.clock = clock.Real()
	}
	if channel.logger == nil {
		channel.logger = slog.Default()
	}
	return channel, nil
}

// RoomID returns the events room.
func (c *Channel) RoomID() ref.RoomID { return c.roomID }

// Handles returns the handle table.
func (c *Channel) Handles() *HandleTable { return c.handles }

func (c *Channel) resolve(messageID int64) (ref.EventID, error) {
	eventID, ok := c.handles.Message(messageID)
	if !ok {
		return ref.EventID{}, fmt.Errorf("message handle %d: %w", messageID, projector.ErrMessageNotFound)
	}
	return eventID, nil
}

func (c *Channel) FetchMessage(ctx context.Context, messageID int64) error {
	eventID, err := c.resolve(messageID)
	if err != nil {
		return err
	}
	event, err := c.api.GetEvent(ctx, c.roomID, eventID)
	if messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
		return fmt.Errorf("message %s: %w", eventID, projector.ErrMessageNotFound)
	}
	if err != nil {
		return err
	}
	if event.IsRedacted() {
		return fmt.Errorf("message %s was redacted: %w", eventID, projector.ErrMessageNotFound)
	}
	return nil
}

func (c *Channel) SendMessage(ctx context.Context, body *operation.Body) (int64, error) {
	content, err := renderBody(body, c.clock.Now(), c.location)
	if err != nil {
		return 0, err
	}
	eventID, err := c.api.SendMessage(ctx, c.roomID, content)
	if err != nil {
		return 0, err
	}
	return c.handles.BindMessage(eventID)
}

func (c *Channel) EditMessage(ctx context.Context, messageID int64, body *operation.Body) error {
	eventID, err := c.resolve(messageID)
	if err != nil {
		return err
	}
	content, err := renderBody(body, c.clock.Now(), c.location)
	if err != nil {
		return err
	}
	_, err = c.api.EditMessage(ctx, c.roomID, eventID, content)
	return err
}

func (c *Channel) DeleteMessage(ctx context.Context, messageID int64) error {
	eventID, err := c.resolve(messageID)
	if err != nil {
		return err
	}
	_, err = c.api.Redact(ctx, c.roomID, eventID, "event deleted")
	if err != nil && !messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
		return err
	}
	delete(c.known, eventID)
	return c.handles.ForgetMessage(messageID)
}

// annotation is one m.reaction on a message.
type annotation struct {
	eventID ref.EventID
	sender  ref.UserID
	key     string
}

func (c *Channel) annotations(ctx context.Context, target ref.EventID) ([]annotation, error) {
	events, err := c.api.AllRelations(ctx, c.roomID, target, messaging.RelTypeAnnotation, ref.EventTypeReaction)
	if err != nil {
		return nil, err
	}
	annotations := make([]annotation, 0, len(events))
	for _, event := range events {
		if event.IsRedacted() {
			continue
		}
		var content messaging.ReactionContent
		if err := event.DecodeContent(&content); err != nil || content.RelatesTo.Key == "" {
			continue
		}
		annotations = append(annotations, annotation{
			eventID: event.EventID,
			sender:  event.Sender,
			key:     content.RelatesTo.Key,
		})
	}
	return annotations, nil
}

// cachedAnnotations returns the annotations Reactions last read for
// target, fetching them when there are none.
func (c *Channel) cachedAnnotations(ctx context.Context, target ref.EventID) ([]annotation, error) {
	if annotations, ok := c.known[target]; ok {
		return annotations, nil
	}
	annotations, err := c.annotations(ctx, target)
	if err != nil {
		return nil, err
	}
	c.known[target] = annotations
	return annotations, nil
}

func (c *Channel) own(annotations []annotation) []annotation {
	self := c.api.UserID()
	var own []annotation
	for _, candidate := range annotations {
		if candidate.sender == self {
			own = append(own, candidate)
		}
	}
	return own
}

// Reactions reads the message's annotations from the homeserver and
// remembers them, so the AddReaction, RemoveReaction and
// ClearReactions calls that follow during one reconciliation do not
// fetch them again.
func (c *Channel) Reactions(ctx context.Context, messageID int64) ([]string, error) {
	eventID, err := c.resolve(messageID)
	if err != nil {
		return nil, err
	}
	annotations, err := c.annotations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	c.known[eventID] = annotations
	var keys []string
	seen := make(map[string]bool)
	for _, own := range c.own(annotations) {
		if !seen[own.key] {
			seen[own.key] = true
			keys = append(keys, own.key)
		}
	}
	return keys, nil
}

func (c *Channel) AddReaction(ctx context.Context, messageID int64, key string) error {
	eventID, err := c.resolve(messageID)
	if err != nil {
		return err
	}
	annotations, err := c.cachedAnnotations(ctx, eventID)
	if err != nil {
		return err
	}
	distinct := make(map[string]bool)
	for _, existing := range annotations {
		distinct[existing.key] = true
	}
	if !distinct[key] && len(distinct) >= operation.MaxReactions {
		return fmt.Errorf("message %s has %d distinct reactions: %w", eventID, len(distinct), projector.ErrTooManyReactions)
	}
	for _, own := range c.own(annotations) {
		if own.key == key {
			return nil
		}
	}
	reactionID, err := c.api.SendReaction(ctx, c.roomID, eventID, key)
	if err != nil {
		return err
	}
	c.known[eventID] = append(annotations, annotation{eventID: reactionID, sender: c.api.UserID(), key: key})
	return nil
}

func (c *Channel) redactOwn(ctx context.Context, messageID int64, match func(string) bool) error {
	eventID, err := c.resolve(messageID)
	if err != nil {
		return err
	}
	annotations, err := c.cachedAnnotations(ctx, eventID)
	if err != nil {
		return err
	}
	self := c.api.UserID()
	remaining := make([]annotation, 0, len(annotations))
	var errs []error
	for _, candidate := range annotations {
		if candidate.sender != self || !match(candidate.key) {
			remaining = append(remaining, candidate)
			continue
		}
		if _, err := c.api.Redact(ctx, c.roomID, candidate.eventID, ""); err != nil && !messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
			errs = append(errs, err)
			remaining = append(remaining, candidate)
		}
	}
	c.known[eventID] = remaining
	return errors.Join(errs...)
}

func (c *Channel) RemoveReaction(ctx context.Context, messageID int64, key string) error {
	return c.redactOwn(ctx, messageID, func(candidate string) bool { return candidate == key })
}

func (c *Channel) ClearReactions(ctx context.Context, messageID int64) error {
	return c.redactOwn(ctx, messageID, func(string) bool { return true })
}

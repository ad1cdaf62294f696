// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package projector keeps the chat message of an event in step with
// the event.
//
// The [Projector] is the only code that touches an event's message. A
// projection ensures the message exists, edits its body when the
// rendering fingerprint changed, and then reconciles the reactions
// with the event's reaction set. Bodies are always edited before
// reactions; in a [Projector.Batch] every body is edited before any
// reaction is touched.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/muster/lib/metrics"
	"github.com/bureau-foundation/muster/lib/operation"
)

var (
	// ErrMessageNotFound is returned by a Channel for a message handle
	// that no longer resolves to a message.
	ErrMessageNotFound = errors.New("message not found")

	// ErrTooManyReactions is returned by a Channel when the message
	// cannot take another reaction.
	ErrTooManyReactions = errors.New("too many reactions")

	// ErrUpdateFailed reports a body edit that did not reach the
	// transport. The event's fingerprint has been cleared so the next
	// projection retries the edit.
	ErrUpdateFailed = errors.New("message update failed")
)

// Channel is the transport surface for one events room. Message
// handles are the integers stored in Event.MessageID; reactions are
// icon keys.
type Channel interface {
	// FetchMessage confirms that a message exists. Returns
	// ErrMessageNotFound when it does not.
	FetchMessage(ctx context.Context, messageID int64) error

	SendMessage(ctx context.Context, body *operation.Body) (int64, error)
	EditMessage(ctx context.Context, messageID int64, body *operation.Body) error
	DeleteMessage(ctx context.Context, messageID int64) error

	// Reactions returns the keys this bot has reacted with, in the
	// order they were added.
	Reactions(ctx context.Context, messageID int64) ([]string, error)

	// AddReaction returns ErrTooManyReactions when the message is at
	// its reaction limit.
	AddReaction(ctx context.Context, messageID int64, key string) error
	RemoveReaction(ctx context.Context, messageID int64, key string) error
	ClearReactions(ctx context.Context, messageID int64) error
}

// Persister saves the active event collection after the projector
// changes an event's message binding or fingerprint.
type Persister interface {
	Save(archived bool) error
}

// Config holds the parameters for New.
type Config struct {
	Channel   Channel
	Persister Persister

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Projector reconciles events with their messages.
type Projector struct {
	channel   Channel
	persister Persister
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Projector.
func New(config Config) (*Projector, error) {
	if config.Channel == nil {
		return nil, fmt.Errorf("projector: Channel is required")
	}
	if config.Persister == nil {
		return nil, fmt.Errorf("projector: Persister is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{
		channel:   config.Channel,
		persister: config.Persister,
		metrics:   config.Metrics,
		logger:    logger,
	}, nil
}

func placeholderBody(event *operation.Event) *operation.Body {
	return &operation.Body{
		Title:  event.Title(),
		Footer: fmt.Sprintf("Event ID: %d", event.ID),
	}
}

// EnsureMessage returns the handle of the event's message, sending a
// placeholder and binding it when the event has no live message.
func (p *Projector) EnsureMessage(ctx context.Context, event *operation.Event) (int64, error) {
	if event.MessageID != 0 {
		err := p.channel.FetchMessage(ctx, event.MessageID)
		if err == nil {
			return event.MessageID, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return 0, fmt.Errorf("projector: fetching message for event %d: %w", event.ID, err)
		}
		p.logger.Warn("event message is gone, sending a new one",
			"event_id", event.ID,
			"message_id", event.MessageID,
		)
	}

	messageID, err := p.channel.SendMessage(ctx, placeholderBody(event))
	if err != nil {
		return 0, fmt.Errorf("projector: sending message for event %d: %w", event.ID, err)
	}
	event.MessageID = messageID
	event.EmbedHash = ""
	p.metrics.MessageSent()
	if err := p.persister.Save(false); err != nil {
		return messageID, fmt.Errorf("projector: saving message binding for event %d: %w", event.ID, err)
	}
	p.logger.Info("event message bound", "event_id", event.ID, "message_id", messageID)
	return messageID, nil
}

// UpdateBody edits the message when the event's rendering changed
// since the last successful edit.
func (p *Projector) UpdateBody(ctx context.Context, event *operation.Event, messageID int64) error {
	body := event.BuildBody(true)
	if body == nil {
		p.metrics.EditSkipped()
		return nil
	}
	if err := p.channel.EditMessage(ctx, messageID, body); err != nil {
		event.EmbedHash = ""
		p.metrics.EditFailed()
		saveErr := p.persister.Save(false)
		p.logger.Error("event message edit failed",
			"event_id", event.ID,
			"message_id", messageID,
			"error", err,
		)
		return errors.Join(
			fmt.Errorf("projector: editing message for event %d: %v: %w", event.ID, err, ErrUpdateFailed),
			saveErr,
		)
	}
	p.metrics.Edited()
	return nil
}

func keys(event *operation.Event) []string {
	reactions := event.Reactions()
	intended := make([]string, len(reactions))
	for index, reaction := range reactions {
		intended[index] = reaction.Key
	}
	return intended
}

func sameSequence(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for index := range a {
		if a[index] != b[index] {
			return false
		}
	}
	return true
}

func setOf(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func sameContent(a, b []string) bool {
	setA, setB := setOf(a), setOf(b)
	if len(setA) != len(setB) {
		return false
	}
	for item := range setA {
		if _, ok := setB[item]; !ok {
			return false
		}
	}
	return true
}

// ReconcileReactions brings the message's reactions in line with the
// event. With reorder, the reactions must also appear in the event's
// order, which means clearing and adding them all again.
func (p *Projector) ReconcileReactions(ctx context.Context, event *operation.Event, messageID int64, reorder bool) error {
	intended := keys(event)
	current, err := p.channel.Reactions(ctx, messageID)
	if err != nil {
		return fmt.Errorf("projector: reading reactions for event %d: %w", event.ID, err)
	}

	if reorder {
		if sameSequence(intended, current) {
			return nil
		}
		if err := p.channel.ClearReactions(ctx, messageID); err != nil {
			return fmt.Errorf("projector: clearing reactions for event %d: %w", event.ID, err)
		}
		p.metrics.ReactionsCleared()
		return p.addReactions(ctx, event, messageID, intended)
	}

	if sameContent(intended, current) {
		return nil
	}
	wanted := setOf(intended)
	for _, key := range current {
		if _, ok := wanted[key]; ok {
			continue
		}
		if err := p.channel.RemoveReaction(ctx, messageID, key); err != nil {
			return fmt.Errorf("projector: removing reaction %s for event %d: %w", key, event.ID, err)
		}
		p.metrics.ReactionRemoved()
	}
	present := setOf(current)
	var missing []string
	for _, key := range intended {
		if _, ok := present[key]; !ok {
			missing = append(missing, key)
		}
	}
	return p.addReactions(ctx, event, messageID, missing)
}

func (p *Projector) addReactions(ctx context.Context, event *operation.Event, messageID int64, keys []string) error {
	for _, key := range keys {
		err := p.channel.AddReaction(ctx, messageID, key)
		if errors.Is(err, ErrTooManyReactions) {
			return fmt.Errorf("event %d: message cannot take reaction %s: %w", event.ID, key, operation.ErrRole)
		}
		if err != nil {
			return fmt.Errorf("projector: adding reaction %s for event %d: %w", key, event.ID, err)
		}
		p.metrics.ReactionAdded()
	}
	return nil
}

// Project ensures the message, edits the body, and reconciles the
// reactions, in that order.
func (p *Projector) Project(ctx context.Context, event *operation.Event, reorder bool) error {
	messageID, err := p.EnsureMessage(ctx, event)
	if err != nil {
		return err
	}
	if err := p.UpdateBody(ctx, event, messageID); err != nil {
		return err
	}
	return p.ReconcileReactions(ctx, event, messageID, reorder)
}

// Batch projects several events, editing every body before touching
// any reactions. An event whose message or body fails is skipped in the
// reaction pass; the remaining events are still projected. All
// failures are returned joined.
func (p *Projector) Batch(ctx context.Context, events []*operation.Event, reorder bool) error {
	var errs []error
	messages := make(map[*operation.Event]int64, len(events))
	for _, event := range events {
		messageID, err := p.EnsureMessage(ctx, event)
		if err == nil {
			err = p.UpdateBody(ctx, event, messageID)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		messages[event] = messageID
	}
	for _, event := range events {
		messageID, ok := messages[event]
		if !ok {
			continue
		}
		if err := p.ReconcileReactions(ctx, event, messageID, reorder); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes the event's message, if it has one, and unbinds it.
func (p *Projector) Delete(ctx context.Context, event *operation.Event) error {
	if event.MessageID == 0 {
		return nil
	}
	err := p.channel.DeleteMessage(ctx, event.MessageID)
	if err != nil && !errors.Is(err, ErrMessageNotFound) {
		return fmt.Errorf("projector: deleting message for event %d: %w", event.ID, err)
	}
	p.logger.Info("event message deleted", "event_id", event.ID, "message_id", event.MessageID)
	event.MessageID = 0
	event.EmbedHash = ""
	return nil
}

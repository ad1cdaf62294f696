// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchannel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/lib/operator"
	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/messaging"
)

// RoomAPI is the part of *messaging.Session the command room uses.
type RoomAPI interface {
	UserID() ref.UserID
	SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
	Redact(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error)
	GetDisplayName(ctx context.Context, userID ref.UserID) (string, error)
}

// RoomConfig holds the parameters for NewRoom.
type RoomConfig struct {
	API RoomAPI

	// CommandRoom receives replies.
	CommandRoom ref.RoomID

	// EventsRoom holds the event messages users react to.
	EventsRoom ref.RoomID

	Handles *HandleTable

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Room is the operator's view of Matrix: replies in the command room,
// member lookup, and reaction retraction in the events room.
type Room struct {
	api         RoomAPI
	commandRoom ref.RoomID
	eventsRoom  ref.RoomID
	handles     *HandleTable
	logger      *slog.Logger
}

var _ operator.Chat = (*Room)(nil)

// NewRoom creates a Room.
func NewRoom(config RoomConfig) (*Room, error) {
	if config.API == nil {
		return nil, fmt.Errorf("matrixchannel: API is required")
	}
	if config.CommandRoom.IsZero() || config.EventsRoom.IsZero() {
		return nil, fmt.Errorf("matrixchannel: CommandRoom and EventsRoom are required")
	}
	if config.Handles == nil {
		return nil, fmt.Errorf("matrixchannel: Handles is required")
	}
	room := &Room{
		api:         config.API,
		commandRoom: config.CommandRoom,
		eventsRoom:  config.EventsRoom,
		handles:     config.Handles,
		logger:      config.Logger,
	}
	if room.logger == nil {
		room.logger = slog.Default()
	}
	return room, nil
}

// Reply posts text to the command room, rendering its Markdown as the
// formatted body.
func (r *Room) Reply(ctx context.Context, text string) error {
	var rendered bytes.Buffer
	if err := markdown().Convert([]byte(text), &rendered); err != nil {
		return fmt.Errorf("matrixchannel: rendering reply: %w", err)
	}
	if _, err := r.api.SendMessage(ctx, r.commandRoom, messaging.NewHTMLMessage(text, rendered.String())); err != nil {
		return fmt.Errorf("matrixchannel: sending reply: %w", err)
	}
	return nil
}

// ResolveMember accepts a full user ID, a matrix.to link, or a bare
// "@localpart" on the bot's own server. The member ID is the user's
// handle; the name is the profile display name, or the localpart when
// none is set.
func (r *Room) ResolveMember(ctx context.Context, user string) (operation.Member, error) {
	userID, err := r.parseUser(user)
	if err != nil {
		return operation.Member{}, err
	}
	handle, err := r.handles.UserHandle(userID)
	if err != nil {
		return operation.Member{}, fmt.Errorf("matrixchannel: allocating handle for %s: %w", userID, err)
	}
	name, err := r.api.GetDisplayName(ctx, userID)
	if err != nil {
		r.logger.Warn("display name lookup failed", "user_id", userID, "error", err)
		name = ""
	}
	if strings.TrimSpace(name) == "" {
		name = userID.Localpart()
	}
	return operation.Member{ID: handle, Name: name}, nil
}

func (r *Room) parseUser(user string) (ref.UserID, error) {
	raw := strings.TrimSpace(user)
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
	raw = strings.TrimPrefix(raw, "https://matrix.to/#/")
	if strings.HasPrefix(raw, "@") && !strings.Contains(raw, ":") {
		raw += ":" + r.api.UserID().Server()
	}
	return ref.ParseUserID(raw)
}

// RetractReaction redacts a reaction in the events room.
func (r *Room) RetractReaction(ctx context.Context, reactionID string) error {
	eventID, err := ref.ParseEventID(reactionID)
	if err != nil {
		return fmt.Errorf("matrixchannel: %w", err)
	}
	if _, err := r.api.Redact(ctx, r.eventsRoom, eventID, "handled"); err != nil {
		return fmt.Errorf("matrixchannel: retracting reaction %s: %w", eventID, err)
	}
	return nil
}

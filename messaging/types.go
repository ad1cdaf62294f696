// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/bureau-foundation/muster/lib/ref"
)

// Relation types.
const (
	RelTypeReplace    = "m.replace"
	RelTypeAnnotation = "m.annotation"
)

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType       string `json:"msgtype"`
	Body          string `json:"body"`
	Format        string `json:"format,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`

	RelatesTo *RelatesTo `json:"m.relates_to,omitempty"`

	// NewContent carries the replacement content of an m.replace edit.
	NewContent *MessageContent `json:"m.new_content,omitempty"`
}

// NewTextMessage creates a plain m.text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: "m.text", Body: body}
}

// NewHTMLMessage creates an m.text message with an HTML rendering.
func NewHTMLMessage(body, html string) MessageContent {
	return MessageContent{
		MsgType:       "m.text",
		Body:          body,
		Format:        "org.matrix.custom.html",
		FormattedBody: html,
	}
}

// NewReply creates a plain m.text message replying to eventID.
func NewReply(eventID ref.EventID, body string) MessageContent {
	content := NewTextMessage(body)
	content.RelatesTo = &RelatesTo{InReplyTo: &InReplyTo{EventID: eventID}}
	return content
}

// RelatesTo is the m.relates_to block of an event.
type RelatesTo struct {
	RelType   string      `json:"rel_type,omitempty"`
	EventID   ref.EventID `json:"event_id,omitzero"`
	Key       string      `json:"key,omitempty"`
	InReplyTo *InReplyTo  `json:"m.in_reply_to,omitempty"`
}

// InReplyTo names the event a message replies to.
type InReplyTo struct {
	EventID ref.EventID `json:"event_id"`
}

// ReactionContent is the content of an m.reaction event.
type ReactionContent struct {
	RelatesTo RelatesTo `json:"m.relates_to"`
}

// RedactRequest is the body of a redaction.
type RedactRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Event is a room event as returned by sync, /event and /relations.
// Content is kept raw; use DecodeContent for the typed form.
type Event struct {
	EventID        ref.EventID     `json:"event_id"`
	Type           ref.EventType   `json:"type"`
	Sender         ref.UserID      `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	Redacts        ref.EventID     `json:"redacts,omitzero"`
	StateKey       *string         `json:"state_key,omitempty"`
	Unsigned       *EventUnsigned  `json:"unsigned,omitempty"`
}

// EventUnsigned is server-added metadata.
type EventUnsigned struct {
	Age           int64  `json:"age,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`

	// RedactedBecause is set on events that were redacted.
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
}

// DecodeContent unmarshals the event content into v.
func (e Event) DecodeContent(v any) error {
	if len(e.Content) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(e.Content, v)
}

// IsRedacted reports whether the server returned the event in redacted
// form.
func (e Event) IsRedacted() bool {
	return e.Unsigned != nil && len(e.Unsigned.RedactedBecause) > 0
}

// SyncOptions controls one /sync request.
type SyncOptions struct {
	// Since is the previous response's NextBatch; empty for the
	// initial sync.
	Since string

	// TimeoutMS is the long-poll timeout. Zero returns immediately.
	TimeoutMS int

	// Filter is a filter ID or inline JSON filter.
	Filter string
}

// SyncResponse is the subset of /sync the bot reads.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups rooms by membership.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
}

// JoinedRoom is the per-room part of a sync response.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// InvitedRoom carries the stripped state of a pending invite.
type InvitedRoom struct {
	InviteState struct {
		Events []Event `json:"events"`
	} `json:"invite_state"`
}

// TimelineSection is a slice of a room's timeline.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch,omitempty"`
	Limited   bool    `json:"limited,omitempty"`
}

// RelationsResponse is one page of /relations.
type RelationsResponse struct {
	Chunk     []Event `json:"chunk"`
	NextBatch string  `json:"next_batch,omitempty"`
}

// SendEventResponse is the body returned by send and redact.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is the body of /account/whoami.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// JoinResponse is the body of /join.
type JoinResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// DisplayNameResponse is the body of the profile displayname endpoint.
type DisplayNameResponse struct {
	DisplayName string `json:"displayname"`
}

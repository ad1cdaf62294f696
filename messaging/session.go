// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/lib/secret"
)

const (
	clientV3 = "/_matrix/client/v3"
	clientV1 = "/_matrix/client/v1"
)

// Session is an authenticated Matrix session. It is safe for
// concurrent use; Close releases the access token.
type Session struct {
	client      *Client
	userID      ref.UserID
	accessToken *secret.Buffer
}

// UserID returns the session's user.
func (s *Session) UserID() ref.UserID { return s.userID }

// Close zeroes and releases the access token.
func (s *Session) Close() error {
	if s.accessToken == nil {
		return nil
	}
	return s.accessToken.Close()
}

func (s *Session) get(ctx context.Context, path string, query url.Values, response any) error {
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("messaging: parsing response from %s: %w", path, err)
	}
	return nil
}

func (s *Session) put(ctx context.Context, path string, request, response any) error {
	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, request, nil)
	if err != nil {
		return err
	}
	if response == nil {
		return nil
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("messaging: parsing response from %s: %w", path, err)
	}
	return nil
}

// WhoAmI returns the user the access token belongs to.
func (s *Session) WhoAmI(ctx context.Context) (ref.UserID, error) {
	var response WhoAmIResponse
	if err := s.get(ctx, clientV3+"/account/whoami", nil, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami: %w", err)
	}
	return response.UserID, nil
}

// JoinRoom joins a room by ID and returns the joined room's ID.
func (s *Session) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	body, err := s.client.doRequest(ctx, http.MethodPost, pathOf(clientV3+"/join", roomID.String()), s.accessToken, struct{}{}, nil)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: joining %s: %w", roomID, err)
	}
	var response JoinResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: parsing join response: %w", err)
	}
	return response.RoomID, nil
}

// SendEvent sends a timeline event with a fresh transaction ID.
func (s *Session) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	path := pathOf(clientV3+"/rooms", roomID.String(), "send", eventType.String(), uuid.NewString())
	var response SendEventResponse
	if err := s.put(ctx, path, content, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: sending %s to %s: %w", eventType, roomID, err)
	}
	return response.EventID, nil
}

// SendMessage sends an m.room.message.
func (s *Session) SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, ref.EventTypeMessage, content)
}

// EditMessage replaces the content of a message the session sent. The
// outer body carries a "* " fallback for clients without edit support.
func (s *Session) EditMessage(ctx context.Context, roomID ref.RoomID, target ref.EventID, content MessageContent) (ref.EventID, error) {
	replacement := content
	replacement.RelatesTo = nil
	replacement.NewContent = nil

	edit := content
	edit.Body = "* " + content.Body
	if content.FormattedBody != "" {
		edit.FormattedBody = "* " + content.FormattedBody
	}
	edit.NewContent = &replacement
	edit.RelatesTo = &RelatesTo{RelType: RelTypeReplace, EventID: target}
	return s.SendEvent(ctx, roomID, ref.EventTypeMessage, edit)
}

// SendReaction annotates target with key.
func (s *Session) SendReaction(ctx context.Context, roomID ref.RoomID, target ref.EventID, key string) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, ref.EventTypeReaction, ReactionContent{
		RelatesTo: RelatesTo{RelType: RelTypeAnnotation, EventID: target, Key: key},
	})
}

// Redact removes an event's content.
func (s *Session) Redact(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error) {
	path := pathOf(clientV3+"/rooms", roomID.String(), "redact", eventID.String(), uuid.NewString())
	var response SendEventResponse
	if err := s.put(ctx, path, RedactRequest{Reason: reason}, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: redacting %s in %s: %w", eventID, roomID, err)
	}
	return response.EventID, nil
}

// GetEvent fetches one event. A missing event is an M_NOT_FOUND
// *MatrixError.
func (s *Session) GetEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) (*Event, error) {
	var event Event
	if err := s.get(ctx, pathOf(clientV3+"/rooms", roomID.String(), "event", eventID.String()), nil, &event); err != nil {
		return nil, fmt.Errorf("messaging: fetching %s in %s: %w", eventID, roomID, err)
	}
	return &event, nil
}

// Relations returns one page of events relating to eventID with the
// given relation and event type. from is the previous page's
// NextBatch, empty for the first page.
func (s *Session) Relations(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, relType string, eventType ref.EventType, from string) (*RelationsResponse, error) {
	path := pathOf(clientV1+"/rooms", roomID.String(), "relations", eventID.String(), relType, eventType.String())
	query := url.Values{}
	query.Set("dir", "f")
	if from != "" {
		query.Set("from", from)
	}
	var response RelationsResponse
	if err := s.get(ctx, path, query, &response); err != nil {
		return nil, fmt.Errorf("messaging: relations of %s in %s: %w", eventID, roomID, err)
	}
	return &response, nil
}

// AllRelations follows Relations pagination to the end.
func (s *Session) AllRelations(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, relType string, eventType ref.EventType) ([]Event, error) {
	var events []Event
	from := ""
	for {
		page, err := s.Relations(ctx, roomID, eventID, relType, eventType, from)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Chunk...)
		if page.NextBatch == "" || page.NextBatch == from {
			return events, nil
		}
		from = page.NextBatch
	}
}

// GetDisplayName returns a user's profile display name, empty when
// unset.
func (s *Session) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	var response DisplayNameResponse
	if err := s.get(ctx, pathOf(clientV3+"/profile", userID.String(), "displayname"), nil, &response); err != nil {
		if IsMatrixError(err, ErrCodeNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("messaging: display name of %s: %w", userID, err)
	}
	return response.DisplayName, nil
}

// Sync performs one /sync request.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	query.Set("timeout", strconv.Itoa(options.TimeoutMS))
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	var response SyncResponse
	if err := s.get(ctx, clientV3+"/sync", query, &response); err != nil {
		return nil, fmt.Errorf("messaging: sync: %w", err)
	}
	return &response, nil
}

// CloseIdleConnections forwards to the Client.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

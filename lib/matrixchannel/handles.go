// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchannel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/bureau-foundation/muster/lib/atomicfile"
	"github.com/bureau-foundation/muster/lib/codec"
	"github.com/bureau-foundation/muster/lib/ref"
)

// handleState is the persisted form of a HandleTable.
type handleState struct {
	NextMessage int64                 `cbor:"next_message"`
	Messages    map[int64]ref.EventID `cbor:"messages"`
	NextUser    int64                 `cbor:"next_user"`
	Users       map[int64]ref.UserID  `cbor:"users"`
}

// HandleTable maps the integer handles stored in events to Matrix
// identifiers. Handles start at 1 and are never reused, so 0 stays free
// to mean "no message". The table is saved after every allocation.
type HandleTable struct {
	mu    sync.Mutex
	path  string
	state handleState

	messagesByEvent map[ref.EventID]int64
	usersByID       map[ref.UserID]int64
}

// OpenHandleTable loads the table at path; a missing file is an empty
// table.
func OpenHandleTable(path string) (*HandleTable, error) {
	table := &HandleTable{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("matrixchannel: reading handle table: %w", err)
	default:
		if err := codec.Unmarshal(data, &table.state); err != nil {
			return nil, fmt.Errorf("matrixchannel: decoding handle table %s: %w", path, err)
		}
	}
	if table.state.Messages == nil {
		table.state.Messages = make(map[int64]ref.EventID)
	}
	if table.state.Users == nil {
		table.state.Users = make(map[int64]ref.UserID)
	}
	table.messagesByEvent = make(map[ref.EventID]int64, len(table.state.Messages))
	for handle, eventID := range table.state.Messages {
		table.messagesByEvent[eventID] = handle
		table.state.NextMessage = max(table.state.NextMessage, handle)
	}
	table.usersByID = make(map[ref.UserID]int64, len(table.state.Users))
	for handle, userID := range table.state.Users {
		table.usersByID[userID] = handle
		table.state.NextUser = max(table.state.NextUser, handle)
	}
	return table, nil
}

func (t *HandleTable) saveLocked() error {
	data, err := codec.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("matrixchannel: encoding handle table: %w", err)
	}
	if err := atomicfile.Write(t.path, data, 0o600); err != nil {
		return fmt.Errorf("matrixchannel: saving handle table: %w", err)
	}
	return nil
}

// BindMessage allocates a handle for a sent message.
func (t *HandleTable) BindMessage(eventID ref.EventID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if handle, ok := t.messagesByEvent[eventID]; ok {
		return handle, nil
	}
	t.state.NextMessage++
	handle := t.state.NextMessage
	t.state.Messages[handle] = eventID
	t.messagesByEvent[eventID] = handle
	return handle, t.saveLocked()
}

// ForgetMessage drops a handle whose message was deleted.
func (t *HandleTable) ForgetMessage(handle int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	eventID, ok := t.state.Messages[handle]
	if !ok {
		return nil
	}
	delete(t.state.Messages, handle)
	delete(t.messagesByEvent, eventID)
	return t.saveLocked()
}

// Message resolves a message handle.
func (t *HandleTable) Message(handle int64) (ref.EventID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	eventID, ok := t.state.Messages[handle]
	return eventID, ok
}

// MessageHandle resolves a Matrix event ID to its handle.
func (t *HandleTable) MessageHandle(eventID ref.EventID) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	handle, ok := t.messagesByEvent[eventID]
	return handle, ok
}

// UserHandle returns the handle for a user, allocating one on first
// sight.
func (t *HandleTable) UserHandle(userID ref.UserID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if handle, ok := t.usersByID[userID]; ok {
		return handle, nil
	}
	t.state.NextUser++
	handle := t.state.NextUser
	t.state.Users[handle] = userID
	t.usersByID[userID] = handle
	return handle, t.saveLocked()
}

// User resolves a user handle.
func (t *HandleTable) User(handle int64) (ref.UserID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	userID, ok := t.state.Users[handle]
	return userID, ok
}

// Dump returns the table's file contents in CBOR diagnostic notation.
func (t *HandleTable) Dump() (string, error) {
	t.mu.Lock()
	data, err := codec.Marshal(t.state)
	t.mu.Unlock()
	if err != nil {
		return "", err
	}
	return codec.Diagnose(data)
}

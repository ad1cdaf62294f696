// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ObjectMember is one key of an ObjectMembers value.
type ObjectMember struct {
	Key   string
	Value json.RawMessage
}

// ObjectMembers is a JSON object that keeps its members in document
// order through decoding and encoding. Groups, roles, attendees, and
// database events all depend on order, which Go maps do not keep.
type ObjectMembers []ObjectMember

// Set appends key with value encoded as JSON.
func (o *ObjectMembers) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	*o = append(*o, ObjectMember{Key: key, Value: encoded})
	return nil
}

// Get returns the value of key.
func (o ObjectMembers) Get(key string) (json.RawMessage, bool) {
	for _, member := range o {
		if member.Key == key {
			return member.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the members in order.
func (o ObjectMembers) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for index, member := range o {
		if index > 0 {
			buffer.WriteByte(',')
		}
		key, err := json.Marshal(member.Key)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		if len(member.Value) == 0 {
			buffer.WriteString("null")
		} else {
			buffer.Write(member.Value)
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping member order. Duplicate keys
// are rejected.
func (o *ObjectMembers) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delimiter, ok := token.(json.Delim); !ok || delimiter != '{' {
		return fmt.Errorf("expected a JSON object, got %v", token)
	}
	members := ObjectMembers{}
	seen := make(map[string]bool)
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("expected an object key, got %v", token)
		}
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		members = append(members, ObjectMember{Key: key, Value: value})
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}
	*o = members
	return nil
}

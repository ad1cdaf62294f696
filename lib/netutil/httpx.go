// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads.
//
// Every JSON response from the homeserver goes through ReadResponse so
// that a broken or hostile server cannot make the bot allocate without
// limit.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// MaxResponseSize bounds a JSON API response body. Initial sync
// responses for busy rooms are the largest the bot reads.
const MaxResponseSize int64 = 64 << 20

// ErrResponseTooLarge reports a body that exceeded MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// ReadResponse reads a response body, failing rather than truncating
// when it exceeds MaxResponseSize.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, MaxResponseSize)
	}
	return data, nil
}

// ErrorBody reads what it can of an error response for a diagnostic
// message. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return string(data)
}

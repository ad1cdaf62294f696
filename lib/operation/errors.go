// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operation

import "errors"

var (
	// ErrNotFound reports a failed role or group lookup.
	ErrNotFound = errors.New("not found")

	// ErrRoleTaken reports a signup into an assigned role without
	// replace.
	ErrRoleTaken = errors.New("role already taken")

	// ErrRole reports that a role cannot be added, renamed, or
	// reacted to: a name collision, a full Additional group, or the
	// reaction limit.
	ErrRole = errors.New("role error")

	// ErrUnsupportedResize reports a platoon size transition that has
	// no defined algorithm.
	ErrUnsupportedResize = errors.New("unsupported platoon resize")

	// ErrMalformedData reports a JSON or YAML payload that does not
	// match the event schema.
	ErrMalformedData = errors.New("malformed event data")
)

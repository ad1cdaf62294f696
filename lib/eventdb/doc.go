// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventdb is the registry of active and archived events.
//
// A [Database] owns two ordered collections, allocates event IDs from
// a counter that never goes backwards, and persists each collection to
// its own JSON file:
//
//	{"version": 4, "nextID": N, "events": {"<id>": {...}, ...}}
//
// Event order in a file is collection order, so a file that is loaded
// and saved again is byte-identical. Saves replace the file atomically.
// A file that fails to parse is renamed to a timestamped backup and
// replaced by an empty collection; a file with another version is an
// error and nothing is loaded.
//
// The Database is a single long-lived value created by [Open] and
// released by [Database.Close], which performs the final save. It is
// not safe for concurrent use.
package eventdb

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the subset of the Matrix client-server API the
// event bot uses.
//
// [Client] holds the homeserver URL and HTTP transport. A [Session]
// adds an access token, kept in a [secret.Buffer], and carries every
// authenticated call: sending messages, replacing them with m.replace
// edits, annotating them with m.reaction events, redacting, reading a
// single event and its annotation relations, resolving display names,
// and long-poll sync.
//
// Sends use the idempotent PUT form with a random transaction ID, so a
// request retried after a network failure cannot post twice. Rate
// limited requests (M_LIMIT_EXCEEDED) are retried after the
// server-provided delay a bounded number of times before the
// [*MatrixError] reaches the caller.
//
// Request URLs are built by concatenating escaped path segments onto
// the base URL rather than through url.URL, which re-encodes paths
// containing already-escaped characters.
package messaging

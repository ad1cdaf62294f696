// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds the daemon scaffolding muster serve composes
// in its main function: the Matrix /sync long-poll loop with backoff,
// the sync filter for the bot's rooms, and the translation of timeline
// events into operator input.
//
// The caller performs [InitialSync] and discards its timeline, so
// commands posted while the bot was down are not replayed. The
// incremental loop then hands every response to a [SyncHandler] until
// the context is cancelled.
package service

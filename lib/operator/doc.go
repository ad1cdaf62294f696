// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package operator turns chat input into roster changes.
//
// Two kinds of input arrive from the transport: [Command] messages
// from operators ("!setdate 12 2025-06-14") and [Reaction]s on event
// messages, which toggle the reacting user's signup for the role bound
// to that icon. [Operator.Deliver] accepts input from the transport's
// goroutine; [Operator.Run] handles it on a single worker goroutine, so
// events and the database are only ever touched from one place.
//
// Two gates guard the command surface. While a command is queued or
// running ("processing") or a command waits for its operator's answer
// ("awaiting reply"), further commands are refused with a short reply.
// Reactions are never refused; they queue behind the running command.
//
// Arguments are converted by a fixed set of functions that fail with a
// [ConversionError] naming what could not be parsed. A failed
// conversion or validation is replied to the operator and changes
// nothing.
package operator

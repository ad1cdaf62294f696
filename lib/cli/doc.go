// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework shared by the muster binary and
// the chat command surface.
//
// A [Command] tree is assembled once and dispatched with
// [Command.Execute], which routes the first positional argument to a
// subcommand, parses pflag flags, and prints structured help. Unknown
// subcommands and flags get a Levenshtein suggestion (distance <= 3).
//
// Output does not go to fixed file descriptors. [WithOutput] attaches
// writers to the context, so the same tree can answer on a terminal or
// into a chat reply buffer.
package cli

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Muster runs the event signup bot and inspects its files.
//
// "muster serve" connects to the homeserver, keeps one message per
// event in the events room in sync with the event collections, takes
// operator commands from the command room, and turns reactions on
// event messages into signups. The other commands work on the files
// directly and must not be used to modify them while the bot runs:
//
//	muster event list [--archived] [--json]
//	muster event show <id> [--archived] [--json]
//	muster event dump <id> [--archived]
//	muster event load <id> <file.yaml>
//	muster export <file> [--recipient age1...]
//	muster import <file> [--identity keyfile] [--force]
//	muster version
//
// Every command takes --config; without it the MUSTER_CONFIG variable
// must name the configuration file.
package main

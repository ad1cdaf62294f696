// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package operation models a scheduled community game event and the
// signup structure rendered into its chat message.
//
// An [Event] owns an ordered list of [RoleGroup] values, and each group
// owns its [Role] values. Nothing points back up the tree: the message
// projector and the database receive the event itself. One group per
// event, named "Additional", is bound to the icon pool. Its roles take
// pool icons by position and are re-bound whenever a role is removed,
// so the icons always form a prefix of the pool.
//
// Everything visible in the chat message derives from event state:
// the title and accent color ([Event.Title], [Event.Color]), the body
// ([Event.BuildBody]), and the reaction set ([Event.Reactions]).
// BuildBody fingerprints the body with keyed BLAKE3 and caches the
// fingerprint in [Event.EmbedHash], so an unchanged event never costs
// a message edit.
//
// Default group layouts per platoon size come from [Templates],
// parsed from a commented JSON document (an embedded default, or an
// operator-supplied file).
//
// Types in this package are not safe for concurrent use. The bot
// mutates events from a single worker goroutine.
package operation

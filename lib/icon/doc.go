// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package icon defines the reaction tokens roles are bound to.
//
// An [Icon] pairs a display name with the key the chat transport
// receives when the bot or a user reacts. Two icon sources exist:
//
//   - The fixed pool of twenty icons (keycap digits one through ten,
//     then regional indicator letters A through J). Roles in an
//     event's Additional group draw from the pool by index.
//   - A [Catalog] of named icons, configured per deployment, for
//     template roles such as "ASL" or "ZEUS".
//
// Icons compare by key. The name is for lookup and persistence only.
package icon

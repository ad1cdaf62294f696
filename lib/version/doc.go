// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what muster binary is running.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X. When they are not, [Info] falls back to the VCS stamp
// the Go toolchain embeds in module builds. [SelfDigest] fingerprints
// the running executable so two deployments can be compared without
// trusting their version strings.
package version

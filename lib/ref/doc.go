// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for the Matrix entities the bridge bot works with: rooms, users,
// events, and media content URIs.
//
// Every identifier arriving from the homeserver is parsed into a
// validated value type at the boundary (JSON unmarshaling uses the
// types' TextUnmarshaler implementations). Code past the boundary never
// handles raw identifier strings, so a room ID can never be confused
// with a user ID or an access token at compile time.
//
// The zero value of every type is invalid; use IsZero to check.
package ref

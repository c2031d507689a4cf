// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix state or timeline event type
// (e.g., "m.room.message", "m.room.member", "m.room.encrypted").
//
// EventType is a named string type, not a struct wrapper: event types
// are opaque identifiers that need no parsing or validation. The type
// exists purely for compile-time safety, preventing accidental use of
// an event type where some other string is expected.
type EventType string

// String returns the event type string (e.g., "m.room.message").
func (t EventType) String() string { return string(t) }

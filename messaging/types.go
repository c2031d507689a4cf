// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/askrelay/askrelay/lib/ref"
)

// LoginRequest is the body for POST /_matrix/client/v3/login with
// password authentication.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
	HomeServer  string     `json:"home_server,omitempty"`
}

// WhoAmIResponse is returned by GET /_matrix/client/v3/account/whoami.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// Event is a single Matrix event from a sync response or room
// timeline. Content is kept as raw JSON; callers decode it once into
// the typed content struct matching the event type.
type Event struct {
	EventID        ref.EventID     `json:"event_id"`
	Type           ref.EventType   `json:"type"`
	Sender         ref.UserID      `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	StateKey       *string         `json:"state_key,omitempty"`
	// RoomID is populated by the sync handler from the enclosing
	// rooms section; individual events in sync responses omit it.
	RoomID ref.RoomID `json:"room_id,omitempty"`
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType  string        `json:"msgtype"`
	Body     string        `json:"body"`
	URL      string        `json:"url,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Info     *FileInfo     `json:"info,omitempty"`
	File     *EncryptedRef `json:"file,omitempty"`
}

// FileInfo describes an attachment in an m.file message.
type FileInfo struct {
	MimeType string `json:"mimetype,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// EncryptedRef is present instead of URL when a file was sent in an
// encrypted room. The bot cannot decrypt these.
type EncryptedRef struct {
	URL string `json:"url,omitempty"`
}

// MemberContent is the content of an m.room.member state event.
type MemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
}

// Message type constants for m.room.message events.
const (
	MsgTypeText   = "m.text"
	MsgTypeNotice = "m.notice"
	MsgTypeFile   = "m.file"
	MsgTypeImage  = "m.image"
)

// Event type constants.
const (
	EventTypeMessage   ref.EventType = "m.room.message"
	EventTypeMember    ref.EventType = "m.room.member"
	EventTypeEncrypted ref.EventType = "m.room.encrypted"
)

// Membership state constants for m.room.member events.
const (
	MembershipInvite = "invite"
	MembershipJoin   = "join"
	MembershipLeave  = "leave"
)

// SyncResponse is the top-level response from GET /_matrix/client/v3/sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups rooms by the caller's membership state.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains updates for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom contains the stripped state of a room the user has been
// invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom contains updates for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection holds the recent events in a room.
type TimelineSection struct {
	Events    []Event `json:"events"`
	Limited   bool    `json:"limited,omitempty"`
	PrevBatch string  `json:"prev_batch,omitempty"`
}

// StateSection holds state events for a room.
type StateSection struct {
	Events []Event `json:"events"`
}

// SendResponse is returned by a successful event send.
type SendResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// JoinResponse is returned by a successful room join.
type JoinResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// Device describes a device belonging to the current user, as returned
// by GET /_matrix/client/v3/devices.
type Device struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name,omitempty"`
	LastSeenTS  int64  `json:"last_seen_ts,omitempty"`
}

// DevicesResponse is returned by GET /_matrix/client/v3/devices.
type DevicesResponse struct {
	Devices []Device `json:"devices"`
}

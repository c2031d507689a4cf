// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"encoding/json"
	"log/slog"

	"github.com/askrelay/askrelay/lib/ref"
	"github.com/askrelay/askrelay/messaging"
)

// InboundEvent is a server-delivered occurrence, decoded once at the
// transport boundary into one of a closed set of variants. The router
// switches exhaustively over these.
type InboundEvent interface {
	inboundEvent()
}

// RoomInvite is an invitation for the bot to join a room.
type RoomInvite struct {
	Room   ref.RoomID
	Sender ref.UserID
}

// TextMessage is a plain text message from a room participant.
type TextMessage struct {
	Room      ref.RoomID
	Sender    ref.UserID
	Body      string
	Timestamp int64
}

// FileMessage is a file upload from a room participant.
type FileMessage struct {
	Room         ref.RoomID
	Sender       ref.UserID
	FileName string
	// DeclaredMime is the sender-declared type from the event's file
	// metadata. Advisory only; classification re-checks it.
	DeclaredMime string
	DeclaredSize int64
	MediaURI     ref.MXCURI
	// EncryptedFile is set when the file was sent with an encrypted
	// payload reference instead of a plain mxc URL.
	EncryptedFile bool
	Timestamp     int64
}

// EncryptedEnvelope is an event the bot cannot decrypt.
type EncryptedEnvelope struct {
	Room      ref.RoomID
	Sender    ref.UserID
	Timestamp int64
}

func (RoomInvite) inboundEvent()        {}
func (TextMessage) inboundEvent()       {}
func (FileMessage) inboundEvent()       {}
func (EncryptedEnvelope) inboundEvent() {}

// decodeSync flattens a sync response into inbound events. Events from
// the bot itself are dropped here; staleness is the router's concern
// since it depends on process start time.
func decodeSync(response *messaging.SyncResponse, self ref.UserID, logger *slog.Logger) []InboundEvent {
	var events []InboundEvent

	for roomID, invited := range response.Rooms.Invite {
		if invite, ok := decodeInvite(roomID, invited, self); ok {
			events = append(events, invite)
		}
	}

	for roomID, joined := range response.Rooms.Join {
		for _, event := range joined.Timeline.Events {
			if event.Sender == self {
				continue
			}
			decoded, ok := decodeTimelineEvent(roomID, event, logger)
			if !ok {
				continue
			}
			events = append(events, decoded)
		}
	}

	return events
}

// decodeInvite extracts an invite addressed to the bot from a room's
// stripped state. Invites for other users (shared stripped state)
// are ignored.
func decodeInvite(roomID ref.RoomID, invited messaging.InvitedRoom, self ref.UserID) (RoomInvite, bool) {
	for _, event := range invited.InviteState.Events {
		if event.Type != messaging.EventTypeMember {
			continue
		}
		if event.StateKey == nil || *event.StateKey != self.String() {
			continue
		}
		var content messaging.MemberContent
		if err := json.Unmarshal(event.Content, &content); err != nil {
			continue
		}
		if content.Membership != messaging.MembershipInvite {
			continue
		}
		return RoomInvite{Room: roomID, Sender: event.Sender}, true
	}
	return RoomInvite{}, false
}

func decodeTimelineEvent(roomID ref.RoomID, event messaging.Event, logger *slog.Logger) (InboundEvent, bool) {
	switch event.Type {
	case messaging.EventTypeMessage:
		var content messaging.MessageContent
		if err := json.Unmarshal(event.Content, &content); err != nil {
			logger.Warn("dropping undecodable message event",
				"room_id", roomID,
				"event_id", event.EventID,
				"error", err,
			)
			return nil, false
		}
		return decodeMessage(roomID, event, content)

	case messaging.EventTypeEncrypted:
		return EncryptedEnvelope{
			Room:      roomID,
			Sender:    event.Sender,
			Timestamp: event.OriginServerTS,
		}, true

	default:
		// State changes, receipts, reactions and other event types
		// carry nothing the bot acts on.
		return nil, false
	}
}

func decodeMessage(roomID ref.RoomID, event messaging.Event, content messaging.MessageContent) (InboundEvent, bool) {
	switch content.MsgType {
	case messaging.MsgTypeText:
		return TextMessage{
			Room:      roomID,
			Sender:    event.Sender,
			Body:      content.Body,
			Timestamp: event.OriginServerTS,
		}, true

	case messaging.MsgTypeFile, messaging.MsgTypeImage:
		file := FileMessage{
			Room:      roomID,
			Sender:    event.Sender,
			FileName:  content.Body,
			Timestamp: event.OriginServerTS,
		}
		if content.Filename != "" {
			file.FileName = content.Filename
		}
		if content.Info != nil {
			file.DeclaredMime = content.Info.MimeType
			file.DeclaredSize = content.Info.Size
		}
		switch {
		case content.URL != "":
			if uri, err := ref.ParseMXCURI(content.URL); err == nil {
				file.MediaURI = uri
			}
		case content.File != nil:
			file.EncryptedFile = true
		}
		return file, true

	default:
		// m.notice and friends: the bot's own acknowledgments come
		// back as notices from other bridged bots too, so stay quiet.
		return nil, false
	}
}

// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askrelay/askrelay/gateway"
	"github.com/askrelay/askrelay/lib/ref"
	"github.com/askrelay/askrelay/messaging"
)

// dispatch routes one inbound event to its handler. Nothing in here
// is allowed to return an error to the sync loop: every failure path
// ends in a logged condition or a best-effort reply.
func (b *Bot) dispatch(ctx context.Context, event InboundEvent) {
	switch typed := event.(type) {
	case RoomInvite:
		b.handleInvite(ctx, typed)

	case TextMessage:
		if b.isStale(typed.Timestamp) {
			return
		}
		if strings.HasPrefix(typed.Body, commandPrefix) {
			b.handleCommand(ctx, typed)
			return
		}
		b.handleQuestion(ctx, typed)

	case FileMessage:
		if b.isStale(typed.Timestamp) {
			return
		}
		b.handleFile(ctx, typed)

	case EncryptedEnvelope:
		if b.isStale(typed.Timestamp) {
			return
		}
		b.handleEncrypted(ctx, typed)
	}
}

// isStale reports whether an event predates process start. A zero
// timestamp means the server omitted it; such events are processed
// rather than guessed at.
func (b *Bot) isStale(timestamp int64) bool {
	return timestamp != 0 && timestamp < b.startTS
}

func (b *Bot) handleInvite(ctx context.Context, invite RoomInvite) {
	if err := b.session.JoinRoom(ctx, invite.Room); err != nil {
		b.logger.Error("failed to join room from invite",
			"room_id", invite.Room,
			"inviter", invite.Sender,
			"error", err,
		)
		return
	}

	sessionID := b.sessions.GetOrCreate(invite.Room)
	b.logger.Info("joined room from invite",
		"room_id", invite.Room,
		"inviter", invite.Sender,
		"session_id", sessionID,
	)
}

// handleQuestion forwards a plain text message to the downstream
// service, consuming the sender's pending attachment if one exists.
func (b *Bot) handleQuestion(ctx context.Context, message TextMessage) {
	sessionID := b.sessions.GetOrCreate(message.Room)

	var attachment *gateway.Attachment
	if pending, ok := b.cache.TakeIfPresent(message.Room, message.Sender); ok {
		attachment = &pending
		b.logger.Info("consuming pending attachment",
			"room_id", message.Room,
			"sender", message.Sender,
			"file_name", pending.Name,
		)
	}

	answer := b.gateway.Ask(ctx, message.Body, sessionID, attachment)
	b.replyText(ctx, message.Room, answer)
}

func (b *Bot) handleFile(ctx context.Context, file FileMessage) {
	if file.EncryptedFile {
		b.replyNotice(ctx, file.Room,
			"That file was sent encrypted and cannot be read. Please resend it in an unencrypted room.")
		return
	}

	mimeType, fileName, ok := gateway.ResolveMIME(file.FileName, file.DeclaredMime, "")
	if !ok {
		b.replyNotice(ctx, file.Room, fmt.Sprintf(
			"Unsupported file format %q. Supported: %s.",
			file.FileName, strings.Join(gateway.SupportedExtensions(), " ")))
		return
	}

	if file.DeclaredSize > b.maxAttachmentBytes {
		b.replyNotice(ctx, file.Room, fmt.Sprintf(
			"File %q is too large (%d bytes, limit %d).",
			fileName, file.DeclaredSize, b.maxAttachmentBytes))
		return
	}
	if file.MediaURI.IsZero() {
		b.replyNotice(ctx, file.Room, fmt.Sprintf(
			"File %q carries no downloadable content reference.", fileName))
		return
	}

	data, err := b.session.DownloadMedia(ctx, file.MediaURI, b.maxAttachmentBytes)
	if err != nil {
		if errors.Is(err, messaging.ErrContentTooLarge) {
			b.replyNotice(ctx, file.Room, fmt.Sprintf(
				"File %q exceeds the %d byte limit.", fileName, b.maxAttachmentBytes))
			return
		}
		b.logger.Error("attachment download failed",
			"room_id", file.Room,
			"media_uri", file.MediaURI,
			"error", err,
		)
		b.replyNotice(ctx, file.Room, fmt.Sprintf(
			"Could not download %q. Please try uploading it again.", fileName))
		return
	}

	b.cache.Put(file.Room, file.Sender, gateway.Attachment{
		Name:     fileName,
		MimeType: mimeType,
		Data:     data,
	})
	b.replyNotice(ctx, file.Room, fmt.Sprintf(
		"Received %q (%d bytes). It will be attached to your next question, or use %srag to index it.",
		fileName, len(data), commandPrefix))
}

func (b *Bot) handleEncrypted(ctx context.Context, envelope EncryptedEnvelope) {
	b.logger.Warn("received undecryptable event",
		"room_id", envelope.Room,
		"sender", envelope.Sender,
	)
	b.replyNotice(ctx, envelope.Room,
		"This message was encrypted and could not be read. Encryption is not supported; please resend in an unencrypted room.")
}

// replyText sends answer content as a regular text message.
func (b *Bot) replyText(ctx context.Context, roomID ref.RoomID, body string) {
	_ = b.sender.Send(ctx, roomID, messaging.MessageContent{
		MsgType: messaging.MsgTypeText,
		Body:    body,
	})
}

// replyNotice sends status text as m.notice so other bots in the room
// do not treat it as conversational input.
func (b *Bot) replyNotice(ctx context.Context, roomID ref.RoomID, body string) {
	_ = b.sender.Send(ctx, roomID, messaging.MessageContent{
		MsgType: messaging.MsgTypeNotice,
		Body:    body,
	})
}

// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/askrelay/askrelay/gateway"
)

const commandPrefix = "!"

const usageText = `Askrelay bridges this room to a document-aware answering service.

Send a plain message to ask a question. Upload a file first and it
will be attached to your next question.

Commands:
  !help      show this text
  !reset     start a fresh conversation thread
  !session   show the current conversation thread id
  !status    show bot account, sessions and cache counters
  !rag [chunkSize=N] [chunkOverlap=M]
             index your pending upload into the knowledge base`

// handleCommand dispatches a message starting with the command
// prefix. The command is the first whitespace-separated token,
// matched exactly and case-sensitively.
func (b *Bot) handleCommand(ctx context.Context, message TextMessage) {
	fields := strings.Fields(message.Body)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "!help", "!start":
		b.replyNotice(ctx, message.Room, usageText)

	case "!reset":
		sessionID := b.sessions.Reset(message.Room)
		b.cache.PurgeRoom(message.Room)
		b.replyNotice(ctx, message.Room,
			"Conversation reset. New session: "+sessionID)

	case "!session":
		sessionID := b.sessions.GetOrCreate(message.Room)
		b.replyNotice(ctx, message.Room, "Session: "+sessionID)

	case "!status":
		b.replyNotice(ctx, message.Room, fmt.Sprintf(
			"Account: %s\nActive sessions: %d\nCached attachments: %d\nDownstream: %s\nStarted: %s",
			b.session.UserID(),
			b.sessions.Count(),
			b.cache.Count(),
			b.gateway.AskURL(),
			b.startTime.Format(time.RFC3339),
		))

	case "!rag":
		b.handleIngestCommand(ctx, message, fields[1:])

	default:
		b.replyNotice(ctx, message.Room,
			"Unknown command "+fields[0]+". Try !help.")
	}
}

// handleIngestCommand uploads the sender's pending attachment to the
// vector store. The attachment is only consumed on success; a failed
// ingest leaves it pending so the sender can retry.
func (b *Bot) handleIngestCommand(ctx context.Context, message TextMessage, args []string) {
	options, err := parseIngestArgs(args)
	if err != nil {
		b.replyNotice(ctx, message.Room, err.Error())
		return
	}

	attachment, ok := b.cache.TakeIfPresent(message.Room, message.Sender)
	if !ok {
		b.replyNotice(ctx, message.Room,
			"No pending file to index. Upload a file first, then run !rag.")
		return
	}

	sessionID := b.sessions.GetOrCreate(message.Room)
	result, err := b.gateway.Ingest(ctx, attachment, sessionID, options)
	if err != nil {
		// Put the attachment back so the command can be retried.
		b.cache.Put(message.Room, message.Sender, attachment)
		b.logger.Error("ingest failed",
			"room_id", message.Room,
			"file_name", attachment.Name,
			"error", err,
		)
		b.replyNotice(ctx, message.Room,
			"Indexing failed: "+err.Error())
		return
	}

	b.replyNotice(ctx, message.Room, fmt.Sprintf(
		"Indexed %q: %d chunks added, %d updated.",
		attachment.Name, result.NumAdded, result.NumUpdated))
}

// parseIngestArgs parses optional key=value arguments for !rag. Any
// malformed argument rejects the whole command; a partial ingest with
// defaults silently substituted would be worse than an error.
func parseIngestArgs(args []string) (gateway.IngestOptions, error) {
	var options gateway.IngestOptions
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			return gateway.IngestOptions{}, fmt.Errorf(
				"malformed argument %q: expected key=value", arg)
		}
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return gateway.IngestOptions{}, fmt.Errorf(
				"invalid value %q for %s: expected a positive integer", value, key)
		}
		switch key {
		case "chunkSize":
			options.ChunkSize = parsed
		case "chunkOverlap":
			options.ChunkOverlap = parsed
		default:
			return gateway.IngestOptions{}, fmt.Errorf(
				"unknown argument %q: supported are chunkSize and chunkOverlap", key)
		}
	}
	return options, nil
}

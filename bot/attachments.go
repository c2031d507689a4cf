// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/askrelay/askrelay/gateway"
	"github.com/askrelay/askrelay/lib/clock"
	"github.com/askrelay/askrelay/lib/ref"
)

// attachmentKey scopes a pending attachment to one sender in one
// room, so concurrent uploaders in the same room do not collide.
type attachmentKey struct {
	room   ref.RoomID
	sender ref.UserID
}

type cachedAttachment struct {
	attachment gateway.Attachment
	storedAt   time.Time
}

// AttachmentCache holds files awaiting a follow-up question. At most
// one attachment per (room, sender); a new upload overwrites the old
// one. Entries that are never consumed expire after a TTL so the
// cache stays bounded.
type AttachmentCache struct {
	mu      sync.Mutex
	entries map[attachmentKey]cachedAttachment

	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// NewAttachmentCache creates a cache whose entries expire after ttl.
// A non-positive ttl disables expiry.
func NewAttachmentCache(clk clock.Clock, ttl time.Duration, logger *slog.Logger) *AttachmentCache {
	return &AttachmentCache{
		entries: make(map[attachmentKey]cachedAttachment),
		ttl:     ttl,
		clock:   clk,
		logger:  logger,
	}
}

// Put stores an attachment, overwriting any previous entry for the
// same (room, sender).
func (c *AttachmentCache) Put(room ref.RoomID, sender ref.UserID, attachment gateway.Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[attachmentKey{room: room, sender: sender}] = cachedAttachment{
		attachment: attachment,
		storedAt:   c.clock.Now(),
	}
}

// TakeIfPresent atomically removes and returns the pending attachment
// for (room, sender), if any.
func (c *AttachmentCache) TakeIfPresent(room ref.RoomID, sender ref.UserID) (gateway.Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := attachmentKey{room: room, sender: sender}
	entry, ok := c.entries[key]
	if !ok {
		return gateway.Attachment{}, false
	}
	delete(c.entries, key)
	return entry.attachment, true
}

// PurgeRoom removes every entry belonging to the room, regardless of
// sender.
func (c *AttachmentCache) PurgeRoom(room ref.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.room == room {
			delete(c.entries, key)
		}
	}
}

// Count returns the number of pending attachments.
func (c *AttachmentCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EvictExpired removes entries older than the TTL and returns how
// many were removed.
func (c *AttachmentCache) EvictExpired() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock.Now().Add(-c.ttl)
	evicted := 0
	for key, entry := range c.entries {
		if entry.storedAt.Before(cutoff) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// RunEviction periodically evicts expired entries until the context
// is cancelled. The sweep interval is a quarter of the TTL, so an
// entry overstays by at most 25%.
func (c *AttachmentCache) RunEviction(ctx context.Context) {
	if c.ttl <= 0 {
		return
	}

	ticker := c.clock.NewTicker(c.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := c.EvictExpired(); evicted > 0 {
				c.logger.Info("evicted expired attachments", "count", evicted)
			}
		}
	}
}

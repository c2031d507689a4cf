// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"time"

	"github.com/askrelay/askrelay/messaging"
)

const (
	// syncTimeout is the server-side long-poll duration.
	syncTimeout = 30 * time.Second
	// syncRequestMargin pads the client-side deadline past the
	// long-poll so a healthy response is never cut off locally.
	syncRequestMargin = 15 * time.Second

	syncBackoffInitial = time.Second
	syncBackoffMax     = 30 * time.Second

	// poisonedPoolThreshold is how many consecutive sync failures it
	// takes before pooled connections are discarded. Keep-alive
	// connections can outlive a NAT or proxy state table entry and
	// fail every request until dropped.
	poisonedPoolThreshold = 3
)

// syncFilter trims sync responses to what the router consumes:
// recent timeline events plus membership state for invite handling.
const syncFilter = `{"room":{"timeline":{"limit":50},"ephemeral":{"types":[]},"account_data":{"types":[]}},"presence":{"types":[]},"account_data":{"types":[]}}`

// initialSyncFilter additionally cuts the timeline to a single event
// per room. The backlog is never acted on; only the next_batch token
// and any pending invites matter at startup.
const initialSyncFilter = `{"room":{"timeline":{"limit":1},"ephemeral":{"types":[]},"account_data":{"types":[]}},"presence":{"types":[]},"account_data":{"types":[]}}`

// initialSync establishes the sync position and accepts invites that
// arrived while the bot was down. Timeline backlog in the response is
// suppressed by the staleness check during dispatch.
func (b *Bot) initialSync(ctx context.Context) (string, error) {
	requestCtx, cancel := context.WithTimeout(ctx, syncRequestMargin)
	defer cancel()

	response, err := b.session.Sync(requestCtx, messaging.SyncOptions{
		SetTimeout: true,
		Filter:     initialSyncFilter,
	})
	if err != nil {
		return "", err
	}

	b.logger.Info("initial sync complete",
		"joined_rooms", len(response.Rooms.Join),
		"pending_invites", len(response.Rooms.Invite),
	)
	b.processSyncResponse(ctx, response)
	return response.NextBatch, nil
}

// syncLoop long-polls the homeserver until the context is cancelled.
// Failures back off exponentially; repeated failures additionally
// drop pooled connections before the next attempt.
func (b *Bot) syncLoop(ctx context.Context, since string) {
	backoff := syncBackoffInitial
	consecutiveFailures := 0

	for ctx.Err() == nil {
		requestCtx, cancel := context.WithTimeout(ctx, syncTimeout+syncRequestMargin)
		response, err := b.session.Sync(requestCtx, messaging.SyncOptions{
			Since:   since,
			Timeout: syncTimeout,
			Filter:  syncFilter,
		})
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			b.logger.Warn("sync failed",
				"error", err,
				"consecutive_failures", consecutiveFailures,
				"retry_in", backoff,
			)
			if messaging.IsDeviceTrustError(err) {
				b.sender.remediateDeviceTrust(ctx)
			}
			if consecutiveFailures == poisonedPoolThreshold {
				b.logger.Info("dropping pooled connections after repeated sync failures")
				b.session.CloseIdleConnections()
			}
			select {
			case <-b.clock.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, syncBackoffMax)
			continue
		}

		consecutiveFailures = 0
		backoff = syncBackoffInitial
		since = response.NextBatch
		b.processSyncResponse(ctx, response)
	}
}

func (b *Bot) processSyncResponse(ctx context.Context, response *messaging.SyncResponse) {
	for _, event := range decodeSync(response, b.session.UserID(), b.logger) {
		b.dispatch(ctx, event)
	}
}

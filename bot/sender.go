// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/askrelay/askrelay/lib/clock"
	"github.com/askrelay/askrelay/lib/ref"
	"github.com/askrelay/askrelay/lib/retry"
	"github.com/askrelay/askrelay/messaging"
)

// sessionTransport is the slice of messaging.Session the sender
// needs. Narrowed for tests.
type sessionTransport interface {
	SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
	SendMessageLegacy(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
	Devices(ctx context.Context) ([]messaging.Device, error)
}

const (
	senderMaxAttempts  = 3
	senderTransientGap = time.Second
)

// Sender delivers outbound messages with bounded retries. The primary
// path is tried up to three times: device-trust failures trigger a
// best-effort remediation before the next attempt, transient failures
// wait a second, and any other failure aborts the retry loop. When
// the primary path is exhausted, a legacy direct-authenticated send
// is the last resort. A message that also fails the fallback is
// logged once and dropped.
type Sender struct {
	transport sessionTransport
	policy    retry.Policy
	clock     clock.Clock
	logger    *slog.Logger
}

// NewSender creates a Sender on top of an authenticated session.
func NewSender(transport sessionTransport, clk clock.Clock, logger *slog.Logger) *Sender {
	sender := &Sender{transport: transport, clock: clk, logger: logger}
	sender.policy = retry.Policy{
		MaxAttempts: senderMaxAttempts,
		Backoff: func(_ int, err error) time.Duration {
			if messaging.IsDeviceTrustError(err) {
				// Remediation already ran; resend immediately.
				return 0
			}
			return senderTransientGap
		},
		Retryable: func(err error) bool {
			return messaging.IsDeviceTrustError(err) || messaging.IsTransientSendError(err)
		},
		OnRetry: func(ctx context.Context, attempt int, err error) {
			if messaging.IsDeviceTrustError(err) {
				sender.logger.Warn("send blocked on device trust, remediating",
					"attempt", attempt,
					"error", err,
				)
				sender.remediateDeviceTrust(ctx)
			}
		},
	}
	return sender
}

// Send delivers an m.room.message to the room. The returned error is
// informational: by the time Send returns it, the failure has already
// been logged and the message dropped, so callers may ignore it.
func (s *Sender) Send(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) error {
	primaryErr := s.policy.Do(ctx, s.clock, func(ctx context.Context) error {
		_, err := s.transport.SendMessage(ctx, roomID, content)
		return err
	})
	if primaryErr == nil {
		return nil
	}

	lastErr := primaryErr
	if _, err := s.transport.SendMessageLegacy(ctx, roomID, content); err == nil {
		s.logger.Warn("message delivered via legacy fallback",
			"room_id", roomID,
			"primary_error", primaryErr,
		)
		return nil
	} else {
		lastErr = err
	}

	s.logger.Error("message dropped after exhausting all send paths",
		"room_id", roomID,
		"primary_error", primaryErr,
		"fallback_error", lastErr,
	)
	return lastErr
}

// remediateDeviceTrust probes the account's device list. Seeing the
// list refreshes the homeserver's device tracking for this account,
// which is the closest a non-encrypting client gets to re-verifying
// room participants. Failures here are logged and swallowed; the
// retry loop decides what happens next.
func (s *Sender) remediateDeviceTrust(ctx context.Context) {
	devices, err := s.transport.Devices(ctx)
	if err != nil {
		s.logger.Warn("device trust remediation failed", "error", err)
		return
	}
	s.logger.Info("device trust remediation completed", "devices", len(devices))
}

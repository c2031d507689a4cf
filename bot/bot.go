// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askrelay/askrelay/gateway"
	"github.com/askrelay/askrelay/lib/clock"
	"github.com/askrelay/askrelay/messaging"
)

// Options configures a Bot.
type Options struct {
	// Session is the authenticated Matrix session.
	Session *messaging.Session
	// Gateway is the downstream QA/ingestion client.
	Gateway *gateway.Gateway
	// Clock drives retries, staleness and cache expiry. If nil, the
	// real clock is used.
	Clock clock.Clock
	// Logger for structured logging. If nil, slog.Default().
	Logger *slog.Logger
	// MaxAttachmentBytes caps media downloads. Zero takes the default
	// of 100 MB.
	MaxAttachmentBytes int64
	// AttachmentTTL bounds how long an unconsumed attachment stays
	// cached. Zero takes the default of 30 minutes; negative disables
	// expiry.
	AttachmentTTL time.Duration
}

const (
	defaultMaxAttachmentBytes = 100 << 20
	defaultAttachmentTTL      = 30 * time.Minute
)

// Bot bridges Matrix rooms to the downstream answering service. One
// goroutine drives the sync loop; event handling within a batch is
// sequential.
type Bot struct {
	session  *messaging.Session
	gateway  *gateway.Gateway
	sessions *SessionStore
	cache    *AttachmentCache
	sender   *Sender
	clock    clock.Clock
	logger   *slog.Logger

	maxAttachmentBytes int64

	// startTime marks process start. Events originating before it are
	// backlog replayed by the homeserver and are never acted on.
	startTime time.Time
	startTS   int64
}

// New creates a Bot from an authenticated session and a gateway.
func New(options Options) (*Bot, error) {
	if options.Session == nil {
		return nil, fmt.Errorf("bot: Session is required")
	}
	if options.Gateway == nil {
		return nil, fmt.Errorf("bot: Gateway is required")
	}

	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := options.MaxAttachmentBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxAttachmentBytes
	}
	ttl := options.AttachmentTTL
	if ttl == 0 {
		ttl = defaultAttachmentTTL
	}

	startTime := clk.Now()
	return &Bot{
		session:            options.Session,
		gateway:            options.Gateway,
		sessions:           NewSessionStore(),
		cache:              NewAttachmentCache(clk, ttl, logger),
		sender:             NewSender(options.Session, clk, logger),
		clock:              clk,
		logger:             logger,
		maxAttachmentBytes: maxBytes,
		startTime:          startTime,
		startTS:            startTime.UnixMilli(),
	}, nil
}

// Run performs the initial sync and then processes events until the
// context is cancelled. The error is nil on clean shutdown.
func (b *Bot) Run(ctx context.Context) error {
	evictionDone := make(chan struct{})
	evictionCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go func() {
		defer close(evictionDone)
		b.cache.RunEviction(evictionCtx)
	}()

	since, err := b.initialSync(ctx)
	if err != nil {
		return fmt.Errorf("bot: initial sync: %w", err)
	}

	b.logger.Info("entering sync loop",
		"user_id", b.session.UserID(),
		"start_time", b.startTime,
	)
	b.syncLoop(ctx, since)

	stopEviction()
	<-evictionDone
	return nil
}

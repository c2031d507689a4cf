// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Command askrelay-bot bridges Matrix rooms to a document-aware
// question-answering service. It logs in with a password read from a
// file (or stdin), long-polls the homeserver for events, and relays
// questions and uploaded documents downstream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/askrelay/askrelay/bot"
	"github.com/askrelay/askrelay/gateway"
	"github.com/askrelay/askrelay/lib/clock"
	"github.com/askrelay/askrelay/lib/config"
	"github.com/askrelay/askrelay/lib/ref"
	"github.com/askrelay/askrelay/lib/retry"
	"github.com/askrelay/askrelay/lib/secret"
	"github.com/askrelay/askrelay/lib/version"
	"github.com/askrelay/askrelay/messaging"
)

const loginBackoffBase = time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "askrelay-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = pflag.String("config", "", "path to YAML config file")
		homeserverURL = pflag.String("homeserver", "", "Matrix homeserver base URL")
		userID        = pflag.String("user", "", "bot account user ID (e.g. @helper:example.org)")
		passwordFile  = pflag.String("password-file", "", "path to password file, or - for stdin")
		askURL        = pflag.String("ask-url", "", "downstream prediction endpoint URL")
		ingestURL     = pflag.String("ingest-url", "", "downstream vector upsert endpoint URL (derived from ask-url when empty)")
		logLevel      = pflag.String("log-level", "info", "log level: debug, info, warn, error")
		showVersion   = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println("askrelay-bot " + version.Full())
		return nil
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// Flags override the file.
	if *homeserverURL != "" {
		cfg.HomeserverURL = *homeserverURL
	}
	if *userID != "" {
		cfg.UserID = *userID
	}
	if *passwordFile != "" {
		cfg.PasswordFile = *passwordFile
	}
	if *askURL != "" {
		cfg.Downstream.AskURL = *askURL
	}
	if *ingestURL != "" {
		cfg.Downstream.IngestURL = *ingestURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	accountID, err := ref.ParseUserID(cfg.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	password, err := secret.ReadFromPath(cfg.PasswordFile)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	defer password.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	session, err := login(ctx, client, accountID, password, logger)
	if err != nil {
		return err
	}
	defer session.Close()
	password.Close()

	// The token must belong to the configured account; a mismatch
	// means the credentials are for the wrong identity.
	identity, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("verifying session identity: %w", err)
	}
	if identity.UserID != accountID {
		return fmt.Errorf("logged in as %s but configured as %s", identity.UserID, accountID)
	}

	gw, err := gateway.New(gateway.Config{
		AskURL:        cfg.Downstream.AskURL,
		IngestURL:     cfg.Downstream.IngestURL,
		AskTimeout:    cfg.Downstream.AskTimeout.Std(),
		UploadTimeout: cfg.Downstream.UploadTimeout.Std(),
		AnswerLimit:   cfg.Limits.AnswerLimit,
		HTTPClient:    &http.Client{},
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	b, err := bot.New(bot.Options{
		Session:            session,
		Gateway:            gw,
		Logger:             logger,
		MaxAttachmentBytes: cfg.Limits.MaxAttachmentBytes,
		AttachmentTTL:      cfg.Limits.AttachmentTTL.Std(),
	})
	if err != nil {
		return err
	}

	logger.Info("askrelay-bot starting",
		"version", version.Info(),
		"homeserver", cfg.HomeserverURL,
		"user_id", accountID,
		"downstream", cfg.Downstream.AskURL,
	)
	return b.Run(ctx)
}

// login authenticates with bounded retries. Exhausting the retries is
// fatal to startup.
func login(ctx context.Context, client *messaging.Client, accountID ref.UserID, password *secret.Buffer, logger *slog.Logger) (*messaging.Session, error) {
	var session *messaging.Session
	policy := retry.Policy{
		MaxAttempts: 3,
		Backoff:     retry.Exponential(loginBackoffBase),
		Retryable: func(err error) bool {
			// Wrong credentials will not improve on retry.
			return !messaging.IsMatrixError(err, messaging.ErrCodeForbidden)
		},
		OnRetry: func(_ context.Context, attempt int, err error) {
			logger.Warn("login failed, retrying", "attempt", attempt, "error", err)
		},
	}
	err := policy.Do(ctx, clock.Real(), func(ctx context.Context) error {
		var loginErr error
		session, loginErr = client.Login(ctx, accountID, password)
		return loginErr
	})
	if err != nil {
		return nil, fmt.Errorf("login as %s failed: %w", accountID, err)
	}
	return session, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})), nil
}

// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/askrelay/askrelay/lib/netutil"
)

// Config holds the downstream service endpoints and limits.
type Config struct {
	// AskURL is the prediction endpoint, e.g.
	// "http://localhost:3000/api/v1/prediction/<flow-id>".
	AskURL string
	// IngestURL is the vector upsert endpoint. If empty, it is
	// derived from AskURL by substituting the path segment.
	IngestURL string
	// AskTimeout bounds text-only questions.
	AskTimeout time.Duration
	// UploadTimeout bounds attachment-bearing questions and ingests.
	UploadTimeout time.Duration
	// AnswerLimit is the maximum answer length in runes before
	// truncation.
	AnswerLimit int
	// HTTPClient is used for all requests. If nil, http.DefaultClient.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Gateway is a client for the downstream QA/ingestion service.
type Gateway struct {
	askURL        string
	ingestURL     string
	askTimeout    time.Duration
	uploadTimeout time.Duration
	answerLimit   int
	httpClient    *http.Client
	logger        *slog.Logger
}

const (
	defaultAskTimeout    = 120 * time.Second
	defaultUploadTimeout = 300 * time.Second
	defaultAnswerLimit   = 4000

	truncationNotice = "… [truncated]"
)

// New creates a Gateway. Zero-valued limits take defaults.
func New(config Config) (*Gateway, error) {
	if config.AskURL == "" {
		return nil, fmt.Errorf("gateway: AskURL is required")
	}

	ingestURL := config.IngestURL
	if ingestURL == "" {
		ingestURL = deriveIngestURL(config.AskURL)
	}

	gw := &Gateway{
		askURL:        config.AskURL,
		ingestURL:     ingestURL,
		askTimeout:    config.AskTimeout,
		uploadTimeout: config.UploadTimeout,
		answerLimit:   config.AnswerLimit,
		httpClient:    config.HTTPClient,
		logger:        config.Logger,
	}
	if gw.askTimeout <= 0 {
		gw.askTimeout = defaultAskTimeout
	}
	if gw.uploadTimeout <= 0 {
		gw.uploadTimeout = defaultUploadTimeout
	}
	if gw.answerLimit <= 0 {
		gw.answerLimit = defaultAnswerLimit
	}
	if gw.httpClient == nil {
		gw.httpClient = http.DefaultClient
	}
	if gw.logger == nil {
		gw.logger = slog.Default()
	}
	return gw, nil
}

// Attachment is a file forwarded to the downstream service, either
// inlined into an Ask or uploaded through Ingest.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// askRequest is the prediction API request body. The attachment, when
// present, is inlined as a base64 data-URI upload.
type askRequest struct {
	Question       string         `json:"question"`
	OverrideConfig overrideConfig `json:"overrideConfig"`
	Uploads        []uploadEntry  `json:"uploads,omitempty"`
}

type overrideConfig struct {
	SessionID string `json:"sessionId"`
}

type uploadEntry struct {
	Data string `json:"data"`
	Type string `json:"type"`
	Name string `json:"name"`
	Mime string `json:"mime"`
}

// askResponse is the prediction API response body.
type askResponse struct {
	Text string `json:"text"`
}

// Ask sends a question to the downstream service and returns the
// answer text. attachment may be nil for a text-only question.
//
// Ask never returns an error: failures degrade to a user-facing text
// describing what went wrong, and the underlying cause is logged.
func (g *Gateway) Ask(ctx context.Context, question, sessionID string, attachment *Attachment) string {
	timeout := g.askTimeout
	request := askRequest{
		Question:       question,
		OverrideConfig: overrideConfig{SessionID: sessionID},
	}
	if attachment != nil {
		timeout = g.uploadTimeout
		request.Uploads = []uploadEntry{{
			Data: "data:" + attachment.MimeType + ";base64," +
				base64.StdEncoding.EncodeToString(attachment.Data),
			Type: "file",
			Name: attachment.Name,
			Mime: attachment.MimeType,
		}}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	encoded, err := json.Marshal(request)
	if err != nil {
		g.logger.Error("failed to encode ask request", "error", err)
		return "Internal error preparing the request. Please try again."
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, g.askURL, bytes.NewReader(encoded))
	if err != nil {
		g.logger.Error("failed to create ask request", "error", err)
		return "Internal error preparing the request. Please try again."
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	response, err := g.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			g.logger.Warn("ask request timed out",
				"timeout", timeout,
				"session_id", sessionID,
			)
			return "The request timed out. The service may be busy processing a large document — please try again."
		}
		g.logger.Error("ask request failed", "error", err, "session_id", sessionID)
		return "Could not reach the answering service. Please try again later."
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
		// Handled below.
	case response.StatusCode == http.StatusRequestEntityTooLarge:
		g.logger.Warn("ask payload too large", "session_id", sessionID)
		return "The attachment is too large for the answering service. Please send a smaller file."
	default:
		g.logger.Warn("ask returned non-200 status",
			"status", response.StatusCode,
			"body", netutil.ErrorBody(response.Body),
			"session_id", sessionID,
		)
		return fmt.Sprintf("The answering service returned an error (HTTP %d). Please try again later.", response.StatusCode)
	}

	var answer askResponse
	if err := netutil.DecodeResponse(response.Body, &answer); err != nil {
		g.logger.Error("failed to decode ask response", "error", err, "session_id", sessionID)
		return "The answering service returned an unreadable response. Please try again."
	}
	if answer.Text == "" {
		return "The answering service returned an empty answer."
	}

	return truncateAnswer(answer.Text, g.answerLimit)
}

// truncateAnswer bounds an answer to limit runes, appending a
// truncation notice when cut. Counting runes rather than bytes keeps
// multi-byte text from being split mid-character.
func truncateAnswer(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncationNotice
}

// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/askrelay/askrelay/lib/netutil"
)

// IngestOptions tunes how a document is split before indexing. Zero
// values are omitted from the request, leaving the service defaults
// in effect.
type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// IngestResult reports what the vector store did with the uploaded
// document.
type IngestResult struct {
	NumAdded   int `json:"numAdded"`
	NumUpdated int `json:"numUpdated"`
}

// Ingest uploads a document to the vector upsert endpoint as a
// multipart form. Unlike Ask, errors are returned to the caller; the
// invoking command reports them to the operator.
func (g *Gateway) Ingest(ctx context.Context, attachment Attachment, sessionID string, options IngestOptions) (IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	filePart, err := form.CreateFormFile("files", attachment.Name)
	if err != nil {
		return IngestResult{}, fmt.Errorf("gateway: creating form file: %w", err)
	}
	if _, err := filePart.Write(attachment.Data); err != nil {
		return IngestResult{}, fmt.Errorf("gateway: writing form file: %w", err)
	}

	if options.ChunkSize > 0 {
		if err := form.WriteField("chunkSize", strconv.Itoa(options.ChunkSize)); err != nil {
			return IngestResult{}, fmt.Errorf("gateway: writing chunkSize field: %w", err)
		}
	}
	if options.ChunkOverlap > 0 {
		if err := form.WriteField("chunkOverlap", strconv.Itoa(options.ChunkOverlap)); err != nil {
			return IngestResult{}, fmt.Errorf("gateway: writing chunkOverlap field: %w", err)
		}
	}
	if sessionID != "" {
		if err := form.WriteField("sessionId", sessionID); err != nil {
			return IngestResult{}, fmt.Errorf("gateway: writing sessionId field: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return IngestResult{}, fmt.Errorf("gateway: finalizing form: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.ingestURL, &body)
	if err != nil {
		return IngestResult{}, fmt.Errorf("gateway: creating ingest request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())

	response, err := g.httpClient.Do(request)
	if err != nil {
		return IngestResult{}, fmt.Errorf("gateway: ingest request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return IngestResult{}, fmt.Errorf("gateway: ingest returned HTTP %d: %s",
			response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var result IngestResult
	if err := netutil.DecodeResponse(response.Body, &result); err != nil {
		return IngestResult{}, fmt.Errorf("gateway: decoding ingest response: %w", err)
	}
	return result, nil
}

// IngestURL returns the resolved vector upsert endpoint. Exposed for
// the status command.
func (g *Gateway) IngestURL() string { return g.ingestURL }

// AskURL returns the prediction endpoint. Exposed for the status
// command.
func (g *Gateway) AskURL() string { return g.askURL }

// deriveIngestURL maps a prediction URL onto the matching vector
// upsert URL on the same host and flow. If the prediction path segment
// is absent the URL is returned unchanged; the operator must then
// configure the ingest URL explicitly.
func deriveIngestURL(askURL string) string {
	const (
		predictionSegment = "/api/v1/prediction/"
		upsertSegment     = "/api/v1/vector/upsert/"
	)
	if strings.Contains(askURL, predictionSegment) {
		return strings.Replace(askURL, predictionSegment, upsertSegment, 1)
	}
	return askURL
}

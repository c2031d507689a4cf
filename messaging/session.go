// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/askrelay/askrelay/lib/ref"
	"github.com/askrelay/askrelay/lib/secret"
)

// ErrContentTooLarge is returned by DownloadMedia when the media
// exceeds the caller's size limit.
var ErrContentTooLarge = errors.New("messaging: media content exceeds size limit")

// Session is an authenticated connection to a Matrix homeserver. It
// wraps a Client with an access token held in mmap-backed memory.
//
// A Session is safe for concurrent use. Close zeroes the token; any
// call after Close fails.
type Session struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
	deviceID    string

	// transactionCounter disambiguates sends within the same
	// millisecond. Transaction IDs only need to be unique per
	// access token.
	transactionCounter atomic.Int64
}

// UserID returns the fully-qualified Matrix user ID this session is
// authenticated as.
func (s *Session) UserID() ref.UserID { return s.userID }

// DeviceID returns the device ID assigned at login, if any.
func (s *Session) DeviceID() string { return s.deviceID }

// Close zeroes and releases the access token. The session is unusable
// afterward. Safe to call multiple times.
func (s *Session) Close() error {
	return s.accessToken.Close()
}

// CloseIdleConnections drops pooled HTTP connections on the underlying
// transport. Used to recover from a poisoned connection pool after
// repeated sync failures.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// nextTransactionID generates a unique transaction ID for idempotent
// event sends.
func (s *Session) nextTransactionID() string {
	return fmt.Sprintf("askrelay-%d-%d", time.Now().UnixMilli(), s.transactionCounter.Add(1))
}

// WhoAmI asks the homeserver which user this session's token belongs
// to. Used at startup to verify the token matches the configured
// identity.
func (s *Session) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return &response, nil
}

// JoinRoom joins a room by ID. Joining an already-joined room
// succeeds.
func (s *Session) JoinRoom(ctx context.Context, roomID ref.RoomID) error {
	path := "/_matrix/client/v3/join/" + url.PathEscape(roomID.String())
	if _, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}); err != nil {
		return fmt.Errorf("messaging: failed to join room %s: %w", roomID, err)
	}
	return nil
}

// SendMessage sends an m.room.message event using a transactional PUT.
// Retrying the same logical send reuses homeserver-side idempotency
// only within one call; each call allocates a fresh transaction ID.
func (s *Session) SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, EventTypeMessage, content)
}

// SendEvent sends an arbitrary room event using a transactional PUT.
func (s *Session) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	path := "/_matrix/client/v3/rooms/" + url.PathEscape(roomID.String()) +
		"/send/" + url.PathEscape(string(eventType)) +
		"/" + url.PathEscape(s.nextTransactionID())

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to send %s to %s: %w", eventType, roomID, err)
	}

	var response SendResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

// SendMessageLegacy sends an m.room.message using the r0-era POST
// endpoint with the access token as a query parameter. Last-resort
// fallback for homeservers that reject the v3 transactional PUT.
func (s *Session) SendMessageLegacy(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	path := "/_matrix/client/r0/rooms/" + url.PathEscape(roomID.String()) + "/send/m.room.message"
	query := url.Values{"access_token": {s.accessToken.String()}}

	body, err := s.client.doRequest(ctx, http.MethodPost, path, nil, content, query)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: legacy send to %s failed: %w", roomID, err)
	}

	var response SendResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse legacy send response: %w", err)
	}
	return response.EventID, nil
}

// Devices lists the devices registered to the current user. Used as a
// best-effort probe when a send fails with a device-trust error.
func (s *Session) Devices(ctx context.Context) ([]Device, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/devices", s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to list devices: %w", err)
	}

	var response DevicesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse devices response: %w", err)
	}
	return response.Devices, nil
}

// SyncOptions configures a call to Sync.
type SyncOptions struct {
	// Since is the next_batch token from the previous sync. Empty
	// requests an initial sync.
	Since string
	// Timeout is the long-poll duration. Zero with SetTimeout false
	// means the server default; SetTimeout true forces the value
	// (including an explicit zero for a non-blocking sync).
	Timeout    time.Duration
	SetTimeout bool
	// Filter is an inline JSON filter definition, passed verbatim in
	// the filter query parameter.
	Filter string
}

// Sync performs one long-poll against /_matrix/client/v3/sync. The
// context deadline must exceed Timeout or the poll is cut short.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout || options.Timeout > 0 {
		query.Set("timeout", strconv.FormatInt(options.Timeout.Milliseconds(), 10))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// DownloadMedia fetches media content by its mxc:// URI. maxBytes caps
// the download; content exceeding the cap returns ErrContentTooLarge.
// Servers that omit or lie in Content-Length are handled the same way:
// the cap is enforced on the bytes actually read.
func (s *Session) DownloadMedia(ctx context.Context, mediaURI ref.MXCURI, maxBytes int64) ([]byte, error) {
	path := "/_matrix/client/v1/media/download/" +
		url.PathEscape(mediaURI.Server()) + "/" + url.PathEscape(mediaURI.MediaID())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create media request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+s.accessToken.String())

	response, err := s.client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: media download failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		var matrixErr MatrixError
		if jsonErr := json.Unmarshal(errBody, &matrixErr); jsonErr == nil && matrixErr.Code != "" {
			matrixErr.StatusCode = response.StatusCode
			return nil, fmt.Errorf("messaging: media download of %s failed: %w", mediaURI, &matrixErr)
		}
		return nil, fmt.Errorf("messaging: media download of %s failed with HTTP %d", mediaURI, response.StatusCode)
	}

	// Read one byte past the cap to distinguish exactly-at-cap from
	// over-cap without trusting Content-Length.
	data, err := io.ReadAll(io.LimitReader(response.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read media content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("messaging: media %s: %w", mediaURI, ErrContentTooLarge)
	}
	return data, nil
}

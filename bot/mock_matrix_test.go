// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/askrelay/askrelay/gateway"
	"github.com/askrelay/askrelay/lib/clock"
	"github.com/askrelay/askrelay/lib/ref"
	"github.com/askrelay/askrelay/messaging"
)

var botUser = ref.MustParseUserID("@bot:example.org")

// testStart is the fake process start time used by every router test.
// Events timestamped before it are stale.
var testStart = time.UnixMilli(1_700_000_000_000)

type sentMessage struct {
	roomID  string
	msgType string
	body    string
	legacy  bool
}

// mockMatrix is a scriptable in-memory homeserver.
type mockMatrix struct {
	mu     sync.Mutex
	sent   []sentMessage
	joined []string
	// media maps "server/mediaID" to content.
	media map[string][]byte
	// failJoins makes join requests fail with 403.
	failJoins bool
	// syncResponses are served in order to /sync requests; when
	// exhausted, an empty response is returned.
	syncResponses []messaging.SyncResponse
	syncRequests  []string
}

func (m *mockMatrix) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		path := r.URL.Path
		switch {
		case strings.HasPrefix(path, "/_matrix/client/v3/join/"):
			if m.failJoins {
				writeMatrixError(w, http.StatusForbidden, messaging.ErrCodeForbidden, "not invited")
				return
			}
			roomID := strings.TrimPrefix(path, "/_matrix/client/v3/join/")
			m.joined = append(m.joined, roomID)
			json.NewEncoder(w).Encode(map[string]string{"room_id": roomID})

		case strings.Contains(path, "/send/m.room.message"):
			parts := strings.Split(path, "/")
			// .../rooms/{roomID}/send/m.room.message[/{txnID}]
			var roomID string
			for i, part := range parts {
				if part == "rooms" && i+1 < len(parts) {
					roomID = parts[i+1]
				}
			}
			var content messaging.MessageContent
			if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
				t.Errorf("decoding sent message: %v", err)
			}
			m.sent = append(m.sent, sentMessage{
				roomID:  roomID,
				msgType: content.MsgType,
				body:    content.Body,
				legacy:  r.Method == http.MethodPost,
			})
			json.NewEncoder(w).Encode(map[string]string{"event_id": "$sent:example.org"})

		case strings.HasPrefix(path, "/_matrix/client/v1/media/download/"):
			key := strings.TrimPrefix(path, "/_matrix/client/v1/media/download/")
			content, ok := m.media[key]
			if !ok {
				writeMatrixError(w, http.StatusNotFound, messaging.ErrCodeNotFound, "media not found")
				return
			}
			w.Write(content)

		case path == "/_matrix/client/v3/sync":
			m.syncRequests = append(m.syncRequests, r.URL.Query().Get("since"))
			if len(m.syncResponses) == 0 {
				json.NewEncoder(w).Encode(messaging.SyncResponse{NextBatch: "s-empty"})
				return
			}
			next := m.syncResponses[0]
			m.syncResponses = m.syncResponses[1:]
			json.NewEncoder(w).Encode(next)

		case path == "/_matrix/client/v3/devices":
			json.NewEncoder(w).Encode(messaging.DevicesResponse{
				Devices: []messaging.Device{{DeviceID: "BOTDEV"}},
			})

		default:
			t.Errorf("unexpected homeserver request: %s %s", r.Method, path)
			writeMatrixError(w, http.StatusNotFound, messaging.ErrCodeUnrecognized, "unhandled")
		}
	}
}

func writeMatrixError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(messaging.MatrixError{Code: code, Message: message})
}

// lastSent returns the most recent message, failing the test when
// nothing was sent.
func (m *mockMatrix) lastSent(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockMatrix) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// newTestBot wires a Bot to a mock homeserver and a gateway handler.
// A nil gatewayHandler installs one answering every ask with "ok".
func newTestBot(t *testing.T, mock *mockMatrix, gatewayHandler http.HandlerFunc) (*Bot, *clock.FakeClock) {
	t.Helper()

	if mock.media == nil {
		mock.media = make(map[string][]byte)
	}
	homeserver := httptest.NewServer(mock.handler(t))
	t.Cleanup(homeserver.Close)

	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: homeserver.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SessionFromToken(botUser, "syt_test")
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	if gatewayHandler == nil {
		gatewayHandler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
		}
	}
	downstream := httptest.NewServer(gatewayHandler)
	t.Cleanup(downstream.Close)

	gw, err := gateway.New(gateway.Config{
		AskURL: downstream.URL + "/api/v1/prediction/test-flow",
	})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}

	clk := clock.Fake(testStart)
	b, err := New(Options{
		Session: session,
		Gateway: gw,
		Clock:   clk,
		Logger:  newQuietLogger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, clk
}

func newQuietLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, configure func(*Config)) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := Config{AskURL: server.URL + "/api/v1/prediction/flow-1"}
	if configure != nil {
		configure(&config)
	}
	gw, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw
}

func TestAsk(t *testing.T) {
	var gotRequest askRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/prediction/flow-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(askResponse{Text: "42"})
	}, nil)

	answer := gw.Ask(context.Background(), "what is the answer", "session-1", nil)
	if answer != "42" {
		t.Errorf("answer = %q, want %q", answer, "42")
	}
	if gotRequest.Question != "what is the answer" {
		t.Errorf("question = %q", gotRequest.Question)
	}
	if gotRequest.OverrideConfig.SessionID != "session-1" {
		t.Errorf("sessionId = %q", gotRequest.OverrideConfig.SessionID)
	}
	if len(gotRequest.Uploads) != 0 {
		t.Errorf("uploads present on a text-only question: %+v", gotRequest.Uploads)
	}
}

func TestAskWithAttachment(t *testing.T) {
	var gotRequest askRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(askResponse{Text: "summarized"})
	}, nil)

	answer := gw.Ask(context.Background(), "summarize this", "session-1", &Attachment{
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.4 fake"),
	})
	if answer != "summarized" {
		t.Errorf("answer = %q", answer)
	}
	if len(gotRequest.Uploads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(gotRequest.Uploads))
	}
	upload := gotRequest.Uploads[0]
	if upload.Name != "report.pdf" || upload.Mime != "application/pdf" || upload.Type != "file" {
		t.Errorf("upload metadata = %+v", upload)
	}
	wantPrefix := "data:application/pdf;base64,"
	if !strings.HasPrefix(upload.Data, wantPrefix) {
		t.Fatalf("upload data = %q, want data-URI prefix", upload.Data)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(upload.Data, wantPrefix))
	if err != nil {
		t.Fatalf("decoding upload payload: %v", err)
	}
	if string(decoded) != "%PDF-1.4 fake" {
		t.Errorf("payload = %q", decoded)
	}
}

func TestAskPayloadTooLarge(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}, nil)

	answer := gw.Ask(context.Background(), "q", "s", nil)
	if !strings.Contains(answer, "too large") {
		t.Errorf("answer = %q, want payload-too-large message", answer)
	}
}

func TestAskServiceError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	answer := gw.Ask(context.Background(), "q", "s", nil)
	if !strings.Contains(answer, "HTTP 500") {
		t.Errorf("answer = %q, want service error with status code", answer)
	}
}

func TestAskTimeout(t *testing.T) {
	blocked := make(chan struct{})
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}, func(config *Config) {
		config.AskTimeout = 50 * time.Millisecond
	})
	defer close(blocked)

	answer := gw.Ask(context.Background(), "q", "s", nil)
	if !strings.Contains(answer, "timed out") {
		t.Errorf("answer = %q, want timeout message", answer)
	}
}

func TestAskUnreachable(t *testing.T) {
	server := httptest.NewServer(nil)
	askURL := server.URL + "/api/v1/prediction/flow-1"
	server.Close()

	gw, err := New(Config{AskURL: askURL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	answer := gw.Ask(context.Background(), "q", "s", nil)
	if !strings.Contains(answer, "Could not reach") {
		t.Errorf("answer = %q, want unreachable message", answer)
	}
}

func TestAskTruncatesLongAnswers(t *testing.T) {
	long := strings.Repeat("é", 150)
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(askResponse{Text: long})
	}, func(config *Config) {
		config.AnswerLimit = 100
	})

	answer := gw.Ask(context.Background(), "q", "s", nil)
	if !strings.HasSuffix(answer, truncationNotice) {
		t.Fatalf("answer = %q, want truncation notice suffix", answer)
	}
	body := strings.TrimSuffix(answer, truncationNotice)
	if got := len([]rune(body)); got != 100 {
		t.Errorf("truncated body is %d runes, want 100", got)
	}
}

func TestTruncateAnswerAtLimit(t *testing.T) {
	exactly := strings.Repeat("a", 100)
	if got := truncateAnswer(exactly, 100); got != exactly {
		t.Errorf("answer at exactly the limit was modified: %q", got)
	}
}

func TestDeriveIngestURL(t *testing.T) {
	tests := []struct {
		askURL string
		want   string
	}{
		{
			askURL: "http://localhost:3000/api/v1/prediction/abc-123",
			want:   "http://localhost:3000/api/v1/vector/upsert/abc-123",
		},
		{
			askURL: "http://localhost:3000/custom/endpoint",
			want:   "http://localhost:3000/custom/endpoint",
		},
	}
	for _, test := range tests {
		if got := deriveIngestURL(test.askURL); got != test.want {
			t.Errorf("deriveIngestURL(%q) = %q, want %q", test.askURL, got, test.want)
		}
	}
}

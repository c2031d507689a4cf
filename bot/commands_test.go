// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/askrelay/askrelay/gateway"
)

func command(body string) TextMessage {
	return TextMessage{Room: testRoom, Sender: testSender, Body: body, Timestamp: liveTS()}
}

func TestCommandHelp(t *testing.T) {
	mock := &mockMatrix{}
	b, _ := newTestBot(t, mock, nil)

	for _, trigger := range []string{"!help", "!start"} {
		b.dispatch(context.Background(), command(trigger))
		reply := mock.lastSent(t)
		if !strings.Contains(reply.body, "!rag") {
			t.Errorf("%s reply = %q, want usage text", trigger, reply.body)
		}
	}
}

func TestCommandSession(t *testing.T) {
	mock := &mockMatrix{}
	b, _ := newTestBot(t, mock, nil)

	b.dispatch(context.Background(), command("!session"))
	first := mock.lastSent(t).body

	b.dispatch(context.Background(), command("!session"))
	second := mock.lastSent(t).body

	if first != second {
		t.Errorf("session replies differ without a reset: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "Session: ") {
		t.Errorf("reply = %q", first)
	}
}

func TestCommandResetReplacesSessionAndPurges(t *testing.T) {
	mock := &mockMatrix{}
	b, _ := newTestBot(t, mock, nil)

	b.dispatch(context.Background(), command("!session"))
	before := mock.lastSent(t).body

	b.cache.Put(testRoom, testSender, gateway.Attachment{Name: "pending.pdf"})

	b.dispatch(context.Background(), command("!reset"))
	resetReply := mock.lastSent(t).body
	if !strings.Contains(resetReply, "Conversation reset") {
		t.Errorf("reset reply = %q", resetReply)
	}
	if b.cache.Count() != 0 {
		t.Error("reset did not purge the room's attachments")
	}

	b.dispatch(context.Background(), command("!session"))
	after := mock.lastSent(t).body
	if before == after {
		t.Errorf("session unchanged after reset: %q", after)
	}
}

func TestCommandStatus(t *testing.T) {
	mock := &mockMatrix{}
	b, _ := newTestBot(t, mock, nil)
	b.sessions.GetOrCreate(testRoom)
	b.cache.Put(testRoom, testSender, gateway.Attachment{Name: "x.txt"})

	b.dispatch(context.Background(), command("!status"))
	reply := mock.lastSent(t).body

	for _, want := range []string{
		"@bot:example.org",
		"Active sessions: 1",
		"Cached attachments: 1",
		"prediction/test-flow",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("status reply missing %q:\n%s", want, reply)
		}
	}
}

func TestCommandUnknown(t *testing.T) {
	mock := &mockMatrix{}
	b, _ := newTestBot(t, mock, nil)

	b.dispatch(context.Background(), command("!frobnicate"))
	reply := mock.lastSent(t).body
	if !strings.Contains(reply, "Unknown command") || !strings.Contains(reply, "!help") {
		t.Errorf("reply = %q", reply)
	}
}

func TestCommandRagWithoutAttachment(t *testing.T) {
	mock := &mockMatrix{}
	ingestCalls := &atomic.Int64{}
	b, _ := newTestBot(t, mock, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "vector/upsert") {
			ingestCalls.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]any{"numAdded": 1})
	})

	b.dispatch(context.Background(), command("!rag"))

	reply := mock.lastSent(t).body
	if !strings.Contains(reply, "Upload a file first") {
		t.Errorf("reply = %q, want guidance to upload first", reply)
	}
	if ingestCalls.Load() != 0 {
		t.Error("ingest endpoint called without a pending attachment")
	}
}

func TestCommandRagInvalidArgument(t *testing.T) {
	mock := &mockMatrix{}
	ingestCalls := &atomic.Int64{}
	b, _ := newTestBot(t, mock, func(w http.ResponseWriter, r *http.Request) {
		ingestCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"numAdded": 1})
	})
	b.cache.Put(testRoom, testSender, gateway.Attachment{Name: "doc.pdf"})

	for _, body := range []string{
		"!rag chunkSize=abc",
		"!rag chunkSize",
		"!rag depth=3",
		"!rag chunkOverlap=-5",
	} {
		b.dispatch(context.Background(), command(body))
	}

	if ingestCalls.Load() != 0 {
		t.Errorf("ingest called %d times with malformed arguments", ingestCalls.Load())
	}
	if b.cache.Count() != 1 {
		t.Error("attachment consumed by a rejected command")
	}
}

func TestCommandRagSuccess(t *testing.T) {
	mock := &mockMatrix{}
	var gotChunkSize string
	b, _ := newTestBot(t, mock, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "vector/upsert") {
			t.Errorf("ingest path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		gotChunkSize = r.FormValue("chunkSize")
		json.NewEncoder(w).Encode(gateway.IngestResult{NumAdded: 12, NumUpdated: 3})
	})
	b.cache.Put(testRoom, testSender, gateway.Attachment{
		Name: "doc.pdf", MimeType: "application/pdf", Data: []byte("content"),
	})

	b.dispatch(context.Background(), command("!rag chunkSize=500 chunkOverlap=50"))

	reply := mock.lastSent(t).body
	if !strings.Contains(reply, "12 chunks added") || !strings.Contains(reply, "3 updated") {
		t.Errorf("reply = %q", reply)
	}
	if gotChunkSize != "500" {
		t.Errorf("chunkSize = %q", gotChunkSize)
	}
	if b.cache.Count() != 0 {
		t.Error("attachment not consumed after successful ingest")
	}
}

func TestCommandRagFailureKeepsAttachment(t *testing.T) {
	mock := &mockMatrix{}
	b, _ := newTestBot(t, mock, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "store offline", http.StatusBadGateway)
	})
	b.cache.Put(testRoom, testSender, gateway.Attachment{Name: "doc.pdf", Data: []byte("x")})

	b.dispatch(context.Background(), command("!rag"))

	reply := mock.lastSent(t).body
	if !strings.Contains(reply, "Indexing failed") {
		t.Errorf("reply = %q", reply)
	}
	if b.cache.Count() != 1 {
		t.Error("attachment lost after a failed ingest")
	}
}

func TestParseIngestArgs(t *testing.T) {
	options, err := parseIngestArgs([]string{"chunkSize=100", "chunkOverlap=20"})
	if err != nil {
		t.Fatalf("parseIngestArgs: %v", err)
	}
	if options.ChunkSize != 100 || options.ChunkOverlap != 20 {
		t.Errorf("options = %+v", options)
	}

	if _, err := parseIngestArgs(nil); err != nil {
		t.Errorf("no arguments should parse cleanly, got %v", err)
	}
}
